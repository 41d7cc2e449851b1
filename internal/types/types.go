package types

type ClientMessage struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id,omitempty"`
	Character string `json:"character,omitempty"`
	TargetID  string `json:"target_id,omitempty"`
	WinnerID  string `json:"winner_id,omitempty"`
}

type ServerMessage struct {
	Type    string `json:"type"` // see pkg/types for the event names
	RoomID  string `json:"room_id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// CharacterView is the one shape a character takes on the wire.
type CharacterView struct {
	Archetype  string `json:"archetype"`
	Health     int    `json:"health"`
	BaseHealth int    `json:"base_health"`
}

type PlayerView struct {
	ID        string         `json:"id"`
	Character *CharacterView `json:"character"`
}

type Connected struct {
	ID string `json:"id"`
}

type RoomList struct {
	Rooms []string `json:"rooms"`
}

type Countdown struct {
	Remaining int `json:"remaining"`
}

type InitialHealth struct {
	YourHealth  int `json:"yourHealth"`
	EnemyHealth int `json:"enemyHealth"`
}

type HealthUpdate struct {
	ID     string `json:"id"`
	Health int    `json:"health"`
}

type Turn struct {
	ID string `json:"id"`
}

type GameOver struct {
	WinnerID string `json:"winner_id"`
	Reason   string `json:"reason"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
