package types

// Client -> Server
//
//	rooms          {}
//	join           room_id            (empty room_id creates a room)
//	leave          room_id
//	character      room_id, character
//	startCountdown room_id
//	attack         room_id, target_id
//	heal           room_id
//	specialMove    room_id, target_id
//	requestHealth  room_id
//	gameOver       room_id, winner_id (informational, never trusted)
const (
	InRooms          = "rooms"
	InJoin           = "join"
	InLeave          = "leave"
	InCharacter      = "character"
	InStartCountdown = "startCountdown"
	InAttack         = "attack"
	InHeal           = "heal"
	InSpecialMove    = "specialMove"
	InRequestHealth  = "requestHealth"
	InGameOver       = "gameOver"
)

// Server -> Client
//
//	connected            {id}
//	rooms                {rooms: string[]}
//	players              [{id, character}]
//	roomFull             {}
//	character            {id, character}
//	characterChosen      {archetype, health, base_health}   // your own pick
//	enemyCharacterChosen {archetype, health, base_health}   // the other pick
//	countdown            {remaining}
//	start                [{id, character}]
//	initialHealth        {yourHealth, enemyHealth}
//	updateHealth         {id, health}
//	turn                 {id}
//	gameOver             {winner_id, reason}
//	error                {code, message}
const (
	OutConnected            = "connected"
	OutRooms                = "rooms"
	OutPlayers              = "players"
	OutRoomFull             = "roomFull"
	OutCharacter            = "character"
	OutCharacterChosen      = "characterChosen"
	OutEnemyCharacterChosen = "enemyCharacterChosen"
	OutCountdown            = "countdown"
	OutStart                = "start"
	OutInitialHealth        = "initialHealth"
	OutUpdateHealth         = "updateHealth"
	OutTurn                 = "turn"
	OutGameOver             = "gameOver"
	OutError                = "error"
)

// Error codes carried by the error event.
const (
	CodeBadRequest          = "bad_request"
	CodeUnknownEvent        = "unknown_event"
	CodeUnknownRoom         = "unknown_room"
	CodeInvalidAction       = "invalid_action"
	CodeParticipantNotFound = "participant_not_found"
	CodeMatchInProgress     = "match_in_progress"
	CodeInternal            = "internal"
)
