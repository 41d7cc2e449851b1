package gateway

import (
	"github.com/DoyleJ11/fightclub-backend/internal/engine"
	"github.com/DoyleJ11/fightclub-backend/internal/room"
	"github.com/DoyleJ11/fightclub-backend/internal/types"
	pub "github.com/DoyleJ11/fightclub-backend/pkg/types"
)

// translate turns one room update into the frames self should see. Picks and
// health are phrased relative to the recipient.
func translate(self string, u room.Update) []types.ServerMessage {
	st := u.State
	out := make([]types.ServerMessage, 0, len(u.Events)+1)
	add := func(typ string, payload any) {
		out = append(out, types.ServerMessage{Type: typ, RoomID: u.RoomID, Payload: payload})
	}

	for _, e := range u.Events {
		switch e.Type {
		case engine.EvtParticipantJoined, engine.EvtParticipantLeft:
			add(pub.OutPlayers, roster(st))

		case engine.EvtCharacterPicked:
			p, _ := st.Participant(e.ParticipantID)
			view := characterView(p)
			add(pub.OutCharacter, types.PlayerView{ID: e.ParticipantID, Character: view})
			if e.ParticipantID == self {
				add(pub.OutCharacterChosen, view)
			} else {
				add(pub.OutEnemyCharacterChosen, view)
			}

		case engine.EvtCountdown:
			add(pub.OutCountdown, types.Countdown{Remaining: e.Remaining})

		case engine.EvtCombatStarted:
			add(pub.OutStart, roster(st))
			add(pub.OutInitialHealth, initialHealth(self, st))

		case engine.EvtHealthUpdated:
			add(pub.OutUpdateHealth, types.HealthUpdate{ID: e.ParticipantID, Health: e.Health})

		case engine.EvtTurnChanged:
			add(pub.OutTurn, types.Turn{ID: e.ParticipantID})

		case engine.EvtGameOver:
			add(pub.OutGameOver, types.GameOver{WinnerID: e.ParticipantID, Reason: e.Reason})

		case engine.EvtHealthReported:
			add(pub.OutInitialHealth, initialHealth(self, st))
		}
	}
	return out
}

func roster(st engine.State) []types.PlayerView {
	players := make([]types.PlayerView, 0, len(st.Participants))
	for _, p := range st.Participants {
		players = append(players, types.PlayerView{ID: p.ID, Character: characterView(p)})
	}
	return players
}

func characterView(p engine.Participant) *types.CharacterView {
	if p.Character == nil {
		return nil
	}
	return &types.CharacterView{
		Archetype:  string(p.Character.Archetype),
		Health:     p.Health,
		BaseHealth: p.Character.BaseHealth,
	}
}

func initialHealth(self string, st engine.State) types.InitialHealth {
	var ih types.InitialHealth
	if p, ok := st.Participant(self); ok {
		ih.YourHealth = p.Health
	}
	if o := st.Opponent(self); o != nil {
		ih.EnemyHealth = o.Health
	}
	return ih
}
