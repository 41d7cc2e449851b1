package engine

import (
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidAction = errors.New("invalid action")
var ErrRoomFull = errors.New("room is full")
var ErrParticipantNotFound = errors.New("participant not found")

var ErrWrongTurn = fmt.Errorf("%w: not your turn", ErrInvalidAction)
var ErrWrongPhase = fmt.Errorf("%w: not allowed in this phase", ErrInvalidAction)
var ErrAlreadyPicked = fmt.Errorf("%w: character already picked", ErrInvalidAction)
var ErrInvalidTarget = fmt.Errorf("%w: invalid target", ErrInvalidAction)
var ErrSpecialNotReady = fmt.Errorf("%w: special move not ready", ErrInvalidAction)
var ErrMatchInProgress = fmt.Errorf("%w: match already in progress", ErrInvalidAction)
var ErrUnknownArchetype = fmt.Errorf("%w: unknown archetype", ErrInvalidAction)
var ErrUnsupportedCommand = fmt.Errorf("%w: unsupported command", ErrInvalidAction)

const MaxParticipants = 2

type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseSelecting Phase = "selecting"
	PhaseCountdown Phase = "countdown"
	PhaseCombat    Phase = "combat"
	PhaseGameOver  Phase = "gameover"
)

type Participant struct {
	ID             string
	Character      *Character
	Health         int
	SpecialReadyIn int
}

// State is one room's match. Participants are kept in join order; the first
// one holds the opening turn.
type State struct {
	Phase        Phase
	Participants []Participant
	Turn         string
	Countdown    int
	Winner       string
	Rules        Rules
}

type Rules struct {
	CountdownTicks int
}

type CommandType string

const (
	CmdJoin           CommandType = "Join"
	CmdLeave          CommandType = "Leave"
	CmdPickCharacter  CommandType = "PickCharacter"
	CmdStartCountdown CommandType = "StartCountdown"
	CmdCountdownTick  CommandType = "CountdownTick"
	CmdAttack         CommandType = "Attack"
	CmdHeal           CommandType = "Heal"
	CmdSpecialMove    CommandType = "SpecialMove"
	CmdRequestHealth  CommandType = "RequestHealth"
	CmdClaimWinner    CommandType = "ClaimWinner"
)

/*
	CmdJoin           -> EvtParticipantJoined (-> EvtSelectionStarted when the room fills)
	CmdLeave          -> EvtParticipantLeft (-> EvtGameOver on forfeit, -> EvtRoomEmptied when nobody is left)
	CmdPickCharacter  -> EvtCharacterPicked (-> EvtCountdown once both have picked)
	CmdCountdownTick  -> EvtCountdown, or EvtCombatStarted + EvtTurnChanged at zero
	CmdAttack         -> EvtHealthUpdated -> EvtTurnChanged | EvtGameOver
	CmdHeal           -> EvtHealthUpdated -> EvtTurnChanged
	CmdSpecialMove    -> EvtHealthUpdated -> EvtTurnChanged | EvtGameOver
	CmdRequestHealth  -> EvtHealthReported, addressed to the requester only
	CmdClaimWinner    -> nothing unless the server-side check finds a defeated participant
*/

// IsQuery reports whether the command only reads state. Events produced by a
// query go to the issuer alone.
func (c CommandType) IsQuery() bool {
	return c == CmdRequestHealth
}

type Command struct {
	Type          CommandType
	ParticipantID string
	TargetID      string
	Archetype     string
}

type EventType string

const (
	EvtParticipantJoined EventType = "ParticipantJoined"
	EvtParticipantLeft   EventType = "ParticipantLeft"
	EvtSelectionStarted  EventType = "SelectionStarted"
	EvtCharacterPicked   EventType = "CharacterPicked"
	EvtCountdown         EventType = "Countdown"
	EvtCombatStarted     EventType = "CombatStarted"
	EvtHealthUpdated     EventType = "HealthUpdated"
	EvtTurnChanged       EventType = "TurnChanged"
	EvtGameOver          EventType = "GameOver"
	EvtHealthReported    EventType = "HealthReported"
	EvtRoomEmptied       EventType = "RoomEmptied"
)

const (
	ReasonDefeat  = "defeat"
	ReasonForfeit = "forfeit"
)

type Event struct {
	Type          EventType
	ParticipantID string
	Archetype     Archetype
	Health        int
	Remaining     int
	Reason        string
}

// Apply validates cmd against s and returns the resulting events and state.
// On error the returned state is s, untouched.
func Apply(s State, cmd Command) ([]Event, State, error) {
	var (
		events []Event
		err    error
	)
	next := s.Clone()

	switch cmd.Type {
	case CmdJoin:
		events, err = join(&next, cmd)
	case CmdLeave:
		events, err = leave(&next, cmd)
	case CmdPickCharacter:
		events, err = pickCharacter(&next, cmd)
	case CmdStartCountdown:
		if next.participant(cmd.ParticipantID) == nil {
			err = ErrParticipantNotFound
			break
		}
		// Only a re-check: picks normally start the countdown themselves.
		events = maybeStartCountdown(&next)
	case CmdCountdownTick:
		events, err = countdownTick(&next)
	case CmdAttack, CmdHeal, CmdSpecialMove:
		events, err = act(&next, cmd)
	case CmdRequestHealth:
		if next.participant(cmd.ParticipantID) == nil {
			err = ErrParticipantNotFound
			break
		}
		events = []Event{{Type: EvtHealthReported, ParticipantID: cmd.ParticipantID}}
	case CmdClaimWinner:
		if next.participant(cmd.ParticipantID) == nil {
			err = ErrParticipantNotFound
			break
		}
		// The claimed winner is ignored; the room decides on its own health values.
		events = recheckDefeat(&next)
	default:
		err = ErrUnsupportedCommand
	}

	if err != nil {
		return nil, s, err
	}
	return events, next, nil
}

func join(s *State, cmd Command) ([]Event, error) {
	if cmd.ParticipantID == "" {
		return nil, fmt.Errorf("%w: missing participant id", ErrInvalidAction)
	}
	if s.participant(cmd.ParticipantID) != nil {
		return nil, nil
	}
	if len(s.Participants) >= MaxParticipants {
		return nil, ErrRoomFull
	}
	if s.Phase == PhaseCombat || s.Phase == PhaseGameOver {
		return nil, ErrMatchInProgress
	}

	s.Participants = append(s.Participants, Participant{ID: cmd.ParticipantID})
	events := []Event{{Type: EvtParticipantJoined, ParticipantID: cmd.ParticipantID}}
	if len(s.Participants) == MaxParticipants {
		s.Phase = PhaseSelecting
		events = append(events, Event{Type: EvtSelectionStarted})
	}
	return events, nil
}

func leave(s *State, cmd Command) ([]Event, error) {
	i := s.indexOf(cmd.ParticipantID)
	if i < 0 {
		return nil, ErrParticipantNotFound
	}
	s.Participants = slices.Delete(s.Participants, i, i+1)
	events := []Event{{Type: EvtParticipantLeft, ParticipantID: cmd.ParticipantID}}

	switch s.Phase {
	case PhaseWaiting, PhaseSelecting:
		s.Phase = PhaseWaiting
		for j := range s.Participants {
			p := &s.Participants[j]
			if p.Character != nil {
				p.Health = p.Character.BaseHealth
			}
			p.SpecialReadyIn = 0
		}

	case PhaseCountdown, PhaseCombat:
		s.Countdown = 0
		if len(s.Participants) > 0 {
			events = append(events, finish(s, s.Participants[0].ID, ReasonForfeit))
		}
	}

	if len(s.Participants) == 0 {
		events = append(events, Event{Type: EvtRoomEmptied})
	}
	return events, nil
}

func pickCharacter(s *State, cmd Command) ([]Event, error) {
	if s.Phase != PhaseSelecting {
		return nil, ErrWrongPhase
	}
	p := s.participant(cmd.ParticipantID)
	if p == nil {
		return nil, ErrParticipantNotFound
	}
	if p.Character != nil {
		return nil, ErrAlreadyPicked
	}
	c, err := Lookup(cmd.Archetype)
	if err != nil {
		return nil, err
	}

	p.Character = &c
	p.Health = c.BaseHealth
	p.SpecialReadyIn = 0

	events := []Event{{Type: EvtCharacterPicked, ParticipantID: p.ID, Archetype: c.Archetype, Health: p.Health}}
	return append(events, maybeStartCountdown(s)...), nil
}

func maybeStartCountdown(s *State) []Event {
	if s.Phase != PhaseSelecting || !s.AllPicked() {
		return nil
	}
	if s.Rules.CountdownTicks <= 0 {
		return startCombat(s)
	}
	s.Phase = PhaseCountdown
	s.Countdown = s.Rules.CountdownTicks
	return []Event{{Type: EvtCountdown, Remaining: s.Countdown}}
}

func countdownTick(s *State) ([]Event, error) {
	if s.Phase != PhaseCountdown {
		return nil, ErrWrongPhase
	}
	s.Countdown--
	if s.Countdown > 0 {
		return []Event{{Type: EvtCountdown, Remaining: s.Countdown}}, nil
	}
	return startCombat(s), nil
}

func startCombat(s *State) []Event {
	s.Countdown = 0
	s.Phase = PhaseCombat
	s.Turn = firstTurn(*s)
	return []Event{
		{Type: EvtCombatStarted},
		{Type: EvtTurnChanged, ParticipantID: s.Turn},
	}
}

func act(s *State, cmd Command) ([]Event, error) {
	if s.Phase != PhaseCombat {
		return nil, ErrWrongPhase
	}
	actor := s.participant(cmd.ParticipantID)
	if actor == nil {
		return nil, ErrParticipantNotFound
	}
	if s.Turn != actor.ID {
		return nil, ErrWrongTurn
	}

	var events []Event
	switch cmd.Type {
	case CmdHeal:
		actor.Health = ApplyHeal(*actor.Character, actor.Health)
		cooldown(actor)
		events = append(events, Event{Type: EvtHealthUpdated, ParticipantID: actor.ID, Health: actor.Health})

	default:
		target := s.participant(cmd.TargetID)
		if target == nil {
			return nil, ErrParticipantNotFound
		}
		if target.ID == actor.ID {
			return nil, ErrInvalidTarget
		}
		if cmd.Type == CmdSpecialMove {
			if actor.SpecialReadyIn > 0 {
				return nil, ErrSpecialNotReady
			}
			target.Health = ApplySpecial(*actor.Character, target.Health)
			actor.SpecialReadyIn = actor.Character.SpecialCooldown
		} else {
			target.Health = ApplyAttack(*actor.Character, target.Health)
			cooldown(actor)
		}
		events = append(events, Event{Type: EvtHealthUpdated, ParticipantID: target.ID, Health: target.Health})
	}

	if winner, ok := decideWinner(*s, actor.ID); ok {
		return append(events, finish(s, winner, ReasonDefeat)), nil
	}

	s.Turn = nextTurn(*s, actor.ID)
	return append(events, Event{Type: EvtTurnChanged, ParticipantID: s.Turn}), nil
}

func cooldown(p *Participant) {
	if p.SpecialReadyIn > 0 {
		p.SpecialReadyIn--
	}
}

// decideWinner checks both healths after mover acted. When both are down the
// mover wins.
func decideWinner(s State, mover string) (string, bool) {
	actor := s.participant(mover)
	opp := s.Opponent(mover)
	if actor == nil || opp == nil {
		return "", false
	}
	if opp.Health <= 0 {
		return actor.ID, true
	}
	if actor.Health <= 0 {
		return opp.ID, true
	}
	return "", false
}

func recheckDefeat(s *State) []Event {
	if s.Phase != PhaseCombat {
		return nil
	}
	if winner, ok := decideWinner(*s, s.Turn); ok {
		return []Event{finish(s, winner, ReasonDefeat)}
	}
	return nil
}

func finish(s *State, winner, reason string) Event {
	s.Phase = PhaseGameOver
	s.Winner = winner
	s.Turn = ""
	return Event{Type: EvtGameOver, ParticipantID: winner, Reason: reason}
}
