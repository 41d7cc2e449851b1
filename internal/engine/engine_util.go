package engine

const DefaultCountdownTicks = 3

func NewEmptyState() State {
	return State{
		Phase:        PhaseWaiting,
		Participants: make([]Participant, 0, MaxParticipants),
		Rules:        Rules{CountdownTicks: DefaultCountdownTicks},
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// Clone copies the participant list so the result can be mutated freely.
// Characters are shared; they are never written after a pick.
func (s State) Clone() State {
	out := s
	out.Participants = make([]Participant, len(s.Participants), max(len(s.Participants), MaxParticipants))
	copy(out.Participants, s.Participants)
	return out
}

// Open reports whether the room is still looking for players.
func (s State) Open() bool {
	return s.Phase == PhaseWaiting && len(s.Participants) < MaxParticipants
}

func (s State) AllPicked() bool {
	if len(s.Participants) < MaxParticipants {
		return false
	}
	for _, p := range s.Participants {
		if p.Character == nil {
			return false
		}
	}
	return true
}

func (s State) Has(id string) bool {
	return s.indexOf(id) >= 0
}

// Participant returns a copy of the participant with the given id.
func (s State) Participant(id string) (Participant, bool) {
	if p := s.participant(id); p != nil {
		return *p, true
	}
	return Participant{}, false
}

// Opponent returns the other participant in the room, or nil.
func (s *State) Opponent(id string) *Participant {
	if s.indexOf(id) < 0 {
		return nil
	}
	for i := range s.Participants {
		if s.Participants[i].ID != id {
			return &s.Participants[i]
		}
	}
	return nil
}

func (s *State) participant(id string) *Participant {
	if i := s.indexOf(id); i >= 0 {
		return &s.Participants[i]
	}
	return nil
}

func (s State) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, p := range s.Participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}
