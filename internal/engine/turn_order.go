package engine

// firstTurn gives the opening turn to whoever joined first.
func firstTurn(s State) string {
	if len(s.Participants) == 0 {
		return ""
	}
	return s.Participants[0].ID
}

// nextTurn strictly alternates: the turn always moves to the other participant.
func nextTurn(s State, current string) string {
	if opp := s.Opponent(current); opp != nil {
		return opp.ID
	}
	return current
}
