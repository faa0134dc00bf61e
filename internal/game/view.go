package game

// TurnView is the transient turn state exposed to the client.
type TurnView struct {
	DeadlineUnix int64 `json:"deadlineUnix"`
	HintUsed     bool  `json:"hintUsed"`
	Judging      bool  `json:"judging"`
	Revealed     bool  `json:"revealed"`
}

// View is the full client-facing session snapshot pushed to screens after
// every mutation and served by the state endpoint.
type View struct {
	Status            Status       `json:"status"`
	Settings          Settings     `json:"settings"`
	Teams             []Team       `json:"teams"`
	RoundIndex        int          `json:"roundIndex"`
	TeamIndex         int          `json:"teamIndex"`
	TotalRounds       int          `json:"totalRounds"`
	RoundType         RoundType    `json:"roundType,omitempty"`
	RoundInfo         RoundInfo    `json:"roundInfo,omitempty"`
	ResponsiblePlayer string       `json:"responsiblePlayer,omitempty"`
	Turn              *TurnView    `json:"turn,omitempty"`
	Outcome           *TurnOutcome `json:"outcome,omitempty"`
	Negotiation       Negotiation  `json:"negotiation"`
	RetryCount        int          `json:"retryCount"`
	History           []RoundResult `json:"history,omitempty"`
}

func (m *Manager) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := cloneState(m.state)
	v := View{
		Status:      st.Status,
		Settings:    st.Settings,
		Teams:       st.Teams,
		RoundIndex:  st.RoundIndex,
		TeamIndex:   st.TeamIndex,
		TotalRounds: m.cat.TotalRounds(),
		Negotiation: m.negotiation,
		RetryCount:  m.retryCount,
		History:     st.History,
	}
	if rt := m.cat.RoundTypeAt(st.RoundIndex); rt != "" {
		v.RoundType = rt
		v.RoundInfo = m.cat.InfoFor(rt)
	}
	if st.TeamIndex >= 0 && st.TeamIndex < len(st.Teams) {
		v.ResponsiblePlayer = st.Teams[st.TeamIndex].ResponsiblePlayer()
	}
	if m.turn != nil {
		v.Turn = &TurnView{
			DeadlineUnix: m.turn.Deadline.Unix(),
			HintUsed:     m.turn.HintUsed,
			Judging:      m.turn.Judging,
			Revealed:     m.turn.Revealed,
		}
	}
	if m.outcome != nil {
		out := *m.outcome
		v.Outcome = &out
	}
	return v
}

// Catalog exposes the loaded content configuration (round metadata, theme
// pool, team-name suggestions) for the onboarding screens.
func (m *Manager) Catalog() Catalog { return m.cat }
