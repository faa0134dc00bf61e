package game

import "context"

type NegotiationStatus string

const (
	NegotiationUnavailable NegotiationStatus = "UNAVAILABLE"
	NegotiationAvailable   NegotiationStatus = "AVAILABLE"
	NegotiationInput       NegotiationStatus = "INPUT"
	NegotiationProcessing  NegotiationStatus = "PROCESSING"
	NegotiationCompleted   NegotiationStatus = "COMPLETED"
)

// Negotiation is the opt-in appeals flow on the round result screen. It is
// offered only when the turn was not scored in overtime and earned fewer
// than the maximum points, and it runs at most once per round result.
type Negotiation struct {
	Status NegotiationStatus   `json:"status"`
	Result *NegotiationVerdict `json:"result,omitempty"`
}

// OpenNegotiation moves the appeal from offered to argument input.
func (m *Manager) OpenNegotiation() error {
	m.mu.Lock()
	if m.state.Status != StatusRoundResult || m.negotiation.Status != NegotiationAvailable {
		m.mu.Unlock()
		return ErrNoNegotiation
	}
	m.negotiation.Status = NegotiationInput
	m.mu.Unlock()
	m.changed()
	return nil
}

// SubmitNegotiation judges the team's free-text argument. The awarded bonus
// is capped at the gap between the points already earned and the maximum; on
// approval it is added to both the displayed result and the team's score.
// Completion is terminal: no second appeal for this round result.
func (m *Manager) SubmitNegotiation(ctx context.Context, argument string) (*NegotiationVerdict, error) {
	if argument == "" {
		return nil, ErrEmptyArgument
	}
	m.mu.Lock()
	if m.state.Status != StatusRoundResult || m.outcome == nil {
		m.mu.Unlock()
		return nil, ErrNoNegotiation
	}
	if m.negotiation.Status != NegotiationInput && m.negotiation.Status != NegotiationAvailable {
		m.mu.Unlock()
		return nil, ErrNoNegotiation
	}
	maxAddable := m.cat.MaxPoints - m.outcome.Points
	if maxAddable <= 0 {
		m.negotiation.Status = NegotiationCompleted
		m.mu.Unlock()
		return nil, ErrNoNegotiation
	}
	outcome := m.outcome
	target := outcome.Context.Target
	answer := outcome.Context.UserAnswer
	m.negotiation.Status = NegotiationProcessing
	m.mu.Unlock()
	m.changed()

	verdict, err := m.provider.EvaluateNegotiation(ctx, target, answer, argument, maxAddable)

	m.mu.Lock()
	if m.state.Status != StatusRoundResult || m.outcome != outcome {
		m.mu.Unlock()
		return nil, ErrNoNegotiation
	}
	if err != nil {
		// A failed appeal call ends the flow quietly; the score stands.
		m.log.Warn().Err(err).Msg("negotiation evaluation failed")
		m.negotiation = Negotiation{Status: NegotiationCompleted}
		m.mu.Unlock()
		m.changed()
		return nil, err
	}
	if verdict.PointsAwarded > maxAddable {
		verdict.PointsAwarded = maxAddable
	}
	if verdict.PointsAwarded < 0 {
		verdict.PointsAwarded = 0
	}
	if verdict.Approved && verdict.PointsAwarded > 0 {
		m.outcome.Points += verdict.PointsAwarded
		m.state.Teams[m.state.TeamIndex].Score += verdict.PointsAwarded
		m.log.Info().
			Int("bonus", verdict.PointsAwarded).
			Str("team", m.state.Teams[m.state.TeamIndex].Name).
			Msg("negotiation approved")
		m.persistLocked()
	}
	m.negotiation = Negotiation{Status: NegotiationCompleted, Result: &verdict}
	m.mu.Unlock()
	m.changed()
	return &verdict, nil
}
