package game

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// Turn is the round-local state of the active team's attempt. It lives only
// while the status is PLAYING and is never persisted.
type Turn struct {
	Key       TaskKey
	RoundType RoundType
	StartedAt time.Time
	Deadline  time.Time
	HintUsed  bool
	Judging   bool
	Revealed  bool
}

// TurnOutcome is what the round result screen shows: the points after all
// penalties, the evaluator's raw score and commentary, and the context the
// negotiation appeal argues against.
type TurnOutcome struct {
	Points       int         `json:"points"`
	RawScore     int         `json:"rawScore"`
	Message      string      `json:"message"`
	Definition   string      `json:"definition,omitempty"`
	UserImageURL string      `json:"userImageUrl,omitempty"`
	Context      TurnContext `json:"context"`
}

// SubmitResult reports how a submission ended: either the turn completed, or
// the score missed the minimum bar and the answer was revealed for a forced
// zero-point finish.
type SubmitResult struct {
	Completed bool         `json:"completed"`
	Revealed  bool         `json:"revealed"`
	Target    string       `json:"target,omitempty"`
	Outcome   *TurnOutcome `json:"outcome,omitempty"`
}

// TaskView is the client-facing readiness of the active key's handle.
type TaskView struct {
	Status string `json:"status"`
	Task   Task   `json:"task,omitempty"`
	Error  string `json:"error,omitempty"`
}

// CurrentTask polls the task handle for the active (round, team) key. Other
// keys' pending operations never block this.
func (m *Manager) CurrentTask() (TaskView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status != StatusPlaying || m.turn == nil {
		return TaskView{}, ErrInvalidStatus
	}
	handle, ok := m.cache.Get(m.turn.Key)
	if !ok {
		return TaskView{Status: TaskPending.String()}, nil
	}
	task, err, settled := handle.Poll()
	switch {
	case !settled:
		return TaskView{Status: TaskPending.String()}, nil
	case err != nil:
		return TaskView{Status: TaskFailed.String(), Error: err.Error()}, nil
	default:
		return TaskView{Status: TaskResolved.String(), Task: task}, nil
	}
}

// UseHint reveals the hint for the active turn at a flat point penalty,
// once per turn. The explanation round has no hint.
func (m *Manager) UseHint() (string, error) {
	m.mu.Lock()
	if m.state.Status != StatusPlaying || m.turn == nil {
		m.mu.Unlock()
		return "", ErrInvalidStatus
	}
	if m.turn.HintUsed {
		m.mu.Unlock()
		return "", ErrHintUsed
	}
	task, err := m.resolvedTaskLocked()
	if err != nil {
		m.mu.Unlock()
		return "", err
	}
	var hint string
	switch t := task.(type) {
	case ImageTask:
		hint = t.Hint
	case SongTask:
		hint = t.Hint
	case PromptTask:
		hint = strings.Join(t.Keywords, ", ")
	default:
		m.mu.Unlock()
		return "", ErrNoHint
	}
	m.turn.HintUsed = true
	m.mu.Unlock()
	m.changed()
	return hint, nil
}

// RetryTask evicts the active key's cache entry and re-triggers the preload
// scheduler. The stale in-flight generation is not cancelled; its handle is
// simply unreachable once a replacement occupies the key.
func (m *Manager) RetryTask() error {
	m.mu.Lock()
	if m.state.Status != StatusPlaying || m.turn == nil {
		m.mu.Unlock()
		return ErrInvalidStatus
	}
	m.cache.Evict(m.turn.Key)
	m.retryCount++
	m.log.Info().Stringer("key", m.turn.Key).Int("retry", m.retryCount).Msg("task retry requested")
	m.sched.Rescan(m.state)
	m.mu.Unlock()
	m.changed()
	return nil
}

// SubmitAnswer judges the active team's answer. The evaluation call runs
// without the manager lock; a restart or other race during judging simply
// discards the result.
func (m *Manager) SubmitAnswer(ctx context.Context, answer string) (SubmitResult, error) {
	m.mu.Lock()
	if m.state.Status != StatusPlaying || m.turn == nil {
		m.mu.Unlock()
		return SubmitResult{}, ErrInvalidStatus
	}
	if m.turn.Judging {
		m.mu.Unlock()
		return SubmitResult{}, ErrJudging
	}
	task, err := m.resolvedTaskLocked()
	if err != nil {
		m.mu.Unlock()
		return SubmitResult{}, err
	}
	turn := m.turn
	turn.Judging = true
	overtime := m.clock().After(turn.Deadline)
	hintUsed := turn.HintUsed
	m.mu.Unlock()

	res, evalErr := m.evaluate(ctx, task, answer)

	m.mu.Lock()
	if m.turn != turn || m.state.Status != StatusPlaying {
		// The session moved on (restart) while judging; drop the result.
		m.mu.Unlock()
		return SubmitResult{}, ErrInvalidStatus
	}
	turn.Judging = false

	tctx := TurnContext{UserAnswer: answer, Target: targetOf(task), IsOvertime: overtime}

	if evalErr != nil {
		// Evaluation failure must never wedge the game: the turn completes
		// with zero points and a generic message.
		m.log.Warn().Err(evalErr).Stringer("key", turn.Key).Msg("evaluation failed")
		out := m.completeTurnLocked(0, 0, "Не удалось проверить ответ. Баллы не начислены.", "", "", task.ContentID(), tctx)
		m.mu.Unlock()
		m.changed()
		return SubmitResult{Completed: true, Outcome: out}, nil
	}

	points := applyPenalties(res.raw, hintUsed, overtime, m.cat.HintPenalty)
	if res.barred && points < m.cat.MinScore {
		// Below the minimum bar: reveal the answer, then force a zero-point
		// completion via GiveUp when the team confirms.
		turn.Revealed = true
		m.mu.Unlock()
		m.changed()
		return SubmitResult{Revealed: true, Target: tctx.Target}, nil
	}

	message := res.message
	if penalty := penaltyNote(hintUsed, overtime, m.cat.HintPenalty); penalty != "" {
		message = fmt.Sprintf("%s %s", message, penalty)
	}
	out := m.completeTurnLocked(points, res.raw, message, res.definition, res.userImageURL, task.ContentID(), tctx)
	m.mu.Unlock()
	m.changed()
	return SubmitResult{Completed: true, Outcome: out}, nil
}

// GiveUp ends the turn with zero points. The round's target is still burned
// into the used-content ledger so it cannot come back later in the session.
func (m *Manager) GiveUp() (*TurnOutcome, error) {
	m.mu.Lock()
	if m.state.Status != StatusPlaying || m.turn == nil {
		m.mu.Unlock()
		return nil, ErrInvalidStatus
	}
	if m.turn.Judging {
		m.mu.Unlock()
		return nil, ErrJudging
	}
	contentID := ""
	target := "—"
	message := "Команда сдалась."
	if handle, ok := m.cache.Get(m.turn.Key); ok {
		if task, err, settled := handle.Poll(); settled && err == nil {
			contentID = task.ContentID()
			if t := targetOf(task); t != "" {
				target = t
				message = fmt.Sprintf("Не повезло! Правильный ответ: %q.", t)
			}
		}
	}
	tctx := TurnContext{UserAnswer: "Сдались", Target: target, IsOvertime: false}
	out := m.completeTurnLocked(0, 0, message, "", "", contentID, tctx)
	m.mu.Unlock()
	m.changed()
	return out, nil
}

// completeTurnLocked applies the one scoring mutation a turn can make:
// points to the current team, its player cursor forward by one, the content
// ID into the ledger, the result into history, status to ROUND_RESULT.
func (m *Manager) completeTurnLocked(points, raw int, message, definition, userImageURL, contentID string, tctx TurnContext) *TurnOutcome {
	team := &m.state.Teams[m.state.TeamIndex]
	team.Score += points
	team.NextPlayerIndex++
	if contentID != "" {
		m.state.UsedContent = append(m.state.UsedContent, contentID)
	}
	m.state.History = append(m.state.History, RoundResult{
		RoundType:     m.turn.RoundType,
		TeamID:        team.ID,
		PointsEarned:  points,
		AIMessage:     message,
		Definition:    definition,
		CorrectAnswer: tctx.Target,
		UserAnswer:    tctx.UserAnswer,
	})
	m.outcome = &TurnOutcome{
		Points:       points,
		RawScore:     raw,
		Message:      message,
		Definition:   definition,
		UserImageURL: userImageURL,
		Context:      tctx,
	}
	m.negotiation = Negotiation{Status: NegotiationUnavailable}
	if !tctx.IsOvertime && points < m.cat.MaxPoints {
		m.negotiation.Status = NegotiationAvailable
	}
	m.turn = nil
	m.state.Status = StatusRoundResult
	m.log.Info().
		Str("team", team.Name).
		Int("points", points).
		Int("score", team.Score).
		Msg("turn completed")
	m.persistLocked()
	m.sched.Rescan(m.state)
	return m.outcome
}

func (m *Manager) resolvedTaskLocked() (Task, error) {
	handle, ok := m.cache.Get(m.turn.Key)
	if !ok {
		return nil, ErrTaskNotReady
	}
	task, err, settled := handle.Poll()
	if !settled {
		return nil, ErrTaskNotReady
	}
	if err != nil {
		return nil, ErrTaskFailed
	}
	return task, nil
}

// evalResult normalizes the per-round-type evaluator outputs.
type evalResult struct {
	raw          int
	message      string
	definition   string
	userImageURL string
	barred       bool // subject to the minimum-score bar
}

func (m *Manager) evaluate(ctx context.Context, task Task, answer string) (evalResult, error) {
	switch t := task.(type) {
	case ImageTask:
		j, err := m.provider.JudgeAnswer(ctx, t.Target, answer)
		if err != nil {
			return evalResult{}, err
		}
		msg := fmt.Sprintf("Оценка ИИ: %d/10.\n%s\nПравильный ответ: %q.", j.Score, j.Feedback, t.Target)
		return evalResult{raw: j.Score, message: msg, barred: true}, nil
	case SongTask:
		j, err := m.provider.JudgeAnswer(ctx, t.Target, answer)
		if err != nil {
			return evalResult{}, err
		}
		msg := fmt.Sprintf("Оценка ИИ: %d/10.\n%s\nЭто действительно %q.", j.Score, j.Feedback, t.Target)
		return evalResult{raw: j.Score, message: msg, barred: true}, nil
	case ExplainTask:
		e, err := m.provider.EvaluateExplanation(ctx, t.Word, answer)
		if err != nil {
			return evalResult{}, err
		}
		msg := fmt.Sprintf("ИИ решил: %q.\n%s", e.AIGuess, e.Reasoning)
		return evalResult{raw: e.Points, message: msg, definition: e.Definition}, nil
	case PromptTask:
		p, err := m.provider.EvaluatePromptBattle(ctx, t.TargetImageURL, answer)
		if err != nil {
			return evalResult{}, err
		}
		raw := int(math.Round(float64(p.Similarity) / 10))
		msg := fmt.Sprintf("Сходство %d%%.\n%s", p.Similarity, p.Feedback)
		return evalResult{raw: raw, message: msg, userImageURL: p.UserImageURL}, nil
	default:
		return evalResult{}, fmt.Errorf("unknown task type %T", task)
	}
}

// applyPenalties turns a raw evaluator score into awarded points. The hint
// penalty is subtracted first, then overtime halves what is left, with floor
// division.
func applyPenalties(raw int, hintUsed, overtime bool, hintPenalty int) int {
	points := raw
	if hintUsed && points > 0 {
		points -= hintPenalty
		if points < 0 {
			points = 0
		}
	}
	if overtime {
		points /= 2
	}
	return points
}

func penaltyNote(hintUsed, overtime bool, hintPenalty int) string {
	var parts []string
	if hintUsed {
		parts = append(parts, fmt.Sprintf("(-%d за подсказку)", hintPenalty))
	}
	if overtime {
		parts = append(parts, "(/2 за время)")
	}
	return strings.Join(parts, " ")
}

func targetOf(task Task) string {
	switch t := task.(type) {
	case ImageTask:
		return t.Target
	case SongTask:
		return t.Target
	case ExplainTask:
		return t.Word
	case PromptTask:
		return strings.Join(t.Keywords, ", ")
	default:
		return ""
	}
}
