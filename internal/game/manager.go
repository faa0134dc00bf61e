package game

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidStatus = errors.New("invalid status for action")
	ErrNoTeams       = errors.New("at least one team is required")
	ErrEmptyTeam     = errors.New("every team needs at least one player")
	ErrNoThemes      = errors.New("at least one theme is required")
	ErrTaskNotReady  = errors.New("task not ready")
	ErrTaskFailed    = errors.New("task generation failed")
	ErrJudging       = errors.New("evaluation already in progress")
	ErrHintUsed      = errors.New("hint already used")
	ErrNoHint        = errors.New("round has no hint")
	ErrNoNegotiation = errors.New("negotiation not available")
	ErrEmptyArgument = errors.New("negotiation argument is empty")
)

// NewTeam is the onboarding input for one team.
type NewTeam struct {
	Name    string   `json:"name"`
	Players []string `json:"players"`
}

// Manager is the authoritative game session: the progression state machine,
// the task cache and its preload scheduler, and the session store. All
// mutations run under one mutex; content-service calls never hold it.
type Manager struct {
	mu       sync.Mutex
	cat      Catalog
	provider Provider
	store    *Store
	cache    *TaskCache
	sched    *Scheduler
	log      zerolog.Logger
	clock    func() time.Time

	state       State
	retryCount  int
	turn        *Turn
	outcome     *TurnOutcome
	negotiation Negotiation

	onChange func(View)
}

// NewManager restores the persisted session (or starts a fresh one) and runs
// a recovery preload pass: the task cache is never persisted, so after a
// reload every outstanding key has to be regenerated.
func NewManager(cat Catalog, provider Provider, store *Store, log zerolog.Logger) *Manager {
	m := &Manager{
		cat:         cat,
		provider:    provider,
		store:       store,
		cache:       NewTaskCache(),
		log:         log,
		clock:       time.Now,
		negotiation: Negotiation{Status: NegotiationUnavailable},
	}
	m.sched = NewScheduler(m.cache, provider, cat, log)
	m.state = store.Load(m.defaultState())
	if m.state.Status == StatusPlaying {
		// A reload mid-turn loses the turn timer; hand the device back to
		// the same team instead of resuming a half-finished countdown.
		m.state.Status = StatusTurnStart
	}
	m.sched.Rescan(m.state)
	return m
}

func (m *Manager) defaultState() State {
	return State{
		Settings: Settings{
			Difficulty:    DifficultyMedium,
			AverageAge:    25,
			Themes:        append([]string(nil), m.cat.Themes...),
			SpeechEnabled: true,
		},
		Status: StatusWelcome,
	}
}

// SetOnChange registers the observer notified after every mutation. Used by
// the socket layer to push state to connected screens.
func (m *Manager) SetOnChange(fn func(View)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// BeginSetup moves from the welcome screen into onboarding.
func (m *Manager) BeginSetup() error {
	m.mu.Lock()
	if m.state.Status != StatusWelcome {
		m.mu.Unlock()
		return ErrInvalidStatus
	}
	m.state.Status = StatusSetup
	m.persistLocked()
	m.mu.Unlock()
	m.changed()
	return nil
}

// BackToWelcome abandons onboarding.
func (m *Manager) BackToWelcome() error {
	m.mu.Lock()
	if m.state.Status != StatusSetup {
		m.mu.Unlock()
		return ErrInvalidStatus
	}
	m.state.Status = StatusWelcome
	m.persistLocked()
	m.mu.Unlock()
	m.changed()
	return nil
}

// StartGame confirms settings and teams, enters the first round intro and
// kicks off the opening batch preload covering every round but the final.
func (m *Manager) StartGame(settings Settings, teams []NewTeam) error {
	if len(teams) == 0 {
		return ErrNoTeams
	}
	for _, t := range teams {
		if len(t.Players) == 0 {
			return ErrEmptyTeam
		}
	}
	if len(settings.Themes) == 0 {
		return ErrNoThemes
	}

	m.mu.Lock()
	if m.state.Status != StatusSetup && m.state.Status != StatusWelcome {
		m.mu.Unlock()
		return ErrInvalidStatus
	}
	built := make([]Team, len(teams))
	for i, t := range teams {
		name := t.Name
		if name == "" && len(m.cat.TeamNames) > 0 {
			name = m.cat.TeamNames[i%len(m.cat.TeamNames)]
		}
		color := ""
		if len(m.cat.TeamColors) > 0 {
			color = m.cat.TeamColors[i%len(m.cat.TeamColors)]
		}
		built[i] = Team{
			ID:      uuid.NewString(),
			Name:    name,
			Players: append([]string(nil), t.Players...),
			Color:   color,
		}
	}
	m.state.Settings = settings
	m.state.Teams = built
	m.state.RoundIndex = 0
	m.state.TeamIndex = 0
	m.state.Status = StatusRoundIntro
	m.state.UsedContent = nil
	m.state.History = nil
	m.retryCount = 0
	m.turn = nil
	m.outcome = nil
	m.negotiation = Negotiation{Status: NegotiationUnavailable}
	m.persistLocked()
	m.log.Info().Int("teams", len(built)).Msg("game started")
	m.sched.PreloadOpening(len(built), settings)
	m.mu.Unlock()
	m.changed()
	return nil
}

// RoundIntroDone advances from the per-round intro to the turn handoff.
func (m *Manager) RoundIntroDone() error {
	m.mu.Lock()
	if m.state.Status != StatusRoundIntro {
		m.mu.Unlock()
		return ErrInvalidStatus
	}
	m.state.Status = StatusTurnStart
	m.persistLocked()
	m.sched.Rescan(m.state)
	m.mu.Unlock()
	m.changed()
	return nil
}

// TurnReady starts the active team's turn and its countdown.
func (m *Manager) TurnReady() error {
	m.mu.Lock()
	if m.state.Status != StatusTurnStart {
		m.mu.Unlock()
		return ErrInvalidStatus
	}
	rt := m.cat.RoundTypeAt(m.state.RoundIndex)
	info := m.cat.InfoFor(rt)
	m.state.Status = StatusPlaying
	m.turn = &Turn{
		Key:       TaskKey{Round: m.state.RoundIndex, Team: m.state.TeamIndex},
		RoundType: rt,
		StartedAt: m.clock(),
		Deadline:  m.clock().Add(time.Duration(info.DurationSeconds) * time.Second),
	}
	m.persistLocked()
	m.sched.Rescan(m.state)
	m.mu.Unlock()
	m.changed()
	return nil
}

// AdvanceTurn moves to the next team's turn, crossing round boundaries and
// terminating at GAME_OVER once every round is exhausted.
func (m *Manager) AdvanceTurn() error {
	m.mu.Lock()
	if m.state.Status != StatusRoundResult {
		m.mu.Unlock()
		return ErrInvalidStatus
	}
	m.state = advanceTurn(m.state, m.cat.TotalRounds())
	m.turn = nil
	m.outcome = nil
	m.negotiation = Negotiation{Status: NegotiationUnavailable}
	m.persistLocked()
	m.log.Info().
		Int("round", m.state.RoundIndex).
		Int("team", m.state.TeamIndex).
		Str("status", string(m.state.Status)).
		Msg("turn advanced")
	m.sched.Rescan(m.state)
	m.mu.Unlock()
	m.changed()
	return nil
}

// ToggleSpeech flips the only setting that may change mid-game.
func (m *Manager) ToggleSpeech() bool {
	m.mu.Lock()
	m.state.Settings.SpeechEnabled = !m.state.Settings.SpeechEnabled
	enabled := m.state.Settings.SpeechEnabled
	m.persistLocked()
	m.mu.Unlock()
	m.changed()
	return enabled
}

// Restart discards the saved session and every in-memory remnant of it,
// including the task cache. There is no partial reset.
func (m *Manager) Restart() error {
	m.mu.Lock()
	if err := m.store.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("clearing saved session failed")
	}
	m.state = m.defaultState()
	m.cache.Clear()
	m.retryCount = 0
	m.turn = nil
	m.outcome = nil
	m.negotiation = Negotiation{Status: NegotiationUnavailable}
	m.mu.Unlock()
	m.log.Info().Msg("game restarted")
	m.changed()
	return nil
}

// advanceTurn is the pure turn-completion transition. GAME_OVER is terminal:
// no further call mutates progression.
func advanceTurn(st State, totalRounds int) State {
	if st.Status == StatusGameOver {
		return st
	}
	next := st
	next.TeamIndex++
	newRound := false
	if next.TeamIndex >= len(st.Teams) {
		next.TeamIndex = 0
		next.RoundIndex++
		newRound = true
	}
	switch {
	case next.RoundIndex >= totalRounds:
		next.Status = StatusGameOver
	case newRound:
		next.Status = StatusRoundIntro
	default:
		next.Status = StatusTurnStart
	}
	return next
}

func (m *Manager) persistLocked() {
	if err := m.store.Save(m.state); err != nil {
		m.log.Error().Err(err).Msg("persisting session failed")
	}
}

func (m *Manager) changed() {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(m.View())
	}
}

// Snapshot returns a copy of the persisted progression state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneState(m.state)
}

func cloneState(st State) State {
	out := st
	out.Teams = make([]Team, len(st.Teams))
	for i, t := range st.Teams {
		out.Teams[i] = t
		out.Teams[i].Players = append([]string(nil), t.Players...)
	}
	out.History = append([]RoundResult(nil), st.History...)
	out.UsedContent = append([]string(nil), st.UsedContent...)
	out.Settings.Themes = append([]string(nil), st.Settings.Themes...)
	return out
}
