package game

import (
	"context"

	"github.com/rs/zerolog"
)

// Scheduler keeps the task cache filled ahead of play. It is invoked after
// every progression change and consults the cache synchronously; generation
// calls themselves are fired concurrently and settle into their handles in
// any order.
type Scheduler struct {
	cache    *TaskCache
	provider Provider
	cat      Catalog
	log      zerolog.Logger
}

func NewScheduler(cache *TaskCache, provider Provider, cat Catalog, log zerolog.Logger) *Scheduler {
	return &Scheduler{cache: cache, provider: provider, cat: cat, log: log}
}

// Rescan runs the three preload checks for the given progression position:
// current-round completeness, lookahead to the next round, and the early
// final-round trigger. It only acts while the game is between the round
// intro and the active turn; outside those statuses nothing is missing by
// definition.
func (s *Scheduler) Rescan(st State) {
	switch st.Status {
	case StatusRoundIntro, StatusTurnStart, StatusPlaying:
	default:
		return
	}
	teamCount := len(st.Teams)
	if teamCount == 0 {
		return
	}
	cur := st.RoundIndex

	needsFill := false
	for team := 0; team < teamCount; team++ {
		if !s.cache.Has(TaskKey{Round: cur, Team: team}) {
			needsFill = true
			break
		}
	}

	// The first team's key is a cheap proxy for "round not yet touched".
	next := cur + 1
	if next < s.cat.TotalRounds() && !s.cache.Has(TaskKey{Round: next, Team: 0}) {
		needsFill = true
	}

	// The final round reuses the opening round type and its generation is
	// slow, so it is kicked off two rounds ahead of schedule.
	if cur == 1 {
		final := s.cat.FinalRoundIndex()
		if !s.cache.Has(TaskKey{Round: final, Team: 0}) {
			s.log.Info().Int("round", final).Msg("preloading final round early")
			s.FillRound(final, teamCount, st.Settings, st.UsedContent)
		}
	}

	if needsFill {
		s.FillRound(cur, teamCount, st.Settings, st.UsedContent)
		if next < s.cat.TotalRounds() {
			s.FillRound(next, teamCount, st.Settings, st.UsedContent)
		}
	}
}

// PreloadOpening eagerly fills every round but the final one for all teams.
// Nothing has been played yet, so the exclusion set is empty.
func (s *Scheduler) PreloadOpening(teamCount int, settings Settings) {
	for round := 0; round < s.cat.FinalRoundIndex(); round++ {
		s.FillRound(round, teamCount, settings, nil)
	}
}

// FillRound issues one generation call per missing team key. All calls are
// fired concurrently so latency does not compound across teams. The
// used-content ledger is snapshotted at scheduling time and not re-read
// while calls are in flight.
func (s *Scheduler) FillRound(round, teamCount int, settings Settings, usedContent []string) {
	rt := s.cat.RoundTypeAt(round)
	if rt == "" {
		return
	}
	excluded := append([]string(nil), usedContent...)
	for team := 0; team < teamCount; team++ {
		key := TaskKey{Round: round, Team: team}
		handle := NewTaskHandle()
		if !s.cache.Put(key, handle) {
			continue
		}
		go s.generate(key, handle, rt, scopedSettings(settings, round, team), excluded)
	}
}

func (s *Scheduler) generate(key TaskKey, handle *TaskHandle, rt RoundType, settings Settings, excluded []string) {
	task, err := s.provider.GenerateTask(context.Background(), rt, settings, excluded)
	if err != nil {
		s.log.Warn().Err(err).Stringer("key", key).Str("round_type", string(rt)).Msg("task generation failed")
		handle.Fail(err)
		return
	}
	s.log.Debug().Stringer("key", key).Str("round_type", string(rt)).Msg("task ready")
	handle.Resolve(task)
}

// scopedSettings narrows the theme set to the single rotated theme for the
// key, so consecutive teams in a round see different themes and repeated
// plays cycle through the whole pool.
func scopedSettings(settings Settings, round, team int) Settings {
	if len(settings.Themes) == 0 {
		return settings
	}
	scoped := settings
	scoped.Themes = []string{settings.Themes[(team+round)%len(settings.Themes)]}
	return scoped
}
