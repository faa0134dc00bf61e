package game

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeProvider is the in-memory stand-in for the content service. Each hook
// defaults to a cheap deterministic payload; tests override what they need.
type fakeProvider struct {
	mu        sync.Mutex
	generated []generateCall

	generate  func(rt RoundType, settings Settings, excluded []string) (Task, error)
	judge     func(target, answer string) (Judgement, error)
	explain   func(word, explanation string) (Explanation, error)
	prompt    func(targetImageURL, prompt string) (PromptScore, error)
	negotiate func(target, answer, argument string, maxAddable int) (NegotiationVerdict, error)
}

type generateCall struct {
	RoundType RoundType
	Themes    []string
	Excluded  []string
}

func (f *fakeProvider) GenerateTask(_ context.Context, rt RoundType, settings Settings, excluded []string) (Task, error) {
	f.mu.Lock()
	f.generated = append(f.generated, generateCall{
		RoundType: rt,
		Themes:    append([]string(nil), settings.Themes...),
		Excluded:  append([]string(nil), excluded...),
	})
	f.mu.Unlock()
	if f.generate != nil {
		return f.generate(rt, settings, excluded)
	}
	switch rt {
	case RoundScientificSongs:
		return SongTask{Lyrics: "la la", Target: "song", Hint: "h"}, nil
	case RoundExplainToAI:
		return ExplainTask{Word: "word"}, nil
	case RoundPromptBattle:
		return PromptTask{TargetImageURL: "data:,target", Keywords: []string{"a", "b"}}, nil
	default:
		return ImageTask{ImageURL: "data:,img", Target: "cat", Hint: "meows"}, nil
	}
}

func (f *fakeProvider) calls() []generateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]generateCall(nil), f.generated...)
}

func (f *fakeProvider) JudgeAnswer(_ context.Context, target, answer string) (Judgement, error) {
	if f.judge != nil {
		return f.judge(target, answer)
	}
	return Judgement{Score: 10, Feedback: "ok"}, nil
}

func (f *fakeProvider) EvaluateExplanation(_ context.Context, word, explanation string) (Explanation, error) {
	if f.explain != nil {
		return f.explain(word, explanation)
	}
	return Explanation{IsCorrect: true, AIGuess: word, Points: 10, Reasoning: "ok", Definition: "def"}, nil
}

func (f *fakeProvider) EvaluatePromptBattle(_ context.Context, targetImageURL, prompt string) (PromptScore, error) {
	if f.prompt != nil {
		return f.prompt(targetImageURL, prompt)
	}
	return PromptScore{UserImageURL: "data:,user", Similarity: 100, Feedback: "ok"}, nil
}

func (f *fakeProvider) EvaluateNegotiation(_ context.Context, target, answer, argument string, maxAddable int) (NegotiationVerdict, error) {
	if f.negotiate != nil {
		return f.negotiate(target, answer, argument, maxAddable)
	}
	return NegotiationVerdict{Approved: false, Reply: "no"}, nil
}

func testCatalog(t *testing.T) Catalog {
	t.Helper()
	cat, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("loading built-in catalog: %v", err)
	}
	return cat
}

func newTestManager(t *testing.T, fake *fakeProvider) *Manager {
	t.Helper()
	cat := testCatalog(t)
	store := NewStore(filepath.Join(t.TempDir(), "state.json"), zerolog.Nop())
	return NewManager(cat, fake, store, zerolog.Nop())
}

func testSettings(cat Catalog) Settings {
	return Settings{
		Difficulty:    DifficultyMedium,
		AverageAge:    25,
		Themes:        append([]string(nil), cat.Themes...),
		SpeechEnabled: true,
	}
}

// startedManager runs onboarding with the given teams and returns the
// manager in ROUND_INTRO.
func startedManager(t *testing.T, fake *fakeProvider, teams ...NewTeam) *Manager {
	t.Helper()
	m := newTestManager(t, fake)
	if err := m.BeginSetup(); err != nil {
		t.Fatalf("BeginSetup: %v", err)
	}
	if err := m.StartGame(testSettings(m.cat), teams); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	return m
}

// intoPlaying advances a ROUND_INTRO manager through TURN_START into PLAYING
// and waits for the active key's task to settle.
func intoPlaying(t *testing.T, m *Manager) {
	t.Helper()
	if m.Snapshot().Status == StatusRoundIntro {
		if err := m.RoundIntroDone(); err != nil {
			t.Fatalf("RoundIntroDone: %v", err)
		}
	}
	if err := m.TurnReady(); err != nil {
		t.Fatalf("TurnReady: %v", err)
	}
	st := m.Snapshot()
	awaitTask(t, m, TaskKey{Round: st.RoundIndex, Team: st.TeamIndex})
}

func awaitTask(t *testing.T, m *Manager, key TaskKey) Task {
	t.Helper()
	handle, ok := m.cache.Get(key)
	if !ok {
		t.Fatalf("no cache entry for %s", key)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	task, err := handle.Await(ctx)
	if err != nil {
		t.Fatalf("awaiting task %s: %v", key, err)
	}
	return task
}
