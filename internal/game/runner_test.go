package game

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestApplyPenalties(t *testing.T) {
	cases := []struct {
		name     string
		raw      int
		hint     bool
		overtime bool
		want     int
	}{
		{"clean score", 10, false, false, 10},
		{"hint only", 10, true, false, 7},
		{"hint floors at zero", 2, true, false, 0},
		{"zero raw with hint stays zero", 0, true, false, 0},
		{"overtime halves with floor", 7, false, true, 3},
		{"hint then overtime", 9, true, true, 3},
		{"hint then overtime floor", 8, true, true, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := applyPenalties(c.raw, c.hint, c.overtime, 3); got != c.want {
				t.Fatalf("applyPenalties(%d, hint=%v, overtime=%v) = %d, want %d", c.raw, c.hint, c.overtime, got, c.want)
			}
		})
	}
}

func TestCurrentTaskReadiness(t *testing.T) {
	m := startedManager(t, &fakeProvider{}, NewTeam{Name: "A", Players: []string{"p"}})

	if _, err := m.CurrentTask(); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("no active turn yet, got %v", err)
	}

	intoPlaying(t, m)
	view, err := m.CurrentTask()
	if err != nil {
		t.Fatalf("CurrentTask: %v", err)
	}
	if view.Status != "resolved" || view.Task == nil {
		t.Fatalf("expected resolved task, got %+v", view)
	}

	// A pending handle reports pending without blocking.
	key := TaskKey{Round: 0, Team: 0}
	m.cache.Evict(key)
	m.cache.Put(key, NewTaskHandle())
	view, err = m.CurrentTask()
	if err != nil {
		t.Fatalf("CurrentTask: %v", err)
	}
	if view.Status != "pending" {
		t.Fatalf("expected pending, got %+v", view)
	}
}

func TestCurrentTaskReportsFailure(t *testing.T) {
	m := startedManager(t, &fakeProvider{}, NewTeam{Name: "A", Players: []string{"p"}})
	intoPlaying(t, m)

	key := TaskKey{Round: 0, Team: 0}
	m.cache.Evict(key)
	failed := NewTaskHandle()
	failed.Fail(errors.New("quota exceeded"))
	m.cache.Put(key, failed)

	view, err := m.CurrentTask()
	if err != nil {
		t.Fatalf("CurrentTask: %v", err)
	}
	if view.Status != "failed" || view.Error == "" {
		t.Fatalf("expected failed view with error, got %+v", view)
	}

	if _, err := m.SubmitAnswer(context.Background(), "кот"); !errors.Is(err, ErrTaskFailed) {
		t.Fatalf("submitting against a failed task should error, got %v", err)
	}
}

func TestUseHintOncePerTurn(t *testing.T) {
	m := startedManager(t, &fakeProvider{}, NewTeam{Name: "A", Players: []string{"p"}})
	intoPlaying(t, m)

	hint, err := m.UseHint()
	if err != nil {
		t.Fatalf("UseHint: %v", err)
	}
	if hint != "meows" {
		t.Fatalf("expected the task's hint, got %q", hint)
	}
	if _, err := m.UseHint(); !errors.Is(err, ErrHintUsed) {
		t.Fatalf("second hint should be rejected, got %v", err)
	}
}

func TestUseHintAppliesPenalty(t *testing.T) {
	fake := &fakeProvider{
		judge: func(target, answer string) (Judgement, error) {
			return Judgement{Score: 10, Feedback: "точно"}, nil
		},
	}
	m := startedManager(t, fake, NewTeam{Name: "A", Players: []string{"p"}})
	intoPlaying(t, m)

	if _, err := m.UseHint(); err != nil {
		t.Fatalf("UseHint: %v", err)
	}
	res, err := m.SubmitAnswer(context.Background(), "кот")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if res.Outcome.Points != 7 {
		t.Fatalf("10 raw with hint should award 7, got %d", res.Outcome.Points)
	}
	if res.Outcome.RawScore != 10 {
		t.Fatalf("raw score should stay unpenalized, got %d", res.Outcome.RawScore)
	}
	if !strings.Contains(res.Outcome.Message, "за подсказку") {
		t.Fatalf("message should note the hint penalty, got %q", res.Outcome.Message)
	}
}

func TestExplainRoundHasNoHint(t *testing.T) {
	m := startedManager(t, &fakeProvider{}, NewTeam{Name: "A", Players: []string{"p"}})
	intoPlaying(t, m)

	key := TaskKey{Round: 0, Team: 0}
	m.cache.Evict(key)
	h := NewTaskHandle()
	h.Resolve(ExplainTask{Word: "гравитация"})
	m.cache.Put(key, h)

	if _, err := m.UseHint(); !errors.Is(err, ErrNoHint) {
		t.Fatalf("explanation rounds have no hint, got %v", err)
	}
}

func TestOvertimeHalvesPoints(t *testing.T) {
	fake := &fakeProvider{
		judge: func(target, answer string) (Judgement, error) {
			return Judgement{Score: 7, Feedback: "ok"}, nil
		},
	}
	m := startedManager(t, fake, NewTeam{Name: "A", Players: []string{"p"}})
	intoPlaying(t, m)

	// Move the clock past the turn deadline before submitting.
	m.mu.Lock()
	deadline := m.turn.Deadline
	m.mu.Unlock()
	m.clock = func() time.Time { return deadline.Add(time.Second) }

	res, err := m.SubmitAnswer(context.Background(), "кот")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if res.Outcome.Points != 3 {
		t.Fatalf("7 raw in overtime should award 3, got %d", res.Outcome.Points)
	}
	if !res.Outcome.Context.IsOvertime {
		t.Fatal("outcome context should record overtime")
	}
}

func TestBelowBarRevealsInsteadOfCompleting(t *testing.T) {
	fake := &fakeProvider{
		judge: func(target, answer string) (Judgement, error) {
			return Judgement{Score: 2, Feedback: "мимо"}, nil
		},
	}
	m := startedManager(t, fake, NewTeam{Name: "A", Players: []string{"p"}})
	intoPlaying(t, m)

	res, err := m.SubmitAnswer(context.Background(), "не то")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if res.Completed || !res.Revealed {
		t.Fatalf("below-bar score should reveal, got %+v", res)
	}
	if res.Target != "cat" {
		t.Fatalf("reveal should carry the target, got %q", res.Target)
	}
	if st := m.Snapshot(); st.Status != StatusPlaying {
		t.Fatalf("turn should stay open after reveal, got %s", st.Status)
	}

	// The team confirms via give-up: zero points, content burned.
	out, err := m.GiveUp()
	if err != nil {
		t.Fatalf("GiveUp: %v", err)
	}
	if out.Points != 0 {
		t.Fatalf("give-up awards nothing, got %d", out.Points)
	}
	st := m.Snapshot()
	if st.Status != StatusRoundResult {
		t.Fatalf("give-up should finish the turn, got %s", st.Status)
	}
	if len(st.UsedContent) != 1 || st.UsedContent[0] != "cat" {
		t.Fatalf("revealed content must be burned, got %v", st.UsedContent)
	}
	if st.Teams[0].Score != 0 {
		t.Fatalf("score should stay zero, got %d", st.Teams[0].Score)
	}
}

func TestEvaluationFailureCompletesWithZero(t *testing.T) {
	fake := &fakeProvider{
		judge: func(target, answer string) (Judgement, error) {
			return Judgement{}, errors.New("upstream down")
		},
	}
	m := startedManager(t, fake, NewTeam{Name: "A", Players: []string{"p"}})
	intoPlaying(t, m)

	res, err := m.SubmitAnswer(context.Background(), "кот")
	if err != nil {
		t.Fatalf("an evaluation failure must not surface as an error: %v", err)
	}
	if !res.Completed || res.Outcome.Points != 0 {
		t.Fatalf("expected zero-point completion, got %+v", res)
	}
	st := m.Snapshot()
	if st.Status != StatusRoundResult {
		t.Fatalf("the game must move on, got %s", st.Status)
	}
	if len(st.History) != 1 {
		t.Fatal("the failed turn still belongs in history")
	}
}

func TestRetryTaskReplacesHandle(t *testing.T) {
	m := startedManager(t, &fakeProvider{}, NewTeam{Name: "A", Players: []string{"p"}})
	intoPlaying(t, m)

	key := TaskKey{Round: 0, Team: 0}
	before, _ := m.cache.Get(key)
	if err := m.RetryTask(); err != nil {
		t.Fatalf("RetryTask: %v", err)
	}
	after, ok := m.cache.Get(key)
	if !ok {
		t.Fatal("retry should refill the active key")
	}
	if after == before {
		t.Fatal("retry must produce a fresh handle")
	}
	if m.View().RetryCount != 1 {
		t.Fatalf("retry counter should increment, got %d", m.View().RetryCount)
	}
}

func TestExplainRoundScoresDirectly(t *testing.T) {
	fake := &fakeProvider{
		explain: func(word, explanation string) (Explanation, error) {
			return Explanation{IsCorrect: true, AIGuess: word, Points: 2, Reasoning: "едва", Definition: "опр."}, nil
		},
	}
	m := startedManager(t, fake, NewTeam{Name: "A", Players: []string{"p"}})
	intoPlaying(t, m)

	key := TaskKey{Round: 0, Team: 0}
	m.cache.Evict(key)
	h := NewTaskHandle()
	h.Resolve(ExplainTask{Word: "гравитация"})
	m.cache.Put(key, h)

	res, err := m.SubmitAnswer(context.Background(), "это когда всё падает")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	// The minimum bar applies only to guess-style rounds; 2 points stand here.
	if !res.Completed || res.Outcome.Points != 2 {
		t.Fatalf("expected completion with 2 points, got %+v", res)
	}
	if res.Outcome.Definition == "" {
		t.Fatal("the definition should reach the outcome")
	}
}

func TestPromptBattleRoundsSimilarity(t *testing.T) {
	fake := &fakeProvider{
		prompt: func(targetImageURL, prompt string) (PromptScore, error) {
			return PromptScore{UserImageURL: "data:,user", Similarity: 87, Feedback: "похоже"}, nil
		},
	}
	m := startedManager(t, fake, NewTeam{Name: "A", Players: []string{"p"}})
	intoPlaying(t, m)

	key := TaskKey{Round: 0, Team: 0}
	m.cache.Evict(key)
	h := NewTaskHandle()
	h.Resolve(PromptTask{TargetImageURL: "data:,target", Keywords: []string{"закат", "море"}})
	m.cache.Put(key, h)

	res, err := m.SubmitAnswer(context.Background(), "закат над морем")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if res.Outcome.Points != 9 {
		t.Fatalf("87%% similarity should round to 9 points, got %d", res.Outcome.Points)
	}
	if res.Outcome.UserImageURL == "" {
		t.Fatal("the generated image should reach the outcome")
	}
}

func TestGiveUpWithoutResolvedTask(t *testing.T) {
	m := startedManager(t, &fakeProvider{}, NewTeam{Name: "A", Players: []string{"p"}})
	intoPlaying(t, m)

	key := TaskKey{Round: 0, Team: 0}
	m.cache.Evict(key)
	m.cache.Put(key, NewTaskHandle())

	out, err := m.GiveUp()
	if err != nil {
		t.Fatalf("GiveUp: %v", err)
	}
	if out.Points != 0 {
		t.Fatalf("expected zero points, got %d", out.Points)
	}
	if st := m.Snapshot(); len(st.UsedContent) != 0 {
		t.Fatalf("nothing resolved, nothing to burn, got %v", st.UsedContent)
	}
}
