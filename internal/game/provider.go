package game

import "context"

// Judgement is a 0-10 similarity verdict on a raw answer.
type Judgement struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// Explanation is the evaluator's attempt to guess a secret word from the
// team's description of it.
type Explanation struct {
	IsCorrect  bool   `json:"isCorrect"`
	AIGuess    string `json:"aiGuess"`
	Points     int    `json:"points"`
	Reasoning  string `json:"reasoning"`
	Definition string `json:"definition"`
}

// PromptScore compares a user-prompted image against the round's target.
type PromptScore struct {
	UserImageURL string `json:"userImageUrl"`
	Similarity   int    `json:"similarityScore"`
	Feedback     string `json:"feedback"`
}

// NegotiationVerdict is the judged outcome of a score appeal.
type NegotiationVerdict struct {
	Approved      bool   `json:"approved"`
	PointsAwarded int    `json:"pointsAwarded"`
	Reply         string `json:"reply"`
}

// Provider is the content-service boundary the game depends on. Calls may
// take seconds and may fail; the caller owns retry and error surfacing.
// Generation produces a fresh payload on every call.
type Provider interface {
	GenerateTask(ctx context.Context, rt RoundType, settings Settings, excluded []string) (Task, error)
	JudgeAnswer(ctx context.Context, target, answer string) (Judgement, error)
	EvaluateExplanation(ctx context.Context, word, explanation string) (Explanation, error)
	EvaluatePromptBattle(ctx context.Context, targetImageURL, prompt string) (PromptScore, error)
	EvaluateNegotiation(ctx context.Context, target, answer, argument string, maxAddable int) (NegotiationVerdict, error)
}
