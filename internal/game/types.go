package game

import "fmt"

type Status string

const (
	StatusWelcome     Status = "WELCOME"
	StatusSetup       Status = "SETUP"
	StatusRoundIntro  Status = "ROUND_INTRO"
	StatusTurnStart   Status = "TURN_START"
	StatusPlaying     Status = "PLAYING"
	StatusRoundResult Status = "ROUND_RESULT"
	StatusGameOver    Status = "GAME_OVER"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

type RoundType string

const (
	RoundImageGuess      RoundType = "IMAGE_GUESS"
	RoundScientificSongs RoundType = "SCIENTIFIC_SONGS"
	RoundExplainToAI     RoundType = "EXPLAIN_TO_AI"
	RoundPromptBattle    RoundType = "PROMPT_BATTLE"
)

type Settings struct {
	Difficulty    Difficulty `json:"difficulty"`
	AverageAge    int        `json:"averageAge"`
	Themes        []string   `json:"themes"`
	SpeechEnabled bool       `json:"speechEnabled"`
}

type Team struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Players         []string `json:"players"`
	Score           int      `json:"score"`
	Color           string   `json:"color"`
	NextPlayerIndex int      `json:"nextPlayerIndex"`
}

// ResponsiblePlayer is the player whose turn it is within the team.
func (t Team) ResponsiblePlayer() string {
	if len(t.Players) == 0 {
		return ""
	}
	return t.Players[t.NextPlayerIndex%len(t.Players)]
}

// TurnContext captures what happened during a turn, for the round result
// screen and the negotiation appeal.
type TurnContext struct {
	UserAnswer string `json:"userAnswer"`
	Target     string `json:"target"`
	IsOvertime bool   `json:"isOvertime"`
}

type RoundResult struct {
	RoundType     RoundType `json:"roundType"`
	TeamID        string    `json:"teamId"`
	PointsEarned  int       `json:"pointsEarned"`
	AIMessage     string    `json:"aiMessage"`
	Definition    string    `json:"definition,omitempty"`
	CorrectAnswer string    `json:"correctAnswer,omitempty"`
	UserAnswer    string    `json:"userAnswer,omitempty"`
}

// State is the full persisted progression record. The task cache is
// deliberately not part of it; it is rebuilt after a restore.
type State struct {
	Settings    Settings      `json:"settings"`
	Teams       []Team        `json:"teams"`
	RoundIndex  int           `json:"currentRoundTypeIndex"`
	TeamIndex   int           `json:"currentTeamIndex"`
	Status      Status        `json:"gameStatus"`
	History     []RoundResult `json:"history"`
	UsedContent []string      `json:"usedContent"`
}

// TaskKey addresses one generated task: two teams in the same round never
// share a payload.
type TaskKey struct {
	Round int
	Team  int
}

func (k TaskKey) String() string {
	return fmt.Sprintf("%d-%d", k.Round, k.Team)
}

// Task is the tagged union of per-round payloads. ContentID reports the
// identifier to burn in the used-content ledger once the round completes.
type Task interface {
	RoundType() RoundType
	ContentID() string
}

type ImageTask struct {
	ImageURL string `json:"imageUrl"`
	Target   string `json:"targetWord"`
	Hint     string `json:"hint"`
}

func (ImageTask) RoundType() RoundType { return RoundImageGuess }
func (t ImageTask) ContentID() string  { return t.Target }

type SongTask struct {
	Lyrics string `json:"rewrittenLyrics"`
	Target string `json:"targetSong"`
	Style  string `json:"style"`
	Hint   string `json:"hint"`
}

func (SongTask) RoundType() RoundType { return RoundScientificSongs }
func (t SongTask) ContentID() string  { return t.Target }

type ExplainTask struct {
	Word string `json:"targetWord"`
}

func (ExplainTask) RoundType() RoundType { return RoundExplainToAI }
func (t ExplainTask) ContentID() string  { return t.Word }

type PromptTask struct {
	TargetImageURL string   `json:"targetImageUrl"`
	Keywords       []string `json:"keywords"`
}

func (PromptTask) RoundType() RoundType { return RoundPromptBattle }

// Prompt battle has no guessable target phrase to exclude from future
// generation calls.
func (PromptTask) ContentID() string { return "" }
