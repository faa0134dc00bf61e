package game

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// RoundInfo is the client-facing metadata and timing for one round type.
type RoundInfo struct {
	Title           string `yaml:"title" json:"title"`
	Description     string `yaml:"description" json:"description"`
	ExampleQuestion string `yaml:"example_question" json:"exampleQuestion"`
	ExampleAnswer   string `yaml:"example_answer" json:"exampleAnswer"`
	DurationSeconds int    `yaml:"duration_seconds" json:"durationSeconds"`
}

// Catalog describes the game content configuration: the fixed round order,
// the theme pool, per-round metadata and the scoring constants.
type Catalog struct {
	RoundOrder  []RoundType             `yaml:"round_order"`
	Themes      []string                `yaml:"themes"`
	Rounds      map[RoundType]RoundInfo `yaml:"rounds"`
	HintPenalty int                     `yaml:"hint_penalty"`
	MaxPoints   int                     `yaml:"max_points"`
	MinScore    int                     `yaml:"min_score"`
	TeamNames   []string                `yaml:"team_names"`
	TeamColors  []string                `yaml:"team_colors"`
}

// LoadCatalog parses the embedded default catalog, or the YAML file at path
// when one is given.
func LoadCatalog(path string) (Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
		}
		data = b
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

func (c Catalog) Validate() error {
	if len(c.RoundOrder) < 2 {
		return fmt.Errorf("catalog: round order needs at least two entries, got %d", len(c.RoundOrder))
	}
	// The last round is a recap of the first round type; the preload
	// scheduler's early final-round trigger depends on this.
	if c.RoundOrder[len(c.RoundOrder)-1] != c.RoundOrder[0] {
		return fmt.Errorf("catalog: final round %q must repeat the opening round %q",
			c.RoundOrder[len(c.RoundOrder)-1], c.RoundOrder[0])
	}
	if len(c.Themes) == 0 {
		return fmt.Errorf("catalog: theme pool is empty")
	}
	for _, rt := range c.RoundOrder {
		info, ok := c.Rounds[rt]
		if !ok {
			return fmt.Errorf("catalog: missing round metadata for %q", rt)
		}
		if info.DurationSeconds <= 0 {
			return fmt.Errorf("catalog: round %q needs a positive duration", rt)
		}
	}
	if c.HintPenalty <= 0 {
		return fmt.Errorf("catalog: hint penalty must be positive")
	}
	if c.MaxPoints <= 0 {
		return fmt.Errorf("catalog: max points must be positive")
	}
	if c.MinScore < 0 {
		return fmt.Errorf("catalog: min score must not be negative")
	}
	return nil
}

func (c Catalog) TotalRounds() int { return len(c.RoundOrder) }

func (c Catalog) FinalRoundIndex() int { return len(c.RoundOrder) - 1 }

// RoundTypeAt returns the round type at index, or "" when out of range.
func (c Catalog) RoundTypeAt(index int) RoundType {
	if index < 0 || index >= len(c.RoundOrder) {
		return ""
	}
	return c.RoundOrder[index]
}

func (c Catalog) InfoFor(rt RoundType) RoundInfo { return c.Rounds[rt] }
