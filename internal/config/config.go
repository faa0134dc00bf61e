package config

import (
	"errors"
	"fmt"
	"os"
)

type Config struct {
	Port          int
	Bind          string
	GeminiKey     string
	GeminiBaseURL string
	TextModel     string
	ImageModel    string
	StateFile     string
	CatalogFile   string
	Verbose       bool
}

// Default returns the baseline config. The unprefixed GEMINI_* variables
// are honored here so the key can be shared with other tooling.
func Default() Config {
	return Config{
		Port:          8080,
		Bind:          "0.0.0.0",
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL: getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		TextModel:     "gemini-3-flash-preview",
		ImageModel:    "gemini-2.5-flash-image",
		StateFile:     "./neurovoki-state.json",
	}
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.GeminiKey == "" {
		return errors.New("missing Gemini API key (set GEMINI_API_KEY or --gemini-key)")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
