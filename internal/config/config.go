package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/psd2pptx/internal/deck"
	"github.com/ivlev/psd2pptx/internal/layers"
)

type Config struct {
	InputPath       string     `yaml:"-"`
	OutputPath      string     `yaml:"output"`
	CanvasGroup     string     `yaml:"canvas"`
	SkipPattern     string     `yaml:"skip"`
	Verbose         bool       `yaml:"verbose"`
	KeepTemp        bool       `yaml:"keepTemp"`
	TempDir         string     `yaml:"tempDir"`
	ShowStats       bool       `yaml:"stats"`
	ManifestPath    string     `yaml:"manifest"`
	Title           string     `yaml:"title"`
	BackgroundColor string     `yaml:"background"`
	Transition      Transition `yaml:"transition"`
	BuildVersion    string     `yaml:"-"`
}

type Transition struct {
	Speed      string `yaml:"speed"`
	DurationMs int    `yaml:"durationMs"`
}

func Default() *Config {
	return &Config{
		CanvasGroup:     layers.DefaultCanvasGroup,
		SkipPattern:     layers.DefaultSkipPattern,
		Title:           deck.DefaultTitle,
		BackgroundColor: deck.DefaultBackgroundColor,
		Transition: Transition{
			Speed:      deck.DefaultTransition.Speed,
			DurationMs: deck.DefaultTransition.DurationMs,
		},
	}
}

// Load reads a YAML file on top of the defaults. Keys missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultOutput derives the deck path from the source path: a trailing
// ".psd" is replaced by ".pptx", otherwise ".pptx" is appended.
func DefaultOutput(input string) string {
	base := strings.TrimSuffix(filepath.Clean(input), ".psd")
	return base + ".pptx"
}

// Validate checks everything that can be checked before the source is
// opened and fills in the output path.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("no source document given")
	}
	if _, err := layers.NewClassifier(c.SkipPattern, c.CanvasGroup); err != nil {
		return err
	}
	if _, err := deck.NormalizeColor(c.BackgroundColor); err != nil {
		return err
	}
	switch c.Transition.Speed {
	case "slow", "med", "fast":
	default:
		return fmt.Errorf("invalid transition speed %q (slow, med, fast)", c.Transition.Speed)
	}
	if c.Transition.DurationMs < 0 {
		return fmt.Errorf("invalid transition duration %dms", c.Transition.DurationMs)
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutput(c.InputPath)
	}
	return nil
}

func (c *Config) DeckTransition() deck.Transition {
	return deck.Transition{Speed: c.Transition.Speed, DurationMs: c.Transition.DurationMs}
}
