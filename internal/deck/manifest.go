package deck

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/psd2pptx/internal/compose"
	"github.com/ivlev/psd2pptx/internal/layers"
)

// Manifest describes how a document was turned into a deck
type Manifest struct {
	Version string       `yaml:"version"`
	Source  string       `yaml:"source"`
	Output  string       `yaml:"output"`
	Canvas  CanvasEntry  `yaml:"canvas"`
	Slides  []SlideEntry `yaml:"slides"`
	Other   []string     `yaml:"other,omitempty"`   // Classified but not rendered
	Skipped []string     `yaml:"skipped,omitempty"` // Matched the skip pattern
}

// CanvasEntry lists the layers flattened into the background, top first
type CanvasEntry struct {
	Width  int      `yaml:"width"`
	Height int      `yaml:"height"`
	Layers []string `yaml:"layers"`
}

// SlideEntry is one generated slide
type SlideEntry struct {
	ID    int    `yaml:"id"`
	Layer string `yaml:"layer"` // Layer added on this slide
	Run   int    `yaml:"run"`   // 1-based build group
	Step  int    `yaml:"step"`  // Position inside the run
}

// NewManifest collects the outcome of a conversion
func NewManifest(source, output string, cls layers.Classification, bg compose.Background) *Manifest {
	m := &Manifest{
		Version: "1.0",
		Source:  source,
		Output:  output,
		Canvas: CanvasEntry{
			Width:  bg.Width,
			Height: bg.Height,
			Layers: layers.Paths(cls.Canvas),
		},
		Other:   layers.Paths(cls.Other),
		Skipped: layers.Paths(cls.Skipped),
	}

	id := 1
	for r, run := range compose.Runs(cls.Slides) {
		for s, rec := range run {
			m.Slides = append(m.Slides, SlideEntry{ID: id, Layer: rec.Path, Run: r + 1, Step: s + 1})
			id++
		}
	}
	return m
}

// Encode emits the manifest as YAML with two-space indentation.
func (m *Manifest) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return enc.Close()
}
