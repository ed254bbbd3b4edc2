// Package deck turns the flattened background and frames into a PPTX
// package and post-processes the serialized package.
package deck

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ivlev/psd2pptx/internal/compose"
)

const (
	EMUPerInch = 914400
	// SlideWidth is the fixed deck width; the height follows the canvas.
	SlideWidth = 10 * EMUPerInch

	DefaultTitle           = "psd2pptx"
	DefaultBackgroundColor = "FFFFFF"
)

// Slide is one deck page showing a single full-bleed frame.
type Slide struct {
	Name  string
	Image string
}

// Deck is the assembled presentation: a shared background on the slide
// master plus one slide per frame.
type Deck struct {
	Title string
	// Width and Height are in EMU.
	Width           int64
	Height          int64
	Background      string
	BackgroundColor string
	Slides          []Slide
}

type Options struct {
	Title           string
	BackgroundColor string
}

// NormalizeColor accepts "RRGGBB" or "#RRGGBB" and returns upper-case
// "RRGGBB".
func NormalizeColor(s string) (string, error) {
	if s == "" {
		s = DefaultBackgroundColor
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return "", fmt.Errorf("invalid background colour %q: %w", s, err)
	}
	return strings.ToUpper(strings.TrimPrefix(c.Hex(), "#")), nil
}

// Assemble lays out the deck. The page keeps the canvas aspect ratio with a
// fixed width of ten inches.
func Assemble(bg compose.Background, frames []compose.Frame, opts Options) (*Deck, error) {
	if bg.Width <= 0 || bg.Height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", bg.Width, bg.Height)
	}
	color, err := NormalizeColor(opts.BackgroundColor)
	if err != nil {
		return nil, err
	}
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}

	d := &Deck{
		Title:           title,
		Width:           SlideWidth,
		Height:          int64(math.Round(SlideWidth * float64(bg.Height) / float64(bg.Width))),
		Background:      bg.File,
		BackgroundColor: color,
		Slides:          make([]Slide, 0, len(frames)),
	}
	for _, f := range frames {
		d.Slides = append(d.Slides, Slide{Name: f.Path, Image: f.File})
	}
	return d, nil
}
