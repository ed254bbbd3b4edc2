package layers

import (
	"fmt"
	"regexp"
)

const (
	DefaultSkipPattern = "^" + ReservedBackground + "$"
	DefaultCanvasGroup = "Canvas"
)

// nested matches paths with at least one parent group.
var nested = regexp.MustCompile(`^.+/[^/]+$`)

// Classification partitions the extracted records. Canvas, Slides and Other
// together cover every record not in Skipped; each keeps traversal order.
type Classification struct {
	Skipped []Record
	Canvas  []Record
	Slides  []Record
	// Other holds top-level layers outside the canvas group. Nothing
	// downstream renders them.
	Other []Record
}

type Classifier struct {
	skip   *regexp.Regexp
	canvas *regexp.Regexp
}

// NewClassifier compiles the skip expression and the canvas group name. The
// group name is used as a regular expression fragment and matched
// case-insensitively as a path prefix.
func NewClassifier(skipPattern, canvasGroup string) (*Classifier, error) {
	skip, err := regexp.Compile(skipPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid skip pattern %q: %w", skipPattern, err)
	}
	canvas, err := regexp.Compile("(?i)^" + canvasGroup + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid canvas group %q: %w", canvasGroup, err)
	}
	return &Classifier{skip: skip, canvas: canvas}, nil
}

func (c *Classifier) Classify(records []Record) Classification {
	var cls Classification
	for _, r := range records {
		switch {
		case c.skip.MatchString(r.Path):
			cls.Skipped = append(cls.Skipped, r)
		case c.canvas.MatchString(r.Path):
			cls.Canvas = append(cls.Canvas, r)
		case nested.MatchString(r.Path):
			cls.Slides = append(cls.Slides, r)
		default:
			cls.Other = append(cls.Other, r)
		}
	}
	return cls
}

// Paths returns the paths of records, in order.
func Paths(records []Record) []string {
	paths := make([]string, len(records))
	for i, r := range records {
		paths[i] = r.Path
	}
	return paths
}
