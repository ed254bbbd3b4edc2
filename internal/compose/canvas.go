// Package compose flattens classified layers into the deck background and
// the cumulative slide frames.
package compose

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ivlev/psd2pptx/internal/layers"
	"github.com/ivlev/psd2pptx/internal/raster"
)

// ErrEmptyCanvas is returned when no layer ended up in the canvas group.
var ErrEmptyCanvas = errors.New("no canvas layers found")

const CanvasFile = "canvas.png"

// Background is the flattened canvas.
type Background struct {
	File   string
	Width  int
	Height int
}

func (b Background) Size() image.Point { return image.Pt(b.Width, b.Height) }

// Canvas flattens the canvas set. The set is in top-to-bottom order, so the
// last record is the bottom layer: it defines the canvas size and is painted
// first, then the others follow from second-lowest up to the top.
func Canvas(ctx context.Context, set []layers.Record, scratch *raster.Scratch, log logrus.FieldLogger) (Background, error) {
	if len(set) == 0 {
		return Background{}, ErrEmptyCanvas
	}
	bottom := set[len(set)-1]
	log.WithFields(logrus.Fields{
		"layers": strings.Join(layers.Paths(set), ", "),
		"size":   fmt.Sprintf("%dx%d", bottom.Width, bottom.Height),
	}).Info("generating canvas")

	canvas, err := raster.NewFrameBuffer(bottom.Width, bottom.Height)
	if err != nil {
		return Background{}, fmt.Errorf("canvas %q: %w", bottom.Path, err)
	}

	for i := len(set) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return Background{}, err
		}
		if err := paint(canvas, set[i]); err != nil {
			return Background{}, err
		}
	}

	file, err := scratch.WritePNG(CanvasFile, canvas)
	if err != nil {
		return Background{}, fmt.Errorf("write canvas: %w", err)
	}
	return Background{File: file, Width: bottom.Width, Height: bottom.Height}, nil
}

// paint loads one layer and composites it with its opacity. The decoded
// raster is released as soon as it has been drawn.
func paint(dst *image.RGBA, rec layers.Record) error {
	src, err := raster.ReadPNG(rec.File)
	if err != nil {
		return fmt.Errorf("load layer %q: %w", rec.Path, err)
	}
	raster.Over(dst, src, rec.Opacity)
	return nil
}
