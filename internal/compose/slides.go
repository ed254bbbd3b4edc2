package compose

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ivlev/psd2pptx/internal/layers"
	"github.com/ivlev/psd2pptx/internal/raster"
)

// Frame is one emitted slide image.
type Frame struct {
	// Index counts from 1 across the whole slide set.
	Index int
	Path  string
	File  string
}

// ParentPath strips the last segment of path, keeping the trailing slash.
// A path without a parent is returned unchanged.
func ParentPath(path string) string {
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return path
	}
	return path[:i+1]
}

// Runs reverses the slide set into build order (bottom layer first) and
// splits it into maximal blocks sharing a parent path.
func Runs(set []layers.Record) [][]layers.Record {
	var runs [][]layers.Record
	prefix := ""
	for i := len(set) - 1; i >= 0; i-- {
		rec := set[i]
		p := ParentPath(rec.Path)
		if len(runs) == 0 || p != prefix {
			runs = append(runs, nil)
			prefix = p
		}
		runs[len(runs)-1] = append(runs[len(runs)-1], rec)
	}
	return runs
}

// FrameFile is the scratch name of the n-th frame.
func FrameFile(n int) string {
	return fmt.Sprintf("slide-%d.png", n)
}

// Slides renders one frame per slide-set layer. Every run starts from a
// blank buffer of the canvas size and each layer is drawn on top of the
// previous ones, so frame i of a run shows layers 1..i.
func Slides(ctx context.Context, set []layers.Record, size image.Point, scratch *raster.Scratch, pool *raster.Pool, log logrus.FieldLogger) ([]Frame, error) {
	frames := make([]Frame, 0, len(set))
	for _, run := range Runs(set) {
		var err error
		frames, err = buildRun(ctx, run, frames, size, scratch, pool, log)
		if err != nil {
			return nil, err
		}
	}
	return frames, nil
}

func buildRun(ctx context.Context, run []layers.Record, frames []Frame, size image.Point, scratch *raster.Scratch, pool *raster.Pool, log logrus.FieldLogger) ([]Frame, error) {
	buf, err := pool.Get(size)
	if err != nil {
		return nil, fmt.Errorf("frame buffer: %w", err)
	}
	defer pool.Put(buf)

	for i, rec := range run {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mode := "merged"
		if i == 0 {
			mode = "scratch"
		}
		log.WithFields(logrus.Fields{"path": rec.Path, "mode": mode}).Info("generating image")

		if err := paint(buf, rec); err != nil {
			return nil, err
		}

		n := len(frames) + 1
		file, err := scratch.WritePNG(FrameFile(n), buf)
		if err != nil {
			return nil, fmt.Errorf("write frame %d: %w", n, err)
		}
		frames = append(frames, Frame{Index: n, Path: rec.Path, File: file})
	}
	return frames, nil
}
