package layers

import (
	"context"
	"errors"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ivlev/psd2pptx/internal/source"
)

// ReservedBackground is the path of the legacy background layer that some
// painting apps always add. It is dropped before any user skip pattern.
const ReservedBackground = "Background"

// Record is one extracted leaf layer. The decoded raster is persisted at
// File so that later stages can load layers one at a time.
type Record struct {
	Name    string
	Path    string
	File    string
	Opacity uint8
	Width   int
	Height  int
}

// Store persists a decoded layer raster under name and returns its location.
type Store interface {
	WritePNG(name string, img image.Image) (string, error)
}

// ErrStore marks a failure to persist an extracted raster, as opposed to
// a failure to decode it.
var ErrStore = errors.New("scratch write failed")

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.]`)

// FileName maps a layer path to its scratch file name.
func FileName(path string) string {
	name := strings.ReplaceAll(path, "/", "-")
	name = unsafeChars.ReplaceAllString(name, "")
	return "extracted-" + name + ".png"
}

// Extract walks the tree and persists every raster leaf to store, returning
// the records in traversal order. Each leaf is decoded once; the first
// failure aborts the extraction.
func Extract(ctx context.Context, tree source.Tree, store Store, log logrus.FieldLogger) ([]Record, error) {
	var records []Record
	used := make(map[string]bool)

	for leaf := range Leaves(tree.Root()) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if leaf.Path == ReservedBackground {
			continue
		}

		log.WithField("path", leaf.Path).Info("extracting layer")
		img, err := leaf.Node.Image()
		if err != nil {
			return nil, fmt.Errorf("decode layer %q: %w", leaf.Path, err)
		}

		name := FileName(leaf.Path)
		if used[name] {
			name = fmt.Sprintf("%s-%d.png", strings.TrimSuffix(name, ".png"), len(records)+1)
		}
		used[name] = true

		file, err := store.WritePNG(name, img)
		if err != nil {
			return nil, fmt.Errorf("store layer %q: %w: %w", leaf.Path, ErrStore, err)
		}

		size := leaf.Node.Size()
		records = append(records, Record{
			Name:    leaf.Node.Name(),
			Path:    leaf.Path,
			File:    file,
			Opacity: leaf.Node.Opacity(),
			Width:   size.X,
			Height:  size.Y,
		})
	}
	return records, nil
}
