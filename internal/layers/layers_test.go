package layers

import (
	"context"
	"errors"
	"image"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/psd2pptx/internal/source"
)

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type memStore struct {
	names []string
	fail  bool
}

func (s *memStore) WritePNG(name string, img image.Image) (string, error) {
	if s.fail {
		return "", errors.New("disk full")
	}
	s.names = append(s.names, name)
	return "/scratch/" + name, nil
}

type brokenNode struct{ *source.MemNode }

func (brokenNode) Image() (image.Image, error) { return nil, errors.New("truncated channel data") }

func px() image.Image { return image.NewNRGBA(image.Rect(0, 0, 4, 2)) }

func exampleTree() *source.MemTree {
	return source.NewMemTree(
		source.Group("Canvas",
			source.Layer("Fg", px(), 255),
			source.Layer("Bg", px(), 255),
		),
		source.Group("Slides",
			source.Group("1",
				source.Layer("a", px(), 255),
				source.Layer("b", px(), 255),
			),
			source.Group("2",
				source.Layer("x", px(), 255),
			),
			source.Group("empty"),
		),
		source.Layer("Title", px(), 255),
		source.Layer("Background", px(), 255),
	)
}

func TestLeavesOrder(t *testing.T) {
	var paths []string
	for leaf := range Leaves(exampleTree().Root()) {
		paths = append(paths, leaf.Path)
	}
	assert.Equal(t, []string{
		"Canvas/Fg", "Canvas/Bg",
		"Slides/1/a", "Slides/1/b", "Slides/2/x",
		"Title", "Background",
	}, paths)
}

func TestLeavesDeepNesting(t *testing.T) {
	node := source.Layer("leaf", px(), 255)
	want := "leaf"
	for i := 0; i < 2000; i++ {
		node = source.Group("g", node)
		want = "g/" + want
	}

	var got []string
	for leaf := range Leaves(source.NewMemTree(node).Root()) {
		got = append(got, leaf.Path)
	}
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func TestLeavesStopsEarly(t *testing.T) {
	n := 0
	for range Leaves(exampleTree().Root()) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestExtract(t *testing.T) {
	store := &memStore{}
	records, err := Extract(context.Background(), exampleTree(), store, quietLog())
	require.NoError(t, err)

	assert.Equal(t, []string{"Canvas/Fg", "Canvas/Bg", "Slides/1/a", "Slides/1/b", "Slides/2/x", "Title"},
		Paths(records), "reserved Background is always dropped")
	assert.Equal(t, "extracted-Slides-1-a.png", store.names[2])
	assert.Equal(t, "/scratch/extracted-Slides-1-a.png", records[2].File)
	assert.Equal(t, "a", records[2].Name)
	assert.Equal(t, 4, records[0].Width)
	assert.Equal(t, 2, records[0].Height)
	assert.Equal(t, uint8(255), records[0].Opacity)
}

func TestExtractNestedBackgroundKept(t *testing.T) {
	tree := source.NewMemTree(source.Group("Canvas", source.Layer("Background", px(), 255)))
	records, err := Extract(context.Background(), tree, &memStore{}, quietLog())
	require.NoError(t, err)
	assert.Equal(t, []string{"Canvas/Background"}, Paths(records))
}

func TestExtractFileNameCollision(t *testing.T) {
	tree := source.NewMemTree(
		source.Group("A B", source.Layer("c", px(), 255)),
		source.Group("AB", source.Layer("c", px(), 255)),
	)
	store := &memStore{}
	_, err := Extract(context.Background(), tree, store, quietLog())
	require.NoError(t, err)
	assert.Equal(t, []string{"extracted-AB-c.png", "extracted-AB-c-2.png"}, store.names)
}

func TestExtractDecodeFailure(t *testing.T) {
	tree := source.NewMemTree(
		source.Layer("ok", px(), 255),
		brokenNode{source.Layer("bad", px(), 255)},
	)
	_, err := Extract(context.Background(), tree, &memStore{}, quietLog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestExtractStoreFailure(t *testing.T) {
	_, err := Extract(context.Background(), exampleTree(), &memStore{fail: true}, quietLog())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStore)
	assert.Contains(t, err.Error(), "disk full")
}

func TestExtractDecodeFailureNotStore(t *testing.T) {
	tree := source.NewMemTree(brokenNode{source.Layer("bad", px(), 255)})
	_, err := Extract(context.Background(), tree, &memStore{}, quietLog())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStore)
}

func TestExtractSkipsEmptyLayer(t *testing.T) {
	tree := source.NewMemTree(
		source.Group("Slides",
			source.Group("1",
				source.Layer("empty", image.NewNRGBA(image.Rect(0, 0, 0, 0)), 255),
				source.Layer("a", px(), 255),
			),
		),
	)
	store := &memStore{}
	records, err := Extract(context.Background(), tree, store, quietLog())
	require.NoError(t, err)
	assert.Equal(t, []string{"Slides/1/a"}, Paths(records))
	assert.Equal(t, []string{"extracted-Slides-1-a.png"}, store.names)
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Extract(ctx, exampleTree(), &memStore{}, quietLog())
	assert.ErrorIs(t, err, context.Canceled)
}

func records(paths ...string) []Record {
	out := make([]Record, len(paths))
	for i, p := range paths {
		out[i] = Record{Path: p}
	}
	return out
}

func TestClassifyDefaults(t *testing.T) {
	c, err := NewClassifier(DefaultSkipPattern, DefaultCanvasGroup)
	require.NoError(t, err)

	in := records("Canvas/Fg", "Slides/1/a", "Background", "canvas/Bg", "Title", "Slides/2/x", "CanvasX/y")
	cls := c.Classify(in)

	assert.Equal(t, []string{"Background"}, Paths(cls.Skipped))
	assert.Equal(t, []string{"Canvas/Fg", "canvas/Bg"}, Paths(cls.Canvas))
	assert.Equal(t, []string{"Slides/1/a", "Slides/2/x", "CanvasX/y"}, Paths(cls.Slides))
	assert.Equal(t, []string{"Title"}, Paths(cls.Other))
}

func TestClassifyPartition(t *testing.T) {
	c, err := NewClassifier(`^tmp/`, "Stage")
	require.NoError(t, err)

	in := records("Stage/a", "tmp/x", "a/b/c", "z", "STAGE/deep/er", "tmp", "q/r")
	cls := c.Classify(in)

	assert.Equal(t, len(in), len(cls.Skipped)+len(cls.Canvas)+len(cls.Slides)+len(cls.Other))
	seen := make(map[string]int)
	for _, set := range [][]Record{cls.Skipped, cls.Canvas, cls.Slides, cls.Other} {
		for _, r := range set {
			seen[r.Path]++
		}
	}
	for _, r := range in {
		assert.Equal(t, 1, seen[r.Path], r.Path)
	}
}

func TestClassifySkipSlideGroup(t *testing.T) {
	c, err := NewClassifier(`^Slides/2`, DefaultCanvasGroup)
	require.NoError(t, err)

	cls := c.Classify(records("Canvas/Fg", "Canvas/Bg", "Slides/1/a", "Slides/1/b", "Slides/2/x"))
	assert.Equal(t, []string{"Slides/1/a", "Slides/1/b"}, Paths(cls.Slides))
	assert.Equal(t, []string{"Canvas/Fg", "Canvas/Bg"}, Paths(cls.Canvas))
}

func TestNewClassifierInvalid(t *testing.T) {
	_, err := NewClassifier("([", DefaultCanvasGroup)
	assert.Error(t, err)

	_, err = NewClassifier(DefaultSkipPattern, "Canvas(")
	assert.Error(t, err)
}
