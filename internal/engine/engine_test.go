package engine

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/psd2pptx/internal/config"
	"github.com/ivlev/psd2pptx/internal/deck"
	"github.com/ivlev/psd2pptx/internal/source"
)

func solid(w, h int, c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// sampleTree has the layout
//
//	Canvas/Fg, Canvas/Bg, Slides/2/x, Slides/1/b, Slides/1/a
//
// in traversal order, top-most first.
func sampleTree(withCanvas bool) *source.MemTree {
	slides := source.Group("Slides",
		source.Group("2", source.Layer("x", solid(8, 6, color.NRGBA{G: 255, A: 255}), 255)),
		source.Group("1",
			source.Layer("b", solid(4, 3, color.NRGBA{R: 255, A: 255}), 255),
			source.Layer("a", solid(8, 6, color.NRGBA{B: 255, A: 128}), 255),
		),
	)
	if !withCanvas {
		return source.NewMemTree(slides)
	}
	canvas := source.Group("Canvas",
		source.Layer("Fg", solid(2, 2, color.NRGBA{R: 10, A: 255}), 200),
		source.Layer("Bg", solid(8, 6, color.NRGBA{R: 255, G: 255, B: 255, A: 255}), 255),
	)
	return source.NewMemTree(canvas, slides)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.InputPath = "sample.psd"
	cfg.OutputPath = filepath.Join(dir, "sample.pptx")
	cfg.TempDir = t.TempDir()
	require.NoError(t, cfg.Validate())
	return cfg
}

func run(t *testing.T, cfg *config.Config, tree source.Tree) error {
	t.Helper()
	p := NewDeckProject(cfg, tree, NewLogger(false, io.Discard))
	p.Report = io.Discard
	return p.Run(context.Background())
}

func readPackage(t *testing.T, path string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	parts := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		parts[f.Name] = string(body)
	}
	return parts
}

func slideParts(parts map[string]string) []string {
	var names []string
	for name := range parts {
		if deck.IsSlidePart(name) {
			names = append(names, name)
		}
	}
	return names
}

func assertScratchRemoved(t *testing.T, cfg *config.Config) {
	t.Helper()
	entries, err := os.ReadDir(cfg.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch area left behind")
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, run(t, cfg, sampleTree(true)))

	parts := readPackage(t, cfg.OutputPath)
	slides := slideParts(parts)
	assert.Len(t, slides, 3)

	frag := deck.DefaultTransition.Fragment()
	for _, name := range slides {
		assert.Equal(t, 1, strings.Count(parts[name], frag), name)
		assert.True(t, strings.HasSuffix(parts[name], frag+"</p:sld>"), name)
	}
	assert.Contains(t, parts["ppt/presentation.xml"], `<p:sldSz cx="9144000" cy="6858000" type="custom"/>`)
	assert.Contains(t, parts, "ppt/media/image3.png")
	assert.Contains(t, parts, deck.CanvasMedia)
	assertScratchRemoved(t, cfg)
}

func TestRunSkipSlideGroup(t *testing.T) {
	cfg := testConfig(t)
	cfg.SkipPattern = "^Slides/2"
	require.NoError(t, run(t, cfg, sampleTree(true)))

	assert.Len(t, slideParts(readPackage(t, cfg.OutputPath)), 2)
}

func TestRunEmptyCanvas(t *testing.T) {
	cfg := testConfig(t)
	err := run(t, cfg, sampleTree(false))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "canvas", e.Stage)

	_, statErr := os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
	assertScratchRemoved(t, cfg)
}

func TestRunDeterministic(t *testing.T) {
	first := testConfig(t)
	second := testConfig(t)
	require.NoError(t, run(t, first, sampleTree(true)))
	require.NoError(t, run(t, second, sampleTree(true)))

	a, err := os.ReadFile(first.OutputPath)
	require.NoError(t, err)
	b, err := os.ReadFile(second.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRunKeepTemp(t *testing.T) {
	cfg := testConfig(t)
	cfg.KeepTemp = true
	require.NoError(t, run(t, cfg, sampleTree(true)))

	entries, err := os.ReadDir(cfg.TempDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	dir := filepath.Join(cfg.TempDir, entries[0].Name())
	for _, name := range []string{"canvas.png", "slide-1.png", "slide-3.png", DeckFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestRunManifestAndStats(t *testing.T) {
	cfg := testConfig(t)
	cfg.ManifestPath = filepath.Join(t.TempDir(), "manifest.yaml")
	cfg.ShowStats = true
	cfg.BuildVersion = "test"

	var report bytes.Buffer
	p := NewDeckProject(cfg, sampleTree(true), NewLogger(false, io.Discard))
	p.Report = &report
	require.NoError(t, p.Run(context.Background()))

	data, err := os.ReadFile(cfg.ManifestPath)
	require.NoError(t, err)
	var m deck.Manifest
	require.NoError(t, yaml.Unmarshal(data, &m))
	assert.Equal(t, "test", m.Version)
	assert.Equal(t, []string{"Canvas/Fg", "Canvas/Bg"}, m.Canvas.Layers)
	require.Len(t, m.Slides, 3)
	assert.Equal(t, "Slides/1/a", m.Slides[0].Layer)
	assert.Equal(t, "Slides/2/x", m.Slides[2].Layer)

	assert.Contains(t, report.String(), "PERFORMANCE REPORT")
	assert.Contains(t, report.String(), "Slides: 3")
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewDeckProject(cfg, sampleTree(true), NewLogger(false, io.Discard)).Run(ctx)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
	assertScratchRemoved(t, cfg)
}

// wipingNode empties the scratch parent while its pixels are read, so the
// following write fails.
type wipingNode struct {
	*source.MemNode
	dir string
}

func (n wipingNode) Image() (image.Image, error) {
	entries, _ := os.ReadDir(n.dir)
	for _, e := range entries {
		os.RemoveAll(filepath.Join(n.dir, e.Name()))
	}
	return n.MemNode.Image()
}

func TestRunScratchWriteFailure(t *testing.T) {
	cfg := testConfig(t)
	tree := source.NewMemTree(source.Group("Canvas",
		wipingNode{source.Layer("Bg", solid(8, 6, color.NRGBA{A: 255}), 255), cfg.TempDir},
	))

	err := run(t, cfg, tree)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
	assert.NotErrorIs(t, err, ErrInput)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "extract", e.Stage)
}

func TestRunReleasesTree(t *testing.T) {
	cfg := testConfig(t)
	tree := &closeCounter{MemTree: sampleTree(true)}
	require.NoError(t, run(t, cfg, tree))
	assert.Equal(t, 1, tree.closed)
}

type closeCounter struct {
	*source.MemTree
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return c.MemTree.Close()
}

func TestRunInvalidPattern(t *testing.T) {
	cfg := testConfig(t)
	cfg.SkipPattern = "("
	assert.ErrorIs(t, run(t, cfg, sampleTree(true)), ErrConfig)
}

func TestConvertMissingInput(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputPath = filepath.Join(t.TempDir(), "missing.psd")
	err := Convert(context.Background(), cfg, NewLogger(false, io.Discard))
	assert.ErrorIs(t, err, ErrInput)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(true, &buf)
	log.WithField("path", "Slides/1/a").Info("extracting layer")
	log.Warn("careful")
	assert.Equal(t, "++ extracting layer path=Slides/1/a\n!! careful\n", buf.String())

	buf.Reset()
	quiet := NewLogger(false, &buf)
	quiet.Info("hidden")
	assert.Empty(t, buf.String())
}
