package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ivlev/psd2pptx/internal/compose"
	"github.com/ivlev/psd2pptx/internal/config"
	"github.com/ivlev/psd2pptx/internal/deck"
	"github.com/ivlev/psd2pptx/internal/layers"
	"github.com/ivlev/psd2pptx/internal/raster"
	"github.com/ivlev/psd2pptx/internal/source"
	"github.com/ivlev/psd2pptx/internal/system"
)

// DeckFile is the unpatched container inside the scratch area.
const DeckFile = "slides.pptx"

type stageTime struct {
	name string
	dur  time.Duration
}

// DeckProject converts one layer tree into one deck.
type DeckProject struct {
	Config *config.Config
	Tree   source.Tree
	Log    logrus.FieldLogger
	Report io.Writer

	pool   *raster.Pool
	timing []stageTime
	slides int
}

func NewDeckProject(cfg *config.Config, tree source.Tree, log logrus.FieldLogger) *DeckProject {
	return &DeckProject{
		Config: cfg,
		Tree:   tree,
		Log:    log,
		Report: os.Stdout,
		pool:   raster.NewPool(),
	}
}

// Convert opens the configured source and runs the conversion.
func Convert(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	log.WithField("path", cfg.InputPath).Info("reading file")
	tree, err := source.Open(cfg.InputPath)
	if err != nil {
		return fail(ErrInput, "read", err)
	}
	// Run releases the tree after extraction; this covers early failures.
	defer tree.Close()

	return NewDeckProject(cfg, tree, log).Run(ctx)
}

// Run executes the stages in order. The scratch area is removed on every
// return path unless KeepTemp is set.
func (p *DeckProject) Run(ctx context.Context) error {
	start := time.Now()
	cfg := p.Config

	classifier, err := layers.NewClassifier(cfg.SkipPattern, cfg.CanvasGroup)
	if err != nil {
		return fail(ErrConfig, "classify", err)
	}

	scratch, err := raster.NewScratch(cfg.TempDir)
	if err != nil {
		return fail(ErrIO, "scratch", err)
	}
	defer func() {
		if cfg.KeepTemp {
			p.Log.WithField("path", scratch.Dir()).Info("keeping scratch area")
			return
		}
		if rerr := scratch.Remove(); rerr != nil {
			p.Log.WithError(rerr).Warn("could not remove scratch area")
		}
	}()

	var records []layers.Record
	err = p.stage("extract", func() error {
		records, err = layers.Extract(ctx, p.Tree, scratch, p.Log)
		return err
	})
	if errors.Is(err, layers.ErrStore) {
		return fail(ErrIO, "extract", err)
	}
	if err != nil {
		return fail(ErrInput, "extract", err)
	}
	// Records own their pixels from here on.
	if err := p.Tree.Close(); err != nil {
		p.Log.WithError(err).Warn("could not release layer tree")
	}

	cls := classifier.Classify(records)
	p.Log.WithFields(logrus.Fields{
		"canvas":  len(cls.Canvas),
		"slides":  len(cls.Slides),
		"other":   len(cls.Other),
		"skipped": len(cls.Skipped),
	}).Info("classified layers")

	var bg compose.Background
	err = p.stage("canvas", func() error {
		bg, err = compose.Canvas(ctx, cls.Canvas, scratch, p.Log)
		return err
	})
	if errors.Is(err, compose.ErrEmptyCanvas) {
		return fail(ErrConfig, "canvas", fmt.Errorf("%w (group %q)", err, cfg.CanvasGroup))
	}
	if err != nil {
		return fail(ErrIO, "canvas", err)
	}

	var frames []compose.Frame
	err = p.stage("slides", func() error {
		frames, err = compose.Slides(ctx, cls.Slides, bg.Size(), scratch, p.pool, p.Log)
		return err
	})
	if err != nil {
		return fail(ErrIO, "slides", err)
	}
	p.slides = len(frames)

	if err := ctx.Err(); err != nil {
		return fail(ErrIO, "assemble", err)
	}
	d, err := deck.Assemble(bg, frames, deck.Options{Title: cfg.Title, BackgroundColor: cfg.BackgroundColor})
	if err != nil {
		return fail(ErrConfig, "assemble", err)
	}

	var pkg bytes.Buffer
	err = p.stage("package", func() error {
		p.Log.WithField("slides", len(d.Slides)).Info("generating PPTX")
		for i, s := range d.Slides {
			p.Log.WithFields(logrus.Fields{"slide": i + 1, "path": s.Name}).Info("generating slide")
		}
		if err := deck.Write(&pkg, d); err != nil {
			return err
		}
		return os.WriteFile(scratch.Path(DeckFile), pkg.Bytes(), 0644)
	})
	if err != nil {
		return fail(ErrIO, "package", err)
	}

	var patched []byte
	err = p.stage("patch", func() error {
		p.Log.Info("post-adjusting PPTX")
		var n int
		patched, n, err = deck.Patch(pkg.Bytes(), cfg.DeckTransition())
		if err == nil && n != len(d.Slides) {
			err = fmt.Errorf("patched %d slide parts, expected %d", n, len(d.Slides))
		}
		return err
	})
	if err != nil {
		return fail(ErrPatch, "patch", err)
	}

	if err := ctx.Err(); err != nil {
		return fail(ErrIO, "write", err)
	}
	err = p.stage("write", func() error {
		p.Log.WithField("path", cfg.OutputPath).Info("writing PPTX file")
		return writeFile(cfg.OutputPath, patched)
	})
	if err != nil {
		return fail(ErrIO, "write", err)
	}

	if cfg.ManifestPath != "" {
		m := deck.NewManifest(cfg.InputPath, cfg.OutputPath, cls, bg)
		m.Version = cfg.BuildVersion
		var buf bytes.Buffer
		if err := m.Encode(&buf); err != nil {
			return fail(ErrIO, "manifest", err)
		}
		if err := writeFile(cfg.ManifestPath, buf.Bytes()); err != nil {
			return fail(ErrIO, "manifest", err)
		}
	}

	if cfg.ShowStats {
		p.printReport(time.Since(start))
	}
	return nil
}

func (p *DeckProject) stage(name string, fn func() error) error {
	t := time.Now()
	err := fn()
	p.timing = append(p.timing, stageTime{name: name, dur: time.Since(t)})
	return err
}

func (p *DeckProject) printReport(total time.Duration) {
	fmt.Fprintf(p.Report, "--- [PERFORMANCE REPORT] ---\n")
	fmt.Fprintf(p.Report, "Build: %s\n", p.Config.BuildVersion)
	fmt.Fprintf(p.Report, "Total Time: %.2fs\n", total.Seconds())
	for _, s := range p.timing {
		fmt.Fprintf(p.Report, "%-12s %.3fs\n", s.name+":", s.dur.Seconds())
	}
	fmt.Fprintf(p.Report, "Slides: %d\n", p.slides)
	if rss, err := system.ResidentMemory(); err == nil {
		fmt.Fprintf(p.Report, "Memory (RSS): %s\n", system.FormatBytes(rss))
	}
	fmt.Fprintf(p.Report, "----------------------------\n")
}

// writeFile replaces path atomically: the data goes to a temporary file in
// the same directory which is then renamed over the target.
func writeFile(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".psd2pptx-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
