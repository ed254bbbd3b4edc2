package raster

import (
	"image"
	"os"
	"path/filepath"
)

// Scratch is the run-owned temporary area holding extracted layers, the
// flattened canvas, the frames and the intermediate container.
type Scratch struct {
	dir string
}

// NewScratch creates a fresh scratch directory under parent ("" means the
// system temp dir).
func NewScratch(parent string) (*Scratch, error) {
	dir, err := os.MkdirTemp(parent, "psd2pptx_")
	if err != nil {
		return nil, err
	}
	return &Scratch{dir: dir}, nil
}

func (s *Scratch) Dir() string { return s.dir }

func (s *Scratch) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// WritePNG stores img as name inside the scratch area and returns its path.
func (s *Scratch) WritePNG(name string, img image.Image) (string, error) {
	path := s.Path(name)
	if err := WritePNG(path, img); err != nil {
		return "", err
	}
	return path, nil
}

// Remove deletes the scratch area and everything in it.
func (s *Scratch) Remove() error {
	return os.RemoveAll(s.dir)
}
