package source

import (
	"image"
	"os"
)

// Node is one entry of a layer-group tree. Groups have children, leaves
// carry raster content.
type Node interface {
	Name() string
	// Children are ordered top-most first, the way the document lists them.
	Children() []Node
	HasImage() bool
	Opacity() uint8
	Size() image.Point
	// Image returns the node's raster. Depending on the tree it is decoded
	// on demand or shared with the parsed document, so callers must not
	// modify it.
	Image() (image.Image, error)
}

// Tree is a parsed layered document. The root node itself is unnamed and
// does not contribute to layer paths.
type Tree interface {
	Root() Node
	Close() error
}

// Open picks the tree implementation for path: a directory becomes a
// DirTree, anything else is parsed as a PSD document.
func Open(path string) (Tree, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return NewDirTree(path)
	}
	return OpenPSD(path)
}
