package source

import (
	"errors"
	"image"
)

// MemTree is an in-memory layer tree, used to assemble documents
// programmatically.
type MemTree struct {
	root *MemNode
}

// MemNode is a group (children set) or a layer (image set) of a MemTree.
type MemNode struct {
	name     string
	img      image.Image
	opacity  uint8
	children []Node
}

// NewMemTree builds a tree whose top-level entries are nodes, top-most first.
func NewMemTree(nodes ...Node) *MemTree {
	return &MemTree{root: &MemNode{children: nodes, opacity: 255}}
}

// Group returns a group node.
func Group(name string, children ...Node) *MemNode {
	return &MemNode{name: name, children: children, opacity: 255}
}

// Layer returns a raster leaf. A nil or zero-sized img yields a leaf without
// content.
func Layer(name string, img image.Image, opacity uint8) *MemNode {
	return &MemNode{name: name, img: img, opacity: opacity}
}

func (t *MemTree) Root() Node { return t.root }

func (t *MemTree) Close() error { return nil }

func (n *MemNode) Name() string { return n.name }

func (n *MemNode) Children() []Node { return n.children }

func (n *MemNode) HasImage() bool { return n.img != nil && !n.img.Bounds().Empty() }

func (n *MemNode) Opacity() uint8 { return n.opacity }

func (n *MemNode) Size() image.Point {
	if n.img == nil {
		return image.Point{}
	}
	return n.img.Bounds().Size()
}

func (n *MemNode) Image() (image.Image, error) {
	if !n.HasImage() {
		return nil, errors.New("layer has no image data")
	}
	return n.img, nil
}
