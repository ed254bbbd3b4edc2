package source

import (
	"fmt"
	"image"
	"os"

	"github.com/oov/psd"
)

// PSDTree exposes a Photoshop document parsed by oov/psd.
type PSDTree struct {
	doc  *psd.PSD
	root *psdNode
}

func OpenPSD(path string) (*PSDTree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, _, err := psd.Decode(f, &psd.DecodeOptions{SkipMergedImage: true})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	root := &psdNode{children: psdChildren(doc.Layer)}
	return &PSDTree{doc: doc, root: root}, nil
}

func (t *PSDTree) Root() Node {
	if t.root == nil {
		return &psdNode{}
	}
	return t.root
}

// Close drops the decoded document so its channel data can be collected.
// Images obtained earlier stay valid; the tree itself reads as empty.
func (t *PSDTree) Close() error {
	t.doc = nil
	t.root = nil
	return nil
}

// psdChildren converts a layer list to nodes. oov/psd keeps the file's
// bottom-up record order, so the list is reversed to get top-most first.
func psdChildren(layers []psd.Layer) []Node {
	nodes := make([]Node, 0, len(layers))
	for i := len(layers) - 1; i >= 0; i-- {
		l := &layers[i]
		nodes = append(nodes, &psdNode{layer: l, children: psdChildren(l.Layer)})
	}
	return nodes
}

type psdNode struct {
	layer    *psd.Layer
	children []Node
}

func (n *psdNode) Name() string {
	if n.layer == nil {
		return ""
	}
	if n.layer.UnicodeName != "" {
		return n.layer.UnicodeName
	}
	return n.layer.Name
}

func (n *psdNode) Children() []Node { return n.children }

func (n *psdNode) HasImage() bool {
	return n.layer != nil && n.layer.HasImage() && n.layer.Picker != nil && !n.layer.Rect.Empty()
}

func (n *psdNode) Opacity() uint8 {
	if n.layer == nil {
		return 255
	}
	return n.layer.Opacity
}

func (n *psdNode) Size() image.Point {
	if n.layer == nil {
		return image.Point{}
	}
	return n.layer.Rect.Size()
}

func (n *psdNode) Image() (image.Image, error) {
	if !n.HasImage() {
		return nil, fmt.Errorf("layer %q has no image data", n.Name())
	}
	return n.layer.Picker, nil
}
