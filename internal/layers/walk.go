// Package layers flattens a layer-group tree into ordered layer records and
// classifies them into canvas, slide and other sets.
package layers

import (
	"iter"

	"github.com/ivlev/psd2pptx/internal/source"
)

// Leaf is a raster-carrying node together with its slash-joined path.
type Leaf struct {
	Node source.Node
	Path string
}

// Leaves yields every raster leaf below root in depth-first order, visiting
// children in the order the tree lists them. Traversal uses an explicit
// stack, so nesting depth does not grow the call stack.
func Leaves(root source.Node) iter.Seq[Leaf] {
	return func(yield func(Leaf) bool) {
		stack := push(nil, root, "")
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if len(top.Node.Children()) > 0 {
				stack = push(stack, top.Node, top.Path)
				continue
			}
			if !top.Node.HasImage() {
				continue
			}
			if !yield(top) {
				return
			}
		}
	}
}

// push appends the children of n in reverse so the first child pops first.
func push(stack []Leaf, n source.Node, path string) []Leaf {
	children := n.Children()
	for i := len(children) - 1; i >= 0; i-- {
		stack = append(stack, Leaf{Node: children[i], Path: join(path, children[i].Name())})
	}
	return stack
}

func join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
