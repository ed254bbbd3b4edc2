package source

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"gopkg.in/yaml.v3"
)

// SidecarName is the optional per-directory file describing layer order and
// opacity for a DirTree.
const SidecarName = "layers.yaml"

// Sidecar lists entries top-most first and overrides opacities by entry name
// (file name without extension, or directory name).
type Sidecar struct {
	Order   []string         `yaml:"order"`
	Opacity map[string]uint8 `yaml:"opacity"`
}

// DirTree reads a layer tree from a directory hierarchy: directories are
// groups and image files are layers.
type DirTree struct {
	root *dirNode
}

func NewDirTree(path string) (*DirTree, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}

	root, err := readDir(path, "", 255)
	if err != nil {
		return nil, err
	}
	return &DirTree{root: root}, nil
}

func (t *DirTree) Root() Node { return t.root }

func (t *DirTree) Close() error { return nil }

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

func isImageFile(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

func readSidecar(dir string) (*Sidecar, error) {
	data, err := os.ReadFile(filepath.Join(dir, SidecarName))
	if os.IsNotExist(err) {
		return &Sidecar{}, nil
	}
	if err != nil {
		return nil, err
	}

	var sc Sidecar
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Join(dir, SidecarName), err)
	}
	return &sc, nil
}

func readDir(path, name string, opacity uint8) (*dirNode, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	sc, err := readSidecar(path)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*dirNode)
	var names []string
	for _, entry := range entries {
		var child *dirNode
		childName := entry.Name()
		childPath := filepath.Join(path, childName)

		switch {
		case entry.IsDir():
			child, err = readDir(childPath, childName, opacityOf(sc, childName))
			if err != nil {
				return nil, err
			}
		case isImageFile(childName):
			childName = strings.TrimSuffix(childName, filepath.Ext(childName))
			child = &dirNode{name: childName, file: childPath, opacity: opacityOf(sc, childName)}
		default:
			continue
		}

		if _, dup := byName[childName]; dup {
			return nil, fmt.Errorf("%s: duplicate entry %q", path, childName)
		}
		byName[childName] = child
		names = append(names, childName)
	}
	sort.Strings(names)

	node := &dirNode{name: name, opacity: opacity}
	for _, n := range sc.Order {
		if child, ok := byName[n]; ok {
			node.children = append(node.children, child)
			delete(byName, n)
		}
	}
	for _, n := range names {
		if child, ok := byName[n]; ok {
			node.children = append(node.children, child)
		}
	}
	return node, nil
}

func opacityOf(sc *Sidecar, name string) uint8 {
	if v, ok := sc.Opacity[name]; ok {
		return v
	}
	return 255
}

type dirNode struct {
	name     string
	file     string
	opacity  uint8
	children []Node
}

func (n *dirNode) Name() string { return n.name }

func (n *dirNode) Children() []Node { return n.children }

func (n *dirNode) HasImage() bool { return n.file != "" }

func (n *dirNode) Opacity() uint8 { return n.opacity }

func (n *dirNode) Size() image.Point {
	if n.file == "" {
		return image.Point{}
	}
	f, err := os.Open(n.file)
	if err != nil {
		return image.Point{}
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Point{}
	}
	return image.Pt(cfg.Width, cfg.Height)
}

func (n *dirNode) Image() (image.Image, error) {
	f, err := os.Open(n.file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}
