// Package forest evaluates randomized decision forests over depth images,
// producing a body-part label per pixel. Trees test depth-difference features
// (the offset pair is scaled by the inverse depth at the pixel, making the
// feature depth-invariant) and are stored complete, so a tree of height h has
// 2^h - 1 split nodes and 2^h leaves.
package forest

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/depthvision/bodyparts/parts"
	"github.com/depthvision/bodyparts/rimage"
)

// Node is one split: two pixel offsets (in millimeter-scaled units) and the
// depth-difference threshold in millimeters.
type Node struct {
	DU1, DV1  int16
	DU2, DV2  int16
	Threshold int32
}

// Tree is a complete binary decision tree of the given height.
type Tree struct {
	height int
	nodes  []Node
	leaves []parts.Label
}

const (
	// maxTreeHeight bounds tree files to something sane (2^20 leaves).
	maxTreeHeight = 20

	// noSampleDepth substitutes for depth probes that land outside the
	// image or on pixels with no reading. Large enough to push the feature
	// past any plausible threshold.
	noSampleDepth = 32001
)

var treeMagic = []byte("RDF1")

// NewTree builds a tree from already-parsed nodes and leaves.
func NewTree(height int, nodes []Node, leaves []parts.Label) (*Tree, error) {
	if height <= 0 || height > maxTreeHeight {
		return nil, errors.Errorf("tree height %d out of range (0, %d]", height, maxTreeHeight)
	}
	if len(nodes) != (1<<height)-1 {
		return nil, errors.Errorf("tree of height %d needs %d nodes, got %d", height, (1<<height)-1, len(nodes))
	}
	if len(leaves) != 1<<height {
		return nil, errors.Errorf("tree of height %d needs %d leaves, got %d", height, 1<<height, len(leaves))
	}
	for i, l := range leaves {
		if !l.Valid() && l != parts.Background {
			return nil, errors.Errorf("leaf %d has invalid label %d", i, l)
		}
	}
	return &Tree{height: height, nodes: nodes, leaves: leaves}, nil
}

// Height returns the tree's height.
func (t *Tree) Height() int {
	return t.height
}

// LoadTree reads one tree from the binary tree file format.
func LoadTree(fn string) (t *Tree, err error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open tree file %q", fn)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	t, err = ReadTree(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "malformed tree file %q", fn)
	}
	return t, nil
}

// ReadTree parses the binary format written by WriteTo: a magic header,
// an int32 height, the split nodes, then the leaf labels.
func ReadTree(in io.Reader) (*Tree, error) {
	magic := make([]byte, len(treeMagic))
	if _, err := io.ReadFull(in, magic); err != nil {
		return nil, errors.Wrap(err, "cannot read tree header")
	}
	if string(magic) != string(treeMagic) {
		return nil, errors.Errorf("not a tree file, header %q", magic)
	}

	var height int32
	if err := binary.Read(in, binary.LittleEndian, &height); err != nil {
		return nil, err
	}
	if height <= 0 || height > maxTreeHeight {
		return nil, errors.Errorf("tree height %d out of range (0, %d]", height, maxTreeHeight)
	}

	nodes := make([]Node, (1<<height)-1)
	if err := binary.Read(in, binary.LittleEndian, nodes); err != nil {
		return nil, errors.Wrap(err, "tree nodes truncated")
	}
	rawLeaves := make([]uint8, 1<<height)
	if err := binary.Read(in, binary.LittleEndian, rawLeaves); err != nil {
		return nil, errors.Wrap(err, "tree leaves truncated")
	}
	leaves := make([]parts.Label, len(rawLeaves))
	for i, l := range rawLeaves {
		leaves[i] = parts.Label(l)
	}
	return NewTree(int(height), nodes, leaves)
}

// WriteTo writes the tree in the format ReadTree parses.
func (t *Tree) WriteTo(out io.Writer) error {
	if _, err := out.Write(treeMagic); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, int32(t.height)); err != nil {
		return err
	}
	if err := binary.Write(out, binary.LittleEndian, t.nodes); err != nil {
		return err
	}
	rawLeaves := make([]uint8, len(t.leaves))
	for i, l := range t.leaves {
		rawLeaves[i] = uint8(l)
	}
	return binary.Write(out, binary.LittleEndian, rawLeaves)
}

// WriteToFile writes the tree to the given path.
func (t *Tree) WriteToFile(fn string) (err error) {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err = t.WriteTo(w); err != nil {
		return err
	}
	return w.Flush()
}

func probe(dm *rimage.DepthMap, x, y int) int32 {
	if !dm.Contains(x, y) {
		return noSampleDepth
	}
	d := dm.GetDepth(x, y)
	if d == 0 {
		return noSampleDepth
	}
	return int32(d)
}

// walk evaluates the tree at pixel (x, y) with center depth d (millimeters).
func (t *Tree) walk(dm *rimage.DepthMap, x, y int, d int32) parts.Label {
	idx := 0
	for level := 0; level < t.height; level++ {
		n := t.nodes[idx]
		// offsets are stored premultiplied by a reference depth of 1m
		// (1000mm); dividing by the actual depth keeps the probe
		// window a constant metric size.
		f := probe(dm, x+int(int32(n.DU1)*1000/d), y+int(int32(n.DV1)*1000/d)) -
			probe(dm, x+int(int32(n.DU2)*1000/d), y+int(int32(n.DV2)*1000/d))
		if f < n.Threshold {
			idx = 2*idx + 1
		} else {
			idx = 2*idx + 2
		}
	}
	return t.leaves[idx-len(t.nodes)]
}

// Forest is a set of trees voting per pixel.
type Forest struct {
	trees []*Tree
}

// Load reads every tree file in order. An empty list is an error.
func Load(treeFiles []string) (*Forest, error) {
	if len(treeFiles) == 0 {
		return nil, errors.New("no tree files given")
	}
	trees := make([]*Tree, 0, len(treeFiles))
	for _, fn := range treeFiles {
		t, err := LoadTree(fn)
		if err != nil {
			return nil, err
		}
		trees = append(trees, t)
	}
	return &Forest{trees: trees}, nil
}

// NewForest wraps already-built trees.
func NewForest(trees []*Tree) (*Forest, error) {
	if len(trees) == 0 {
		return nil, errors.New("forest needs at least one tree")
	}
	return &Forest{trees: trees}, nil
}

// TreeCount returns the number of trees voting.
func (f *Forest) TreeCount() int {
	return len(f.trees)
}

// Classify labels every pixel of the depth map into out. Pixels with no depth
// reading get parts.Background; otherwise the majority label across trees
// wins, earliest-enumerated label on ties.
func (f *Forest) Classify(dm *rimage.DepthMap, out *rimage.LabelMap) error {
	if dm.Width() != out.Width() || dm.Height() != out.Height() {
		return errors.Errorf("depth map %dx%d and label map %dx%d dimensions don't match",
			dm.Width(), dm.Height(), out.Width(), out.Height())
	}
	var votes [parts.NumParts + 1]int
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			d := dm.GetDepth(x, y)
			if d == 0 {
				out.Set(x, y, parts.Background)
				continue
			}
			for i := range votes {
				votes[i] = 0
			}
			for _, t := range f.trees {
				votes[t.walk(dm, x, y, int32(d))]++
			}
			best := parts.Label(0)
			for l := 1; l < len(votes); l++ {
				if votes[l] > votes[best] {
					best = parts.Label(l)
				}
			}
			out.Set(x, y, best)
		}
	}
	return nil
}
