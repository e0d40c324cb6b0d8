package forest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/depthvision/bodyparts/parts"
	"github.com/depthvision/bodyparts/rimage"
)

func constantTree(t *testing.T, l parts.Label) *Tree {
	t.Helper()
	// zero offsets make the feature 0 everywhere; threshold 1 always
	// goes left
	tree, err := NewTree(1, []Node{{Threshold: 1}}, []parts.Label{l, parts.Background})
	test.That(t, err, test.ShouldBeNil)
	return tree
}

func TestNewTreeValidation(t *testing.T) {
	_, err := NewTree(0, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewTree(1, []Node{{}}, []parts.Label{parts.Neck})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewTree(1, []Node{{}, {}}, []parts.Label{parts.Neck, parts.Neck})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewTree(1, []Node{{}}, []parts.Label{parts.Neck, parts.Label(200)})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTreeRoundTrip(t *testing.T) {
	tree := constantTree(t, parts.Neck)
	fn := filepath.Join(t.TempDir(), "neck.tree")
	test.That(t, tree.WriteToFile(fn), test.ShouldBeNil)

	loaded, err := LoadTree(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded, test.ShouldResemble, tree)
}

func TestLoadTreeMalformed(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "bad.tree")
	test.That(t, os.WriteFile(fn, []byte("not a tree"), 0o600), test.ShouldBeNil)
	_, err := LoadTree(fn)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "malformed tree file")

	_, err = LoadTree(filepath.Join(t.TempDir(), "missing.tree"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadTreeTruncated(t *testing.T) {
	tree := constantTree(t, parts.Neck)
	var buf bytes.Buffer
	test.That(t, tree.WriteTo(&buf), test.ShouldBeNil)
	_, err := ReadTree(bytes.NewReader(buf.Bytes()[:buf.Len()-1]))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestForestClassify(t *testing.T) {
	f, err := NewForest([]*Tree{constantTree(t, parts.LHand)})
	test.That(t, err, test.ShouldBeNil)

	dm := rimage.NewEmptyDepthMap(2, 1)
	dm.Set(0, 0, 1000)
	// pixel (1,0) has no reading

	out := rimage.NewLabelMap(2, 1)
	test.That(t, f.Classify(dm, out), test.ShouldBeNil)
	test.That(t, out.Get(0, 0), test.ShouldEqual, parts.LHand)
	test.That(t, out.Get(1, 0), test.ShouldEqual, parts.Background)
}

func TestForestMajorityVote(t *testing.T) {
	f, err := NewForest([]*Tree{
		constantTree(t, parts.LHand),
		constantTree(t, parts.Neck),
		constantTree(t, parts.Neck),
	})
	test.That(t, err, test.ShouldBeNil)

	dm := rimage.NewEmptyDepthMap(1, 1)
	dm.Set(0, 0, 1500)
	out := rimage.NewLabelMap(1, 1)
	test.That(t, f.Classify(dm, out), test.ShouldBeNil)
	test.That(t, out.Get(0, 0), test.ShouldEqual, parts.Neck)
}

func TestTreeDepthOffsetProbe(t *testing.T) {
	// probe one pixel to the right (offsets are premultiplied by 1m, the
	// fixture depth): inside the image the feature is 0 and goes left,
	// off the edge the no-sample constant pushes it right
	tree, err := NewTree(1,
		[]Node{{DU1: 1, Threshold: 10000}},
		[]parts.Label{parts.Neck, parts.LHand},
	)
	test.That(t, err, test.ShouldBeNil)
	f, err := NewForest([]*Tree{tree})
	test.That(t, err, test.ShouldBeNil)

	dm := rimage.NewEmptyDepthMap(2, 1)
	dm.Set(0, 0, 1000)
	dm.Set(1, 0, 1000)

	out := rimage.NewLabelMap(2, 1)
	test.That(t, f.Classify(dm, out), test.ShouldBeNil)
	test.That(t, out.Get(0, 0), test.ShouldEqual, parts.Neck)
	test.That(t, out.Get(1, 0), test.ShouldEqual, parts.LHand)
}

func TestLoadRequiresFiles(t *testing.T) {
	_, err := Load(nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewForest(nil)
	test.That(t, err, test.ShouldNotBeNil)
}
