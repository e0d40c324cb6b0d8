package detection

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/depthvision/bodyparts/forest"
	"github.com/depthvision/bodyparts/parts"
	"github.com/depthvision/bodyparts/pointcloud"
	"github.com/depthvision/bodyparts/rimage"
)

// writeConstantTree writes a one-node tree that labels every pixel with
// depth as l.
func writeConstantTree(t *testing.T, l parts.Label) string {
	t.Helper()
	tree, err := forest.NewTree(1, []forest.Node{{Threshold: 1}}, []parts.Label{l, parts.Background})
	test.That(t, err, test.ShouldBeNil)
	fn := filepath.Join(t.TempDir(), "constant.tree")
	test.That(t, tree.WriteToFile(fn), test.ShouldBeNil)
	return fn
}

func TestNewValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)

	_, err := New(nil, 4, 4, logger)
	test.That(t, err, test.ShouldEqual, ErrNoTrees)

	treeFile := writeConstantTree(t, parts.Neck)
	_, err = New([]string{treeFile}, 0, 4, logger)
	test.That(t, err, test.ShouldNotBeNil)

	bad := filepath.Join(t.TempDir(), "bad.tree")
	test.That(t, os.WriteFile(bad, []byte("junk"), 0o600), test.ShouldBeNil)
	_, err = New([]string{bad}, 4, 4, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New([]string{treeFile}, 4, 4, logger, WithSmoothing(2, 300))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = New([]string{treeFile}, 4, 4, logger, WithClusterTolerance(-1))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = New([]string{treeFile}, 4, 4, logger, WithMaxClusterSize(0))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = New([]string{treeFile}, 4, 4, logger, WithMaxRelationDist(0))
	test.That(t, err, test.ShouldNotBeNil)

	d, err := New([]string{treeFile}, 4, 4, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.TreeCount(), test.ShouldEqual, 1)
	test.That(t, d.Width(), test.ShouldEqual, 4)
	test.That(t, d.Height(), test.ShouldEqual, 4)
}

func TestProcessDimensionMismatch(t *testing.T) {
	logger := golog.NewTestLogger(t)
	d, err := New([]string{writeConstantTree(t, parts.Neck)}, 4, 4, logger)
	test.That(t, err, test.ShouldBeNil)

	err = d.Process(context.Background(), rimage.NewEmptyDepthMap(3, 4), pointcloud.NewDense(4, 4), 1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "does not match detector")

	err = d.Process(context.Background(), rimage.NewEmptyDepthMap(4, 4), pointcloud.NewDense(4, 3), 1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestProcessEndToEnd(t *testing.T) {
	logger := golog.NewTestLogger(t)
	d, err := New([]string{writeConstantTree(t, parts.Neck)}, 4, 4, logger)
	test.That(t, err, test.ShouldBeNil)

	// a flat 4x4 plane one meter out
	dm := rimage.NewEmptyDepthMap(4, 4)
	params := &rimage.PinholeCameraIntrinsics{Width: 4, Height: 4, Fx: 4, Fy: 4, Ppx: 2, Ppy: 2}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			dm.Set(x, y, 1000)
		}
	}
	cloud, err := params.DepthMapToPointCloud(dm)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, d.Process(context.Background(), dm, cloud, 1), test.ShouldBeNil)

	matrix := d.Blobs()
	test.That(t, matrix.Total(), test.ShouldEqual, 1)
	blobs := matrix.Blobs(parts.Neck)
	test.That(t, blobs, test.ShouldHaveLength, 1)
	test.That(t, blobs[0].Indices, test.ShouldHaveLength, 16)
	test.That(t, blobs[0].ID, test.ShouldEqual, 0)
	test.That(t, blobs[0].Mean.Z, test.ShouldAlmostEqual, 1.0)

	labels := d.Labels()
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			test.That(t, labels.Get(x, y), test.ShouldEqual, parts.Neck)
		}
	}

	img := d.ColorizeLabels()
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 4)
	test.That(t, img.NRGBAAt(0, 0), test.ShouldResemble, parts.NewPalette().Color(parts.Neck))
}

func TestProcessFiltersSmallClusters(t *testing.T) {
	logger := golog.NewTestLogger(t)
	d, err := New([]string{writeConstantTree(t, parts.Neck)}, 4, 4, logger)
	test.That(t, err, test.ShouldBeNil)

	dm := rimage.NewEmptyDepthMap(4, 4)
	params := &rimage.PinholeCameraIntrinsics{Width: 4, Height: 4, Fx: 4, Fy: 4, Ppx: 2, Ppy: 2}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			dm.Set(x, y, 1000)
		}
	}
	cloud, err := params.DepthMapToPointCloud(dm)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, d.Process(context.Background(), dm, cloud, 17), test.ShouldBeNil)
	test.That(t, d.Blobs().Total(), test.ShouldEqual, 0)
}

func TestProcessCanceledContext(t *testing.T) {
	logger := golog.NewTestLogger(t)
	d, err := New([]string{writeConstantTree(t, parts.Neck)}, 2, 2, logger)
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = d.Process(ctx, rimage.NewEmptyDepthMap(2, 2), pointcloud.NewDense(2, 2), 1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err, test.ShouldEqual, context.Canceled)
}
