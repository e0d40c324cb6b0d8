package rimage

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestPinholeProjection(t *testing.T) {
	params := &PinholeCameraIntrinsics{Width: 4, Height: 4, Fx: 2, Fy: 2, Ppx: 2, Ppy: 2}
	test.That(t, params.CheckValid(), test.ShouldBeNil)

	p := params.PixelToPoint(2, 2, 1.5)
	test.That(t, p.X, test.ShouldEqual, 0)
	test.That(t, p.Y, test.ShouldEqual, 0)
	test.That(t, p.Z, test.ShouldEqual, 1.5)

	p = params.PixelToPoint(4, 2, 1)
	test.That(t, p.X, test.ShouldEqual, 1)
}

func TestDepthMapToPointCloud(t *testing.T) {
	params := &PinholeCameraIntrinsics{Width: 2, Height: 1, Fx: 2, Fy: 2, Ppx: 1, Ppy: 0}
	dm := NewEmptyDepthMap(2, 1)
	dm.Set(0, 0, 2000)
	// pixel (1,0) has no reading and stays at the origin

	cloud, err := params.DepthMapToPointCloud(dm)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 2)
	test.That(t, cloud.At(0, 0).Z, test.ShouldEqual, 2.0)
	test.That(t, cloud.At(0, 0).X, test.ShouldEqual, -1.0)
	test.That(t, cloud.At(1, 0).Norm(), test.ShouldEqual, 0)

	_, err = params.DepthMapToPointCloud(NewEmptyDepthMap(3, 1))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestIntrinsicsFromJSONFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "intrinsics.json")
	test.That(t, os.WriteFile(fn,
		[]byte(`{"width_px":640,"height_px":480,"fx":525,"fy":525,"ppx":320,"ppy":240}`), 0o600),
		test.ShouldBeNil)

	params, err := NewPinholeCameraIntrinsicsFromJSONFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.Fx, test.ShouldEqual, 525.0)
	test.That(t, params.Width, test.ShouldEqual, 640)

	bad := filepath.Join(t.TempDir(), "bad.json")
	test.That(t, os.WriteFile(bad, []byte(`{"width_px":0}`), 0o600), test.ShouldBeNil)
	_, err = NewPinholeCameraIntrinsicsFromJSONFile(bad)
	test.That(t, err, test.ShouldNotBeNil)
}
