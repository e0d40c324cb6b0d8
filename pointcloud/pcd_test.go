package pointcloud

import (
	"bytes"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func testCloud(t *testing.T) *Dense {
	t.Helper()
	cloud, err := NewDenseFromPoints(2, 2, []r3.Vector{
		{0, 0, 0},
		{0.5, 0, 1},
		{-0.25, 1.5, 2},
		{1, 1, 1},
	})
	test.That(t, err, test.ShouldBeNil)
	return cloud
}

func TestNewDenseFromPoints(t *testing.T) {
	_, err := NewDenseFromPoints(2, 2, make([]r3.Vector, 3))
	test.That(t, err, test.ShouldNotBeNil)

	cloud := testCloud(t)
	test.That(t, cloud.Size(), test.ShouldEqual, 4)
	test.That(t, cloud.At(1, 0), test.ShouldResemble, r3.Vector{0.5, 0, 1})
	test.That(t, cloud.AtIndex(2), test.ShouldResemble, r3.Vector{-0.25, 1.5, 2})
}

func TestPCDRoundTripBinary(t *testing.T) {
	cloud := testCloud(t)
	var buf bytes.Buffer
	test.That(t, ToPCD(cloud, &buf, PCDBinary), test.ShouldBeNil)

	got, err := ReadPCD(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Width(), test.ShouldEqual, 2)
	test.That(t, got.Height(), test.ShouldEqual, 2)
	test.That(t, got, test.ShouldResemble, cloud)
}

func TestPCDRoundTripAscii(t *testing.T) {
	cloud := testCloud(t)
	var buf bytes.Buffer
	test.That(t, ToPCD(cloud, &buf, PCDAscii), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldContainSubstring, "DATA ascii")

	got, err := ReadPCD(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Width(), test.ShouldEqual, 2)
	for k := 0; k < cloud.Size(); k++ {
		p, q := cloud.AtIndex(k), got.AtIndex(k)
		test.That(t, q.X, test.ShouldAlmostEqual, p.X, 1e-5)
		test.That(t, q.Y, test.ShouldAlmostEqual, p.Y, 1e-5)
		test.That(t, q.Z, test.ShouldAlmostEqual, p.Z, 1e-5)
	}
}

func TestReadPCDRejectsBadHeaders(t *testing.T) {
	_, err := ReadPCD(strings.NewReader("VERSION .6\n"))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ReadPCD(strings.NewReader(
		"VERSION .7\nFIELDS x y z rgb\n"))
	test.That(t, err, test.ShouldNotBeNil)

	// POINTS must equal WIDTH*HEIGHT for an organized cloud
	_, err = ReadPCD(strings.NewReader(
		"VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n" +
			"WIDTH 2\nHEIGHT 2\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS 3\nDATA ascii\n"))
	test.That(t, err, test.ShouldNotBeNil)

	// truncated data
	_, err = ReadPCD(strings.NewReader(
		"VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n" +
			"WIDTH 2\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS 2\nDATA ascii\n" +
			"0 0 0\n"))
	test.That(t, err, test.ShouldNotBeNil)
}
