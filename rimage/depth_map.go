// Package rimage holds the raster types the detection pipeline runs over:
// depth maps, per-pixel label maps, and the camera intrinsics used to project
// depth into a point cloud.
package rimage

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"image"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Depth is the depth of a single pixel, in millimeters. Zero means the sensor
// returned no reading for that pixel.
type Depth uint16

// MaxDepth is the largest representable depth value.
const MaxDepth = Depth(^uint16(0))

// DepthMap is a dense row-major grid of depth samples.
type DepthMap struct {
	width  int
	height int

	data []Depth
}

// NewEmptyDepthMap returns a zeroed depth map of the given dimensions.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}
}

func (dm *DepthMap) Width() int {
	return dm.width
}

func (dm *DepthMap) Height() int {
	return dm.height
}

func (dm *DepthMap) Cols() int {
	return dm.width
}

func (dm *DepthMap) Rows() int {
	return dm.height
}

// Size returns the number of pixels.
func (dm *DepthMap) Size() int {
	return dm.width * dm.height
}

func (dm *DepthMap) kxy(x, y int) int {
	return y*dm.width + x
}

// Contains reports whether (x, y) lies inside the map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[dm.kxy(x, y)]
}

// AtIndex returns the depth at row-major pixel index k.
func (dm *DepthMap) AtIndex(k int) Depth {
	return dm.data[k]
}

func (dm *DepthMap) Get(p image.Point) Depth {
	return dm.data[dm.kxy(p.X, p.Y)]
}

func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[dm.kxy(x, y)] = val
}

// Clone returns a deep copy.
func (dm *DepthMap) Clone() *DepthMap {
	out := NewEmptyDepthMap(dm.width, dm.height)
	copy(out.data, dm.data)
	return out
}

// depthMapMagic starts every serialized depth map.
var depthMapMagic = []byte("VNDM")

// WriteTo writes the map in the gzipped binary format ParseDepthMap reads.
func (dm *DepthMap) WriteTo(out io.Writer) (err error) {
	gout := gzip.NewWriter(out)
	defer func() {
		err = multierr.Combine(err, gout.Close())
	}()

	if _, err = gout.Write(depthMapMagic); err != nil {
		return err
	}
	if err = binary.Write(gout, binary.LittleEndian, int32(dm.width)); err != nil {
		return err
	}
	if err = binary.Write(gout, binary.LittleEndian, int32(dm.height)); err != nil {
		return err
	}
	return binary.Write(gout, binary.LittleEndian, dm.data)
}

// WriteToFile writes the map to the given path.
func (dm *DepthMap) WriteToFile(fn string) (err error) {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	w := bufio.NewWriter(f)
	if err = dm.WriteTo(w); err != nil {
		return err
	}
	return w.Flush()
}

// ReadDepthMap parses the gzipped binary format written by WriteTo.
func ReadDepthMap(in io.Reader) (dm *DepthMap, err error) {
	gin, err := gzip.NewReader(in)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, gin.Close())
	}()

	magic := make([]byte, len(depthMapMagic))
	if _, err = io.ReadFull(gin, magic); err != nil {
		return nil, errors.Wrap(err, "cannot read depth map header")
	}
	if string(magic) != string(depthMapMagic) {
		return nil, errors.Errorf("not a depth map file, header %q", magic)
	}

	var width, height int32
	if err = binary.Read(gin, binary.LittleEndian, &width); err != nil {
		return nil, err
	}
	if err = binary.Read(gin, binary.LittleEndian, &height); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid depth map dimensions %dx%d", width, height)
	}

	dm = NewEmptyDepthMap(int(width), int(height))
	if err = binary.Read(gin, binary.LittleEndian, dm.data); err != nil {
		return nil, errors.Wrap(err, "depth map data truncated")
	}
	return dm, nil
}

// ParseDepthMapFromFile reads a depth map from the given path.
func ParseDepthMapFromFile(fn string) (dm *DepthMap, err error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return ReadDepthMap(bufio.NewReader(f))
}
