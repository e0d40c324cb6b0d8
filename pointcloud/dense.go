// Package pointcloud provides the organized (pixel-aligned) point cloud the
// detection pipeline consumes, plus PCD serialization for it.
//
// A Dense cloud has exactly rows*cols points in row-major order, sharing its
// indexing with the depth and label grids it was projected from. Points with
// no depth reading are the zero vector.
package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Dense is an organized point cloud with one point per pixel.
type Dense struct {
	width  int
	height int

	points []r3.Vector
}

// NewDense returns a zeroed organized cloud of the given dimensions.
func NewDense(width, height int) *Dense {
	return &Dense{
		width:  width,
		height: height,
		points: make([]r3.Vector, width*height),
	}
}

// NewDenseFromPoints wraps an existing row-major point slice.
func NewDenseFromPoints(width, height int, points []r3.Vector) (*Dense, error) {
	if len(points) != width*height {
		return nil, errors.Errorf("organized cloud needs %d points for %dx%d, got %d",
			width*height, width, height, len(points))
	}
	return &Dense{width: width, height: height, points: points}, nil
}

func (c *Dense) Width() int {
	return c.width
}

func (c *Dense) Height() int {
	return c.height
}

func (c *Dense) Cols() int {
	return c.width
}

func (c *Dense) Rows() int {
	return c.height
}

// Size returns the number of points (rows*cols).
func (c *Dense) Size() int {
	return len(c.points)
}

// AtIndex returns the point at row-major pixel index k.
func (c *Dense) AtIndex(k int) r3.Vector {
	return c.points[k]
}

// At returns the point at pixel (x, y).
func (c *Dense) At(x, y int) r3.Vector {
	return c.points[y*c.width+x]
}

// SetIndex sets the point at row-major pixel index k.
func (c *Dense) SetIndex(k int, p r3.Vector) {
	c.points[k] = p
}

// Set sets the point at pixel (x, y).
func (c *Dense) Set(x, y int, p r3.Vector) {
	c.points[y*c.width+x] = p
}

// Iterate calls fn for every point in raster order until fn returns false.
func (c *Dense) Iterate(fn func(k int, p r3.Vector) bool) {
	for k, p := range c.points {
		if !fn(k, p) {
			return
		}
	}
}
