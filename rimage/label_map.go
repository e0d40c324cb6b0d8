package rimage

import (
	"github.com/depthvision/bodyparts/parts"
)

// LabelMap is a dense row-major grid of body-part labels, pixel-aligned with
// the depth map it was classified from.
type LabelMap struct {
	width  int
	height int

	data []parts.Label
}

// NewLabelMap returns a map of the given dimensions with every pixel set to
// parts.Background.
func NewLabelMap(width, height int) *LabelMap {
	lm := &LabelMap{
		width:  width,
		height: height,
		data:   make([]parts.Label, width*height),
	}
	lm.Reset()
	return lm
}

func (lm *LabelMap) Width() int {
	return lm.width
}

func (lm *LabelMap) Height() int {
	return lm.height
}

func (lm *LabelMap) Cols() int {
	return lm.width
}

func (lm *LabelMap) Rows() int {
	return lm.height
}

// Size returns the number of pixels.
func (lm *LabelMap) Size() int {
	return lm.width * lm.height
}

// Contains reports whether (x, y) lies inside the map.
func (lm *LabelMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < lm.width && y < lm.height
}

func (lm *LabelMap) Get(x, y int) parts.Label {
	return lm.data[y*lm.width+x]
}

// AtIndex returns the label at row-major pixel index k.
func (lm *LabelMap) AtIndex(k int) parts.Label {
	return lm.data[k]
}

func (lm *LabelMap) Set(x, y int, l parts.Label) {
	lm.data[y*lm.width+x] = l
}

// SetIndex sets the label at row-major pixel index k.
func (lm *LabelMap) SetIndex(k int, l parts.Label) {
	lm.data[k] = l
}

// Reset sets every pixel back to parts.Background.
func (lm *LabelMap) Reset() {
	for i := range lm.data {
		lm.data[i] = parts.Background
	}
}

// Clone returns a deep copy.
func (lm *LabelMap) Clone() *LabelMap {
	out := &LabelMap{
		width:  lm.width,
		height: lm.height,
		data:   make([]parts.Label, len(lm.data)),
	}
	copy(out.data, lm.data)
	return out
}
