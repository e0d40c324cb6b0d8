// Package segmentation turns a per-pixel label grid and an aligned organized
// point cloud into size-bounded blobs: connected clusters of same-label
// points reduced to a centroid, a member pixel list, and frame-local ids.
// It also holds the label smoother, the connected-component labeler, and the
// blob relation builder the detection pipeline is assembled from.
package segmentation

import (
	"github.com/golang/geo/r3"

	"github.com/depthvision/bodyparts/parts"
)

// NoComponent is the component id of pixels that belong to no component.
const NoComponent int32 = -1

// BlobRef points at a blob in another label's list, with the centroid
// distance the link was made at.
type BlobRef struct {
	Label parts.Label
	LID   int
	Dist  float64
}

// Blob is one surviving (label, component) cluster for a single frame.
// Indices hold the member pixels in raster order; ID is unique across the
// whole frame, LID within the label's list. Parent and Children are filled
// in by the RelationBuilder after aggregation.
type Blob struct {
	Label   parts.Label
	Mean    r3.Vector
	Indices []int
	ID      int
	LID     int

	Parent   *BlobRef
	Children []BlobRef
}

// BlobMatrix holds one list of blobs per body-part label, each in creation
// (raster) order. It is rebuilt from scratch every frame.
type BlobMatrix struct {
	lists [][]*Blob
}

// NewBlobMatrix returns an empty matrix with one list per label.
func NewBlobMatrix() *BlobMatrix {
	return &BlobMatrix{lists: make([][]*Blob, parts.NumParts)}
}

// Blobs returns the list for one label; nil for invalid labels.
func (bm *BlobMatrix) Blobs(l parts.Label) []*Blob {
	if !l.Valid() {
		return nil
	}
	return bm.lists[l]
}

// Total returns the number of blobs across all labels.
func (bm *BlobMatrix) Total() int {
	n := 0
	for _, list := range bm.lists {
		n += len(list)
	}
	return n
}

// Iterate calls fn for every blob in (label, creation) order until fn
// returns false.
func (bm *BlobMatrix) Iterate(fn func(b *Blob) bool) {
	for _, list := range bm.lists {
		for _, b := range list {
			if !fn(b) {
				return
			}
		}
	}
}

func (bm *BlobMatrix) append(l parts.Label, b *Blob) int {
	bm.lists[l] = append(bm.lists[l], b)
	return len(bm.lists[l]) - 1
}

// finalize assigns global ids in (label, creation) order and per-list lids.
func (bm *BlobMatrix) finalize() {
	id := 0
	for _, list := range bm.lists {
		for lid, b := range list {
			b.ID = id
			b.LID = lid
			id++
		}
	}
}
