package segmentation

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/depthvision/bodyparts/pointcloud"
	"github.com/depthvision/bodyparts/rimage"
)

// ccStats accumulates per-component coordinate sums and member counts for one
// frame. Storage is offset by one slot so the NoComponent sentinel owns slot
// zero: it accumulates like any other id but is never promoted to a blob.
type ccStats struct {
	sums   []r3.Vector
	counts []int32
}

func (s *ccStats) reset(numComponents int) {
	if len(s.counts) != numComponents+1 {
		s.sums = make([]r3.Vector, numComponents+1)
		s.counts = make([]int32, numComponents+1)
		return
	}
	for i := range s.counts {
		s.sums[i] = r3.Vector{}
		s.counts[i] = 0
	}
}

func (s *ccStats) add(cc int32, p r3.Vector) {
	s.sums[cc+1] = s.sums[cc+1].Add(p)
	s.counts[cc+1]++
}

func (s *ccStats) count(cc int32) int32 {
	return s.counts[cc+1]
}

func (s *ccStats) mean(cc int32) r3.Vector {
	return s.sums[cc+1].Mul(1.0 / float64(s.counts[cc+1]))
}

// Aggregator owns the scratch state for the blob aggregation pass and reuses
// it frame to frame. Not safe for concurrent use; callers run at most one
// Aggregate at a time per instance.
type Aggregator struct {
	maxClusterSize int

	stats ccStats
	remap []int32
}

// NewAggregator creates an aggregator with the given upper cluster size
// bound (inclusive).
func NewAggregator(maxClusterSize int) (*Aggregator, error) {
	if maxClusterSize <= 0 {
		return nil, errors.Errorf("max cluster size must be positive, got %d", maxClusterSize)
	}
	return &Aggregator{maxClusterSize: maxClusterSize}, nil
}

// ensureCapacity sizes the scratch buffers for a frame of n pixels and
// resets the per-frame state. Idempotent; reallocates only when n changes.
func (a *Aggregator) ensureCapacity(n int) {
	a.stats.reset(n)
	if len(a.remap) != n {
		a.remap = make([]int32, n)
	}
	for i := range a.remap {
		a.remap[i] = NoComponent
	}
}

// Aggregate reduces one frame to a BlobMatrix in two raster passes: first
// accumulate per-component sums and counts, then materialize one blob per
// surviving (label, component) pair. A component survives when its member
// count lies in [minPtsPerCluster, maxClusterSize]; everything else is
// silently dropped. The remap table is keyed by component id alone, which is
// sound because the component labeler never lets a component straddle two
// labels (see ComponentLabeler).
//
// On any precondition error no blob state is exposed.
func (a *Aggregator) Aggregate(
	labels *rimage.LabelMap,
	comps []int32,
	cloud *pointcloud.Dense,
	minPtsPerCluster int,
) (*BlobMatrix, error) {
	n := labels.Size()
	if len(comps) != n || cloud.Size() != n {
		return nil, errors.Errorf("label grid (%d), component grid (%d) and cloud (%d) pixel counts don't match",
			n, len(comps), cloud.Size())
	}
	if minPtsPerCluster < 0 {
		return nil, errors.Errorf("min points per cluster must be >= 0, got %d", minPtsPerCluster)
	}
	if a.maxClusterSize <= minPtsPerCluster {
		return nil, errors.Errorf("max cluster size %d must exceed min points per cluster %d",
			a.maxClusterSize, minPtsPerCluster)
	}
	for k, cc := range comps {
		if cc < NoComponent || int(cc) >= n {
			return nil, errors.Errorf("component id %d at pixel %d out of range [-1, %d)", cc, k, n)
		}
	}

	a.ensureCapacity(n)

	for k, cc := range comps {
		a.stats.add(cc, cloud.AtIndex(k))
	}

	matrix := NewBlobMatrix()
	for k, cc := range comps {
		if cc == NoComponent {
			continue
		}
		count := int(a.stats.count(cc))
		if count < minPtsPerCluster || count > a.maxClusterSize {
			continue
		}
		label := labels.AtIndex(k)
		if !label.Valid() {
			// components are built over labeled pixels only; a
			// surviving component under a background pixel means
			// the caller broke the labeler contract, so the pixel
			// is skipped rather than crashing on the matrix index.
			continue
		}
		ccindex := a.remap[cc]
		if ccindex == NoComponent {
			blob := &Blob{
				Label:   label,
				Mean:    a.stats.mean(cc),
				Indices: make([]int, 0, count),
			}
			ccindex = int32(matrix.append(label, blob))
			a.remap[cc] = ccindex
		}
		blob := matrix.lists[label][ccindex]
		blob.Indices = append(blob.Indices, k)
	}

	matrix.finalize()
	return matrix, nil
}
