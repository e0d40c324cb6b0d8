package segmentation

import (
	"github.com/pkg/errors"

	"github.com/depthvision/bodyparts/rimage"
)

// Per-pixel connectivity bits produced by BuildEdges. Only right and down
// edges are stored; the flood fill derives left/up from the neighbor's mask.
const (
	// EdgeForeground marks a pixel that participates in component
	// labeling at all (valid label and a depth reading).
	EdgeForeground uint8 = 1 << iota
	// EdgeRight connects a pixel to its right neighbor.
	EdgeRight
	// EdgeDown connects a pixel to the pixel below it.
	EdgeDown
)

// ComponentLabeler partitions a smoothed label map into spatially connected
// components: a generalized flood fill approximating euclidean clustering.
// Two 4-neighbors connect when they carry the same valid label and their
// depth readings are within the cluster tolerance of each other.
//
// Contract relied on by the Aggregator: every component this labeler emits is
// label-homogeneous. A replacement labeler must preserve that, or the
// aggregation remap table has to be re-keyed by (label, component) pairs.
type ComponentLabeler struct {
	toleranceSq float64 // meters squared
}

// NewComponentLabeler creates a labeler with the given cluster tolerance in
// meters; the tolerance is squared before use.
func NewComponentLabeler(tolerance float64) (*ComponentLabeler, error) {
	if tolerance <= 0 {
		return nil, errors.Errorf("cluster tolerance must be positive, got %f", tolerance)
	}
	return &ComponentLabeler{toleranceSq: tolerance * tolerance}, nil
}

func depthDistSq(a, b rimage.Depth) float64 {
	d := (float64(a) - float64(b)) / 1000.
	return d * d
}

// BuildEdges fills the per-pixel connectivity masks for one frame. edges must
// have one entry per pixel.
func (c *ComponentLabeler) BuildEdges(labels *rimage.LabelMap, depth *rimage.DepthMap, edges []uint8) error {
	if labels.Width() != depth.Width() || labels.Height() != depth.Height() {
		return errors.Errorf("label map %dx%d and depth map %dx%d dimensions don't match",
			labels.Width(), labels.Height(), depth.Width(), depth.Height())
	}
	if len(edges) != labels.Size() {
		return errors.Errorf("edge buffer has %d entries for %d pixels", len(edges), labels.Size())
	}

	width, height := labels.Width(), labels.Height()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			k := y*width + x
			edges[k] = 0
			l := labels.Get(x, y)
			d := depth.GetDepth(x, y)
			if !l.Valid() || d == 0 {
				continue
			}
			edges[k] = EdgeForeground
			if x+1 < width {
				nl, nd := labels.Get(x+1, y), depth.GetDepth(x+1, y)
				if nl == l && nd != 0 && depthDistSq(d, nd) <= c.toleranceSq {
					edges[k] |= EdgeRight
				}
			}
			if y+1 < height {
				nl, nd := labels.Get(x, y+1), depth.GetDepth(x, y+1)
				if nl == l && nd != 0 && depthDistSq(d, nd) <= c.toleranceSq {
					edges[k] |= EdgeDown
				}
			}
		}
	}
	return nil
}

// LabelComponents flood-fills the edge graph, writing a component id per
// pixel into comps. Foreground pixels get ids counting up from zero in the
// raster order their components are first touched; everything else gets
// NoComponent. comps and edges must both have width*height entries.
func (c *ComponentLabeler) LabelComponents(width, height int, edges []uint8, comps []int32) error {
	n := width * height
	if len(edges) != n || len(comps) != n {
		return errors.Errorf("edge buffer (%d) or component buffer (%d) does not cover %dx%d pixels",
			len(edges), len(comps), width, height)
	}

	for i := range comps {
		comps[i] = NoComponent
	}

	queue := make([]int, 0, 256)
	next := int32(0)
	for start := 0; start < n; start++ {
		if edges[start]&EdgeForeground == 0 || comps[start] != NoComponent {
			continue
		}
		id := next
		next++

		queue = append(queue[:0], start)
		comps[start] = id
		for len(queue) > 0 {
			k := queue[0]
			queue = queue[1:]
			x, y := k%width, k/width

			if edges[k]&EdgeRight != 0 && comps[k+1] == NoComponent {
				comps[k+1] = id
				queue = append(queue, k+1)
			}
			if edges[k]&EdgeDown != 0 && comps[k+width] == NoComponent {
				comps[k+width] = id
				queue = append(queue, k+width)
			}
			if x > 0 && edges[k-1]&EdgeRight != 0 && comps[k-1] == NoComponent {
				comps[k-1] = id
				queue = append(queue, k-1)
			}
			if y > 0 && edges[k-width]&EdgeDown != 0 && comps[k-width] == NoComponent {
				comps[k-width] = id
				queue = append(queue, k-width)
			}
		}
	}
	return nil
}
