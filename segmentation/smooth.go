package segmentation

import (
	"github.com/pkg/errors"

	"github.com/depthvision/bodyparts/parts"
	"github.com/depthvision/bodyparts/rimage"
)

// Smoother stabilizes a raw label map with a windowed majority vote: a pixel
// takes the most common valid label among the window pixels whose depth lies
// within depthThreshold millimeters of its own. Pixels with no depth reading
// and windows with no qualifying votes keep their original label.
type Smoother struct {
	patch          int
	depthThreshold int32
}

// NewSmoother creates a smoother with the given window side length (odd,
// positive) and depth gate in millimeters.
func NewSmoother(patch, depthThreshold int) (*Smoother, error) {
	if patch <= 0 || patch%2 == 0 {
		return nil, errors.Errorf("smoothing patch must be odd and positive, got %d", patch)
	}
	if depthThreshold <= 0 {
		return nil, errors.Errorf("smoothing depth threshold must be positive, got %d", depthThreshold)
	}
	return &Smoother{patch: patch, depthThreshold: int32(depthThreshold)}, nil
}

// Smooth writes the stabilized labels into out, which must not alias labels.
func (s *Smoother) Smooth(labels *rimage.LabelMap, depth *rimage.DepthMap, out *rimage.LabelMap) error {
	if labels == out {
		return errors.New("smoothing cannot run in place")
	}
	if labels.Width() != depth.Width() || labels.Height() != depth.Height() ||
		labels.Width() != out.Width() || labels.Height() != out.Height() {
		return errors.Errorf("label map %dx%d, depth map %dx%d and output %dx%d dimensions don't match",
			labels.Width(), labels.Height(), depth.Width(), depth.Height(), out.Width(), out.Height())
	}

	half := s.patch / 2
	var votes [parts.NumParts]int
	for y := 0; y < labels.Height(); y++ {
		for x := 0; x < labels.Width(); x++ {
			center := labels.Get(x, y)
			d := depth.GetDepth(x, y)
			if d == 0 {
				out.Set(x, y, center)
				continue
			}

			for i := range votes {
				votes[i] = 0
			}
			for dy := -half; dy <= half; dy++ {
				for dx := -half; dx <= half; dx++ {
					nx, ny := x+dx, y+dy
					if !labels.Contains(nx, ny) {
						continue
					}
					nd := depth.GetDepth(nx, ny)
					if nd == 0 {
						continue
					}
					diff := int32(d) - int32(nd)
					if diff < 0 {
						diff = -diff
					}
					if diff >= s.depthThreshold {
						continue
					}
					if l := labels.Get(nx, ny); l.Valid() {
						votes[l]++
					}
				}
			}

			// seed with the center's own tally so a tie never
			// flips the pixel to another label
			best := center
			bestVotes := 0
			if center.Valid() {
				bestVotes = votes[center]
			}
			for l, v := range votes {
				if v > bestVotes {
					best = parts.Label(l)
					bestVotes = v
				}
			}
			out.Set(x, y, best)
		}
	}
	return nil
}
