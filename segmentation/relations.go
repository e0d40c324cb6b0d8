package segmentation

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/depthvision/bodyparts/parts"
)

// topologyEdge links a parent body part to one of its children in the
// kinematic tree rooted at the neck.
type topologyEdge struct {
	parent parts.Label
	child  parts.Label
}

// bodyTopology is the fixed anatomical tree relations are built over.
var bodyTopology = []topologyEdge{
	{parts.Neck, parts.FaceLB},
	{parts.Neck, parts.FaceRB},
	{parts.FaceLB, parts.FaceLT},
	{parts.FaceRB, parts.FaceRT},
	{parts.Neck, parts.LChest},
	{parts.Neck, parts.RChest},
	{parts.LChest, parts.LArm},
	{parts.LArm, parts.LElbow},
	{parts.LElbow, parts.LForearm},
	{parts.LForearm, parts.LHand},
	{parts.RChest, parts.RArm},
	{parts.RArm, parts.RElbow},
	{parts.RElbow, parts.RForearm},
	{parts.RForearm, parts.RHand},
	{parts.LChest, parts.LHips},
	{parts.RChest, parts.RHips},
	{parts.LHips, parts.LThigh},
	{parts.LThigh, parts.LKnee},
	{parts.LKnee, parts.LLeg},
	{parts.LLeg, parts.LFoot},
	{parts.RHips, parts.RThigh},
	{parts.RThigh, parts.RKnee},
	{parts.RKnee, parts.RLeg},
	{parts.RLeg, parts.RFoot},
}

// RelationBuilder annotates a finished BlobMatrix with parent/child links
// along the body topology: every child blob is linked to the closest blob of
// its anatomical parent label, provided the centroids are within maxDist
// meters.
type RelationBuilder struct {
	maxDist float64
}

// NewRelationBuilder creates a builder with the given centroid distance
// ceiling in meters.
func NewRelationBuilder(maxDist float64) (*RelationBuilder, error) {
	if maxDist <= 0 {
		return nil, errors.Errorf("max relation distance must be positive, got %f", maxDist)
	}
	return &RelationBuilder{maxDist: maxDist}, nil
}

// BuildRelations mutates the blobs in place; aggregation output is otherwise
// untouched.
func (rb *RelationBuilder) BuildRelations(bm *BlobMatrix) {
	for _, edge := range bodyTopology {
		pblobs := bm.Blobs(edge.parent)
		cblobs := bm.Blobs(edge.child)
		if len(pblobs) == 0 || len(cblobs) == 0 {
			continue
		}

		dists := mat.NewDense(len(cblobs), len(pblobs), nil)
		for i, cb := range cblobs {
			for j, pb := range pblobs {
				dists.Set(i, j, cb.Mean.Sub(pb.Mean).Norm())
			}
		}

		for i, cb := range cblobs {
			bestJ := 0
			for j := 1; j < len(pblobs); j++ {
				if dists.At(i, j) < dists.At(i, bestJ) {
					bestJ = j
				}
			}
			d := dists.At(i, bestJ)
			if d > rb.maxDist {
				continue
			}
			parent := pblobs[bestJ]
			cb.Parent = &BlobRef{Label: edge.parent, LID: parent.LID, Dist: d}
			parent.Children = append(parent.Children, BlobRef{Label: edge.child, LID: cb.LID, Dist: d})
		}
	}
}
