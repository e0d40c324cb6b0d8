// Package parts defines the fixed set of human body-part labels assigned to
// depth pixels and the color palette used to visualize them.
package parts

// Label is a body-part category assigned to a single pixel.
type Label uint8

// The body-part label set. Order matters: blob ids are assigned in label
// order, and forest leaf values index into this enumeration.
const (
	LFoot Label = iota
	LLeg
	LKnee
	LThigh
	RFoot
	RLeg
	RKnee
	RThigh
	RHips
	LHips
	Neck
	RArm
	RElbow
	RForearm
	RHand
	LArm
	LElbow
	LForearm
	LHand
	FaceLB
	FaceRB
	FaceLT
	FaceRT
	RChest
	LChest

	// NumParts is the number of valid body-part labels.
	NumParts = int(LChest) + 1

	// Background marks a pixel that belongs to no body part.
	Background = Label(NumParts)
)

var labelNames = [NumParts]string{
	"left_foot", "left_leg", "left_knee", "left_thigh",
	"right_foot", "right_leg", "right_knee", "right_thigh",
	"right_hips", "left_hips", "neck",
	"right_arm", "right_elbow", "right_forearm", "right_hand",
	"left_arm", "left_elbow", "left_forearm", "left_hand",
	"face_left_bottom", "face_right_bottom", "face_left_top", "face_right_top",
	"right_chest", "left_chest",
}

// Valid reports whether l is one of the body-part labels, as opposed to
// Background or garbage.
func (l Label) Valid() bool {
	return int(l) < NumParts
}

func (l Label) String() string {
	if !l.Valid() {
		return "background"
	}
	return labelNames[l]
}
