// Package skeleton defines the joint set shared by the reference and player
// streams, the transform data a pose source hands out per joint, and the
// static per-joint weight table used by scoring.
package skeleton

import "strings"

// JointID identifies a tracked body joint. The order is stable and shared by
// both motion streams, so the same index always refers to the same joint.
type JointID int

const (
	Hips JointID = iota
	Spine
	Chest
	Neck
	Head
	LeftShoulder
	LeftUpperArm
	LeftLowerArm
	LeftHand
	RightShoulder
	RightUpperArm
	RightLowerArm
	RightHand
	LeftUpperLeg
	LeftLowerLeg
	LeftFoot
	LeftToes
	RightUpperLeg
	RightLowerLeg
	RightFoot
	RightToes

	// JointCount is the number of joints evaluated every tick.
	JointCount
)

var jointNames = [JointCount]string{
	Hips:          "Hips",
	Spine:         "Spine",
	Chest:         "Chest",
	Neck:          "Neck",
	Head:          "Head",
	LeftShoulder:  "LeftShoulder",
	LeftUpperArm:  "LeftUpperArm",
	LeftLowerArm:  "LeftLowerArm",
	LeftHand:      "LeftHand",
	RightShoulder: "RightShoulder",
	RightUpperArm: "RightUpperArm",
	RightLowerArm: "RightLowerArm",
	RightHand:     "RightHand",
	LeftUpperLeg:  "LeftUpperLeg",
	LeftLowerLeg:  "LeftLowerLeg",
	LeftFoot:      "LeftFoot",
	LeftToes:      "LeftToes",
	RightUpperLeg: "RightUpperLeg",
	RightLowerLeg: "RightLowerLeg",
	RightFoot:     "RightFoot",
	RightToes:     "RightToes",
}

// String returns the joint name used in clip files and reports.
func (j JointID) String() string {
	if !j.Valid() {
		return "Unknown"
	}
	return jointNames[j]
}

// Valid reports whether j is one of the evaluated joints.
func (j JointID) Valid() bool {
	return j >= 0 && j < JointCount
}

// Joints returns every joint in evaluation order.
func Joints() []JointID {
	out := make([]JointID, JointCount)
	for i := range out {
		out[i] = JointID(i)
	}
	return out
}

// ParseJoint looks up a joint by name, ignoring case.
func ParseJoint(name string) (JointID, bool) {
	for i, n := range jointNames {
		if strings.EqualFold(n, name) {
			return JointID(i), true
		}
	}
	return 0, false
}
