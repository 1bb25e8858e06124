// Package mocopi receives skeletal motion from Sony mocopi sensors and
// exposes it as a pose source.
//
// The sensor app streams UDP datagrams made of nested boxes. A skeleton
// definition (skdf) describes the bone hierarchy once; frames (fram) then
// carry per-bone transforms relative to the parent bone. Source rebuilds
// world-space transforms and maps mocopi bones onto the scoring skeleton.
package mocopi

import (
	"strconv"

	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// BoneID indexes the 27 mocopi bones.
type BoneID uint16

// BoneCount is the number of standard mocopi bones.
const BoneCount = 27

// NoParent marks the root bone.
const NoParent = -1

// BoneNames lists the mocopi bone names by BoneID.
var BoneNames = [BoneCount]string{
	"root", "torso_1", "torso_2", "torso_3", "torso_4", "torso_5", "torso_6", "torso_7",
	"neck_1", "neck_2", "head",
	"l_shoulder", "l_up_arm", "l_low_arm", "l_hand",
	"r_shoulder", "r_up_arm", "r_low_arm", "r_hand",
	"l_up_leg", "l_low_leg", "l_foot", "l_toes",
	"r_up_leg", "r_low_leg", "r_foot", "r_toes",
}

// StandardParents is the default hierarchy, used until a skeleton
// definition arrives.
var StandardParents = [BoneCount]int{
	NoParent, 0, 1, 2, 3, 4, 5, 6, // root, torso chain
	7, 8, 9, // neck_1, neck_2, head
	7, 11, 12, 13, // left arm
	7, 15, 16, 17, // right arm
	0, 19, 20, 21, // left leg
	0, 23, 24, 25, // right leg
}

// boneJoints maps scoring joints to the mocopi bone carrying them.
var boneJoints = [skeleton.JointCount]BoneID{
	skeleton.Hips:          0,
	skeleton.Spine:         1,
	skeleton.Chest:         7,
	skeleton.Neck:          8,
	skeleton.Head:          10,
	skeleton.LeftShoulder:  11,
	skeleton.LeftUpperArm:  12,
	skeleton.LeftLowerArm:  13,
	skeleton.LeftHand:      14,
	skeleton.RightShoulder: 15,
	skeleton.RightUpperArm: 16,
	skeleton.RightLowerArm: 17,
	skeleton.RightHand:     18,
	skeleton.LeftUpperLeg:  19,
	skeleton.LeftLowerLeg:  20,
	skeleton.LeftFoot:      21,
	skeleton.LeftToes:      22,
	skeleton.RightUpperLeg: 23,
	skeleton.RightLowerLeg: 24,
	skeleton.RightFoot:     25,
	skeleton.RightToes:     26,
}

// String returns the mocopi bone name, or "bone_<n>" outside the standard set.
func (b BoneID) String() string {
	if int(b) < BoneCount {
		return BoneNames[b]
	}
	return "bone_" + strconv.Itoa(int(b))
}

// ParseBone looks up a bone by its mocopi name.
func ParseBone(name string) (BoneID, bool) {
	for i, n := range BoneNames {
		if n == name {
			return BoneID(i), true
		}
	}
	return 0, false
}

// BoneFor returns the mocopi bone driving joint j.
func BoneFor(j skeleton.JointID) (BoneID, bool) {
	if !j.Valid() {
		return 0, false
	}
	return boneJoints[j], true
}
