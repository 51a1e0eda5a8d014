// Package robot provides abstractions for controlling robot arms.
package robot

// JointName identifies a joint in the arm.
type JointName string

// Joint names for the SO-101 arm.
const (
	ShoulderPan  JointName = "shoulder_pan"
	ShoulderLift JointName = "shoulder_lift"
	ElbowFlex    JointName = "elbow_flex"
	WristFlex    JointName = "wrist_flex"
	WristRoll    JointName = "wrist_roll"
	Gripper      JointName = "gripper"
)

// NumJoints is the number of joints in an SO-101 arm. Frame length and the
// stored trajectory shape are fixed to this for the lifetime of the system.
const NumJoints = 6

// AllJoints returns all joint names in order (matching servo IDs 1-6).
func AllJoints() []JointName {
	return []JointName{
		ShoulderPan,
		ShoulderLift,
		ElbowFlex,
		WristFlex,
		WristRoll,
		Gripper,
	}
}

// JointIDs returns the servo IDs in frame order.
func JointIDs() []int {
	ids := make([]int, NumJoints)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

// Frame is one synchronized sample of all joint positions, raw servo units,
// indexed in joint order. Length is always NumJoints.
type Frame []int32

// Clone returns an independent copy of the frame.
func (f Frame) Clone() Frame {
	c := make(Frame, len(f))
	copy(c, f)
	return c
}
