package classify

// Skeleton joint names as reported by the body tracking camera.
const (
	JointHead          = "HEAD"
	JointNeck          = "NECK"
	JointSpineChest    = "SPINE_CHEST"
	JointPelvis        = "PELVIS"
	JointLeftShoulder  = "LEFT_SHOULDER"
	JointRightShoulder = "RIGHT_SHOULDER"
	JointLeftHand      = "LEFT_HAND"
	JointRightHand     = "RIGHT_HAND"
	JointLeftHip       = "LEFT_HIP"
	JointRightHip      = "RIGHT_HIP"
	JointLeftKnee      = "LEFT_KNEE"
	JointRightKnee     = "RIGHT_KNEE"
	JointLeftAnkle     = "LEFT_ANKLE"
	JointRightAnkle    = "RIGHT_ANKLE"
)

// Joint is one tracked skeleton joint in camera space, where the Y axis
// points down and positions are in meters.
type Joint struct {
	Position   Vec3    `json:"position"`
	Confidence float64 `json:"confidence"`
}

// Frame is one skeleton sample keyed by joint name.
type Frame map[string]Joint
