package enum

// RewardStatus is the reward decision for a submission.
type RewardStatus string

const (
	RewardStatusPending  RewardStatus = "pending"
	RewardStatusApproved RewardStatus = "approved"
	RewardStatusRejected RewardStatus = "rejected"
)

// Badge is an achievement tag attached to a scored submission.
type Badge string

const (
	BadgeHighAccuracy     Badge = "high_accuracy"
	BadgeExcellentQuality Badge = "excellent_quality"
	BadgeMangroveExpert   Badge = "mangrove_expert"
	BadgeConservationHero Badge = "conservation_hero"
)
