package enum

// FlagReason is why a submission was flagged.
type FlagReason string

const (
	FlagReasonInappropriate FlagReason = "inappropriate"
	FlagReasonLowQuality    FlagReason = "low_quality"
	FlagReasonNotMangrove   FlagReason = "not_mangrove"
	FlagReasonDuplicate     FlagReason = "duplicate"
	FlagReasonSpam          FlagReason = "spam"
)

// IsValid reports whether r is a known flag reason.
func (r FlagReason) IsValid() bool {
	switch r {
	case FlagReasonInappropriate, FlagReasonLowQuality, FlagReasonNotMangrove,
		FlagReasonDuplicate, FlagReasonSpam:
		return true
	default:
		return false
	}
}
