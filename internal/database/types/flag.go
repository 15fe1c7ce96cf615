package types

import (
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/uptrace/bun"
)

// SubmissionFlag is a report that a submission is unsuitable.
// FlaggedBy is zero for flags raised by the system.
type SubmissionFlag struct {
	bun.BaseModel `bun:"table:submission_flags,alias:sf"`

	ID           int64           `bun:",pk,autoincrement"                  json:"id"`
	SubmissionID int64           `bun:",notnull"                           json:"submissionId"`
	FlaggedBy    int64           `bun:",nullzero"                          json:"flaggedBy,omitempty"`
	Reason       enum.FlagReason `bun:",notnull"                           json:"reason"`
	Notes        string          `bun:",nullzero"                          json:"notes,omitempty"`
	CreatedAt    time.Time       `bun:",notnull,default:current_timestamp" json:"createdAt"`
}
