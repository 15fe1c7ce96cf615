package types

import (
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/uptrace/bun"
)

// ActivityLog is an audit record of something a user or the system did.
type ActivityLog struct {
	bun.BaseModel `bun:"table:activity_logs,alias:al"`

	ID           int64             `bun:",pk,autoincrement"                  json:"id"`
	ActorID      int64             `bun:",nullzero"                          json:"actorId,omitempty"`
	SubmissionID int64             `bun:",nullzero"                          json:"submissionId,omitempty"`
	TargetUserID int64             `bun:",nullzero"                          json:"targetUserId,omitempty"`
	Type         enum.ActivityType `bun:",notnull"                           json:"type"`
	Details      map[string]any    `bun:"type:jsonb,nullzero"                json:"details,omitempty"`
	CreatedAt    time.Time         `bun:",notnull,default:current_timestamp" json:"createdAt"`
}
