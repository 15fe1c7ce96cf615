package types

import (
	"time"

	"github.com/uptrace/bun"
)

// LedgerEntry records that a submission's points were added to its owner's total.
// The unique submission_id column makes crediting at-most-once.
type LedgerEntry struct {
	bun.BaseModel `bun:"table:ledger_entries,alias:le"`

	ID           int64     `bun:",pk,autoincrement"                  json:"id"`
	SubmissionID int64     `bun:",notnull,unique"                    json:"submissionId"`
	UserID       int64     `bun:",notnull"                           json:"userId"`
	Points       int       `bun:",notnull"                           json:"points"`
	Source       string    `bun:",notnull"                           json:"source"`
	CreatedAt    time.Time `bun:",notnull,default:current_timestamp" json:"createdAt"`
}

const (
	// CreditSourceAutomatic marks credits applied by the analysis pipeline.
	CreditSourceAutomatic = "automatic"
	// CreditSourceManual marks credits applied by an administrator's review.
	CreditSourceManual = "manual"
	// CreditSourceRecovery marks credits applied by the recovery worker.
	CreditSourceRecovery = "recovery"
)

// CreditResult describes the outcome of a credit attempt.
type CreditResult struct {
	Credited    bool  `json:"credited"`
	TotalPoints int64 `json:"totalPoints"`
}

// LedgerMismatch is a user whose total differs from the sum of their ledger entries.
type LedgerMismatch struct {
	UserID      int64  `bun:"user_id"      json:"userId"`
	Email       string `bun:"email"        json:"email"`
	TotalPoints int64  `bun:"total_points" json:"totalPoints"`
	LedgerSum   int64  `bun:"ledger_sum"   json:"ledgerSum"`
}
