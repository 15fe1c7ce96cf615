package types

import (
	"time"

	"github.com/uptrace/bun"
)

// SystemStats are the headline counters shown on the admin dashboard.
type SystemStats struct {
	TotalUsers       int64 `bun:"total_users"       json:"totalUsers"`
	TotalReports     int64 `bun:"total_reports"     json:"totalReports"`
	ValidatedReports int64 `bun:"validated_reports" json:"validatedReports"`
	MangrovesSaved   int64 `bun:"mangroves_saved"   json:"mangrovesSaved"`
	TotalUploads     int64 `bun:"total_uploads"     json:"totalUploads"`
	ApprovedUploads  int64 `bun:"approved_uploads"  json:"approvedUploads"`
	PendingAnalyses  int64 `bun:"pending_analyses"  json:"pendingAnalyses"`
	FailedAnalyses   int64 `bun:"failed_analyses"   json:"failedAnalyses"`
	PointsCredited   int64 `bun:"points_credited"   json:"pointsCredited"`
}

// MangrovesPerValidatedReport is the conservation estimate shown for each validated report.
const MangrovesPerValidatedReport = 10

// HourlyStats is an hourly snapshot of system counters.
type HourlyStats struct {
	bun.BaseModel `bun:"table:hourly_stats,alias:hs"`

	Timestamp        time.Time `bun:",pk"      json:"timestamp"`
	TotalUsers       int64     `bun:",notnull" json:"totalUsers"`
	TotalReports     int64     `bun:",notnull" json:"totalReports"`
	ValidatedReports int64     `bun:",notnull" json:"validatedReports"`
	TotalUploads     int64     `bun:",notnull" json:"totalUploads"`
	ApprovedUploads  int64     `bun:",notnull" json:"approvedUploads"`
	PendingAnalyses  int64     `bun:",notnull" json:"pendingAnalyses"`
	PointsCredited   int64     `bun:",notnull" json:"pointsCredited"`
}

// MaterializedViewRefresh tracks when a materialized view was last refreshed.
type MaterializedViewRefresh struct {
	bun.BaseModel `bun:"table:materialized_view_refreshes"`

	ViewName    string    `bun:",pk"      json:"viewName"`
	LastRefresh time.Time `bun:",notnull" json:"lastRefresh"`
}
