package types

import (
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
)

// Review decisions accepted by the admin endpoints.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionValid   = "valid"
	DecisionInvalid = "invalid"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned after registration or login.
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *types.User `json:"user"`
}

// ReviewRequest is the body of the upload review and report validation endpoints.
type ReviewRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
	Points   *int   `json:"points,omitempty"`
}

// FlagRequest is the body of POST /uploads/:id/flag.
type FlagRequest struct {
	Reason enum.FlagReason `json:"reason"`
	Notes  string          `json:"notes"`
}

// BanRequest is the body of POST /admin/users/:id/ban.
type BanRequest struct {
	Reason string `json:"reason"`
}

// PublicUser is the part of an account shown to other users.
type PublicUser struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Role        enum.Role `json:"role"`
	Location    string    `json:"location"`
	TotalPoints int64     `json:"totalPoints"`
}

// Submission is a submission with its owner reduced to public fields.
type Submission struct {
	*types.Submission

	Owner *PublicUser `json:"owner,omitempty"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// AnalysisView is the AI analysis of an upload together with its reward.
type AnalysisView struct {
	SubmissionID int64          `json:"submissionId"`
	Analysis     types.Analysis `json:"analysis"`
	Rewards      types.Rewards  `json:"rewards"`
}

// RankResponse is returned by GET /users/:id/rank.
type RankResponse struct {
	UserID int64 `json:"userId"`
	Rank   int64 `json:"rank"`
}

// QueueStats reports waiting analysis jobs per priority.
type QueueStats struct {
	High   int `json:"high"`
	Normal int `json:"normal"`
	Low    int `json:"low"`
}

// AdminStats combines system counters with queue depth and view freshness.
type AdminStats struct {
	*types.SystemStats

	Queue       QueueStats `json:"queue"`
	LastRefresh time.Time  `json:"lastRefresh,omitzero"`
	NextRefresh time.Time  `json:"nextRefresh,omitzero"`
}

// WorkerStatus is one worker's heartbeat.
type WorkerStatus struct {
	WorkerID    string    `json:"workerId"`
	WorkerType  string    `json:"workerType"`
	LastSeen    time.Time `json:"lastSeen"`
	CurrentTask string    `json:"currentTask,omitempty"`
	Progress    int       `json:"progress"`
	IsHealthy   bool      `json:"isHealthy"`
	IsOnline    bool      `json:"isOnline"`
}
