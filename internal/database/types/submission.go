package types

import (
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/uptrace/bun"
)

// Analysis is the validated classifier result embedded in a submission.
type Analysis struct {
	Status           enum.AnalysisStatus `bun:",notnull,default:'pending'" json:"status"`
	Accuracy         int                 `bun:",notnull,default:0"         json:"accuracy"`
	Confidence       int                 `bun:",notnull,default:0"         json:"confidence"`
	Quality          enum.Quality        `bun:",nullzero"                  json:"quality,omitempty"`
	MangroveEvidence string              `bun:",nullzero"                  json:"mangroveEvidence,omitempty"`
	Notes            string              `bun:",nullzero"                  json:"notes,omitempty"`
	Issues           string              `bun:",nullzero"                  json:"issues,omitempty"`
	Recommendations  string              `bun:",nullzero"                  json:"recommendations,omitempty"`
	Attempts         int                 `bun:",notnull,default:0"         json:"attempts"`
	StartedAt        time.Time           `bun:",nullzero"                  json:"startedAt,omitzero"`
	AnalyzedAt       time.Time           `bun:",nullzero"                  json:"analyzedAt,omitzero"`
}

// Rewards is the scoring outcome embedded in a submission.
// CreditedAt is set in the same transaction as the ledger entry.
type Rewards struct {
	Points     int               `bun:",notnull,default:0"         json:"points"`
	Badges     []enum.Badge      `bun:",array"                     json:"badges"`
	Status     enum.RewardStatus `bun:",notnull,default:'pending'" json:"status"`
	Manual     bool              `bun:",notnull,default:false"     json:"manual"`
	ApprovedAt time.Time         `bun:",nullzero"                  json:"approvedAt,omitzero"`
	ApprovedBy int64             `bun:",nullzero"                  json:"approvedBy,omitempty"`
	ReviewedAt time.Time         `bun:",nullzero"                  json:"reviewedAt,omitzero"`
	ReviewedBy int64             `bun:",nullzero"                  json:"reviewedBy,omitempty"`
	CreditedAt time.Time         `bun:",nullzero"                  json:"creditedAt,omitzero"`
}

// Submission is either an incident report or a photo upload.
type Submission struct {
	bun.BaseModel `bun:"table:submissions,alias:s"`

	ID           int64                 `bun:",pk,autoincrement"     json:"id"`
	Kind         enum.SubmissionKind   `bun:",notnull"              json:"kind"`
	UserID       int64                 `bun:",notnull"              json:"userId"`
	Title        string                `bun:",nullzero"             json:"title,omitempty"`
	Description  string                `bun:",notnull"              json:"description"`
	ImageURL     string                `bun:",notnull"              json:"imageUrl"`
	Category     enum.Category         `bun:",notnull"              json:"category"`
	IncidentType enum.IncidentType     `bun:",nullzero"             json:"incidentType,omitempty"`
	Tags         []string              `bun:",array"                json:"tags,omitempty"`
	Latitude     *float64              `bun:",nullzero"             json:"latitude,omitempty"`
	Longitude    *float64              `bun:",nullzero"             json:"longitude,omitempty"`
	Status       enum.SubmissionStatus `bun:",notnull"              json:"status"`
	Analysis     Analysis              `bun:"embed:analysis_"       json:"analysis"`
	Rewards      Rewards               `bun:"embed:rewards_"        json:"rewards"`

	ValidationNotes string    `bun:",nullzero" json:"validationNotes,omitempty"`
	ValidatedBy     int64     `bun:",nullzero" json:"validatedBy,omitempty"`
	ValidatedAt     time.Time `bun:",nullzero" json:"validatedAt,omitzero"`
	ResolvedAt      time.Time `bun:",nullzero" json:"resolvedAt,omitzero"`

	CreatedAt time.Time `bun:",notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:",notnull,default:current_timestamp" json:"updatedAt"`

	Owner *User `bun:"rel:belongs-to,join:user_id=id" json:"owner,omitempty"`
}

// IsCredited reports whether the ledger already holds an entry for this submission.
func (s *Submission) IsCredited() bool {
	return !s.Rewards.CreditedAt.IsZero()
}

// IsEditable reports whether content may still be changed by the owner.
func (s *Submission) IsEditable() bool {
	return s.Status == enum.InitialStatus(s.Kind)
}

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	Kind     enum.SubmissionKind
	Status   enum.SubmissionStatus
	Category enum.Category
	UserID   int64
	Page     int
	Limit    int
}

// BoundingBox limits map queries to a rectangle of coordinates.
type BoundingBox struct {
	MinLat float64
	MinLng float64
	MaxLat float64
	MaxLng float64
}

// MapPoint is a single report marker for the map view.
type MapPoint struct {
	ID           int64                 `bun:"id"            json:"id"`
	Latitude     float64               `bun:"latitude"      json:"lat"`
	Longitude    float64               `bun:"longitude"     json:"lng"`
	IncidentType enum.IncidentType     `bun:"incident_type" json:"type"`
	Status       enum.SubmissionStatus `bun:"status"        json:"status"`
	CreatedAt    time.Time             `bun:"created_at"    json:"createdAt"`
}

// NewReport contains the fields a user supplies when filing a report.
type NewReport struct {
	IncidentType enum.IncidentType `json:"incidentType"`
	Description  string            `json:"description"`
	PhotoURL     string            `json:"photoUrl"`
	Latitude     *float64          `json:"latitude"`
	Longitude    *float64          `json:"longitude"`
}

// NewUpload contains the fields a user supplies when uploading a photo.
type NewUpload struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ImageURL    string        `json:"imageUrl"`
	Category    enum.Category `json:"category"`
	Tags        []string      `json:"tags"`
	Latitude    *float64      `json:"latitude,omitempty"`
	Longitude   *float64      `json:"longitude,omitempty"`
}

// SubmissionEdit contains owner-editable fields. Nil fields are left unchanged.
type SubmissionEdit struct {
	Title        *string            `json:"title,omitempty"`
	Description  *string            `json:"description,omitempty"`
	ImageURL     *string            `json:"imageUrl,omitempty"`
	IncidentType *enum.IncidentType `json:"incidentType,omitempty"`
	Category     *enum.Category     `json:"category,omitempty"`
	Tags         []string           `json:"tags,omitempty"`
	Latitude     *float64           `json:"latitude,omitempty"`
	Longitude    *float64           `json:"longitude,omitempty"`
}
