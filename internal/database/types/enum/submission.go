package enum

// SubmissionKind discriminates rows in the submissions table.
type SubmissionKind string

const (
	// SubmissionKindReport is an incident report with a mandatory location.
	SubmissionKindReport SubmissionKind = "report"
	// SubmissionKindUpload is a community photo upload with a title and tags.
	SubmissionKindUpload SubmissionKind = "upload"
)

// IsValid reports whether k is a known submission kind.
func (k SubmissionKind) IsValid() bool {
	return k == SubmissionKindReport || k == SubmissionKindUpload
}

// SubmissionStatus is the lifecycle state of a submission.
// Reports use open, validated, resolved and rejected.
// Uploads use pending, approved, rejected and flagged.
type SubmissionStatus string

const (
	SubmissionStatusOpen      SubmissionStatus = "open"
	SubmissionStatusValidated SubmissionStatus = "validated"
	SubmissionStatusResolved  SubmissionStatus = "resolved"
	SubmissionStatusPending   SubmissionStatus = "pending"
	SubmissionStatusApproved  SubmissionStatus = "approved"
	SubmissionStatusRejected  SubmissionStatus = "rejected"
	SubmissionStatusFlagged   SubmissionStatus = "flagged"
)

// InitialStatus returns the state a new submission of the given kind starts in.
func InitialStatus(kind SubmissionKind) SubmissionStatus {
	if kind == SubmissionKindReport {
		return SubmissionStatusOpen
	}
	return SubmissionStatusPending
}

// IncidentType describes what a report is about.
type IncidentType string

const (
	IncidentTypeCutting         IncidentType = "cutting"
	IncidentTypeDumping         IncidentType = "dumping"
	IncidentTypePollution       IncidentType = "pollution"
	IncidentTypeLandReclamation IncidentType = "land_reclamation"
	IncidentTypeOther           IncidentType = "other"
)

// incidentCategories maps report incident types onto scoring categories.
var incidentCategories = map[IncidentType]Category{
	IncidentTypeCutting:         CategoryMangroveDestruction,
	IncidentTypeDumping:         CategoryMangroveDestruction,
	IncidentTypeLandReclamation: CategoryMangroveDestruction,
	IncidentTypePollution:       CategoryMangroveHealth,
	IncidentTypeOther:           CategoryOther,
}

// IsValid reports whether t is a known incident type.
func (t IncidentType) IsValid() bool {
	_, ok := incidentCategories[t]
	return ok
}

// Category returns the scoring category for the incident type.
func (t IncidentType) Category() Category {
	if c, ok := incidentCategories[t]; ok {
		return c
	}
	return CategoryOther
}

// Category is the subject area a submission is scored under.
type Category string

const (
	CategoryMangroveHealth       Category = "mangrove_health"
	CategoryMangroveDestruction  Category = "mangrove_destruction"
	CategoryMangroveConservation Category = "mangrove_conservation"
	CategoryMangroveResearch     Category = "mangrove_research"
	CategoryOther                Category = "other"
)

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryMangroveHealth, CategoryMangroveDestruction, CategoryMangroveConservation,
		CategoryMangroveResearch, CategoryOther:
		return true
	default:
		return false
	}
}
