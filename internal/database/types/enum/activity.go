package enum

// ActivityType records what happened in an activity log entry.
type ActivityType string

const (
	ActivityTypeSubmissionCreated   ActivityType = "submission_created"
	ActivityTypeSubmissionUpdated   ActivityType = "submission_updated"
	ActivityTypeSubmissionDeleted   ActivityType = "submission_deleted"
	ActivityTypeSubmissionAnalyzed  ActivityType = "submission_analyzed"
	ActivityTypeSubmissionReviewed  ActivityType = "submission_reviewed"
	ActivityTypeSubmissionFlagged   ActivityType = "submission_flagged"
	ActivityTypeReportValidated     ActivityType = "report_validated"
	ActivityTypeReportResolved      ActivityType = "report_resolved"
	ActivityTypeReanalysisRequested ActivityType = "reanalysis_requested"
	ActivityTypePointsCredited      ActivityType = "points_credited"
	ActivityTypeUserBanned          ActivityType = "user_banned"
)
