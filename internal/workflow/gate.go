package workflow

import (
	"time"

	"github.com/noah-isme/timesheet-api/internal/models"
)

// CanSubmit decides whether a sheet for the week starting weekStart may be submitted on today.
// Weeks before the current one are always open; the current week and later weeks open on Friday
// and stay open through Sunday. The sheet must also be in an editable status.
func CanSubmit(weekStart time.Time, status models.TimeSheetStatus, today time.Time) bool {
	return SubmissionGuard(weekStart, status, today) == ""
}

// SubmissionGuard returns the unmet guard, or "" when submission is allowed.
func SubmissionGuard(weekStart time.Time, status models.TimeSheetStatus, today time.Time) Guard {
	if status == models.TimeSheetStatusApproved {
		return GuardImmutable
	}
	if !Editable(status) {
		return GuardSourceState
	}
	if DateOf(weekStart).Before(MondayOf(today)) {
		return ""
	}
	switch today.Weekday() {
	case time.Friday, time.Saturday, time.Sunday:
		return ""
	}
	return GuardSubmissionWindow
}
