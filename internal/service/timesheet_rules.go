package service

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/timesheet-api/internal/dto"
	"github.com/noah-isme/timesheet-api/internal/models"
	"github.com/noah-isme/timesheet-api/internal/workflow"
	appErrors "github.com/noah-isme/timesheet-api/pkg/errors"
)

const entryDateLayout = "2006-01-02"

// buildEntry converts a request into an entry of week, rejecting anything that breaks the entry rules.
func buildEntry(req dto.UpsertEntryRequest, week workflow.Week, maxHours float64) (*models.TimeEntry, error) {
	date, err := time.Parse(entryDateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date %q must use YYYY-MM-DD", req.Date))
	}
	entry := &models.TimeEntry{
		ID:         strings.TrimSpace(req.ID),
		Date:       date,
		Hours:      roundHours(req.Hours),
		Category:   req.Category,
		MissionID:  trimmedRef(req.MissionID),
		TaskID:     trimmedRef(req.TaskID),
		ActivityID: trimmedRef(req.ActivityID),
		Comment:    trimmedRef(req.Comment),
	}
	if problem := entryProblem(*entry, week, maxHours); problem != "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, problem).WithDetails(map[string]interface{}{
			"date": req.Date,
			"week": week.Key(),
		})
	}
	return entry, nil
}

// entryProblem describes why an entry is invalid for week, or returns "".
func entryProblem(entry models.TimeEntry, week workflow.Week, maxHours float64) string {
	if !week.Contains(entry.Date) {
		return fmt.Sprintf("date %s is outside week %s", entry.Date.Format(entryDateLayout), week.Key())
	}
	if entry.Hours <= 0 {
		return "hours must be positive"
	}
	if maxHours > 0 && entry.Hours > maxHours {
		return fmt.Sprintf("hours must not exceed %g", maxHours)
	}

	hasMission := entry.MissionID != nil
	hasTask := entry.TaskID != nil
	hasActivity := entry.ActivityID != nil
	switch entry.Category {
	case models.EntryCategoryChargeable:
		if hasMission != hasTask {
			return "chargeable entries need both missionId and taskId"
		}
		if hasMission == hasActivity {
			return "chargeable entries reference either a mission task or an activity"
		}
	case models.EntryCategoryNonChargeable:
		if hasMission || hasTask {
			return "non-chargeable entries cannot reference a mission or task"
		}
		if !hasActivity {
			return "non-chargeable entries need an activityId"
		}
	default:
		return fmt.Sprintf("unknown category %q", entry.Category)
	}
	return ""
}

func entriesValid(entries []models.TimeEntry, week workflow.Week, maxHours float64) bool {
	for _, entry := range entries {
		if entryProblem(entry, week, maxHours) != "" {
			return false
		}
	}
	return true
}

func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

func trimmedRef(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func capWarning(date time.Time, total, limit float64) string {
	return fmt.Sprintf("%s totals %.2fh, above the %.2fh daily cap", date.Format(entryDateLayout), total, limit)
}

// dailyCapWarnings sums entries per day and reports each day above limit.
func dailyCapWarnings(entries []models.TimeEntry, limit float64) []string {
	if limit <= 0 {
		return nil
	}
	totals := map[string]float64{}
	for _, entry := range entries {
		totals[entry.Date.Format(entryDateLayout)] += entry.Hours
	}
	days := make([]string, 0, len(totals))
	for day, total := range totals {
		if roundHours(total) > limit {
			days = append(days, day)
		}
	}
	sort.Strings(days)
	warnings := make([]string, 0, len(days))
	for _, day := range days {
		date, _ := time.Parse(entryDateLayout, day)
		warnings = append(warnings, capWarning(date, roundHours(totals[day]), limit))
	}
	return warnings
}
