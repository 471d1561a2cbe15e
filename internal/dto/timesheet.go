package dto

import (
	"time"

	"github.com/noah-isme/timesheet-api/internal/models"
)

// UpsertEntryRequest creates an entry when ID is empty and updates the entry otherwise.
// Chargeable entries reference either a mission and task or an internal activity;
// non-chargeable entries reference an internal activity.
type UpsertEntryRequest struct {
	ID         string               `json:"id,omitempty"`
	Date       string               `json:"date" validate:"required,datetime=2006-01-02"`
	Hours      float64              `json:"hours" validate:"gt=0"`
	Category   models.EntryCategory `json:"category" validate:"required,oneof=chargeable non-chargeable"`
	MissionID  *string              `json:"missionId,omitempty"`
	TaskID     *string              `json:"taskId,omitempty"`
	ActivityID *string              `json:"activityId,omitempty"`
	Comment    *string              `json:"comment,omitempty" validate:"omitempty,max=500"`
}

// SaveWeekRequest replaces every entry of a week and saves the sheet.
type SaveWeekRequest struct {
	Entries []UpsertEntryRequest `json:"entries" validate:"dive"`
}

// ReviewRequest carries the optional reviewer note for approve/reject.
type ReviewRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

// TimeSheetQuery filters the caller's own sheets.
type TimeSheetQuery struct {
	Year   int    `form:"year" validate:"omitempty,min=1970,max=9999"`
	Status string `form:"status" validate:"omitempty,oneof=draft saved submitted approved rejected"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset int    `form:"offset" validate:"omitempty,min=0"`
}

// TimeSheetStatusView is the read-only projection of a sheet's state and totals.
type TimeSheetStatusView struct {
	ID             string                 `json:"id"`
	CollaboratorID string                 `json:"collaboratorId"`
	Week           string                 `json:"week"`
	Status         models.TimeSheetStatus `json:"status"`
	Totals         models.TimeSheetTotals `json:"totals"`
	SubmittedAt    *time.Time             `json:"submittedAt,omitempty"`
	ReviewedAt     *time.Time             `json:"reviewedAt,omitempty"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

// TimeSheetDetail is a sheet with its entries.
type TimeSheetDetail struct {
	models.TimeSheet
	Week      string             `json:"week"`
	CanSubmit bool               `json:"canSubmit"`
	Entries   []models.TimeEntry `json:"entries"`
}

// EntryResult is returned by entry writes. Warnings report business anomalies that did not block the write.
type EntryResult struct {
	Entry    *models.TimeEntry   `json:"entry,omitempty"`
	Sheet    TimeSheetStatusView `json:"sheet"`
	Warnings []string            `json:"-"`
}

// WeekResult is returned by whole-week saves.
type WeekResult struct {
	Sheet    TimeSheetDetail `json:"sheet"`
	Warnings []string        `json:"-"`
}
