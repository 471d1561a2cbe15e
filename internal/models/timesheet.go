package models

import "time"

// TimeSheetStatus is the single canonical lifecycle column of a time sheet.
type TimeSheetStatus string

const (
	TimeSheetStatusDraft     TimeSheetStatus = "draft"
	TimeSheetStatusSaved     TimeSheetStatus = "saved"
	TimeSheetStatusSubmitted TimeSheetStatus = "submitted"
	TimeSheetStatusApproved  TimeSheetStatus = "approved"
	TimeSheetStatusRejected  TimeSheetStatus = "rejected"
)

// Valid reports whether the status is one of the known values.
func (s TimeSheetStatus) Valid() bool {
	switch s {
	case TimeSheetStatusDraft, TimeSheetStatusSaved, TimeSheetStatusSubmitted, TimeSheetStatusApproved, TimeSheetStatusRejected:
		return true
	}
	return false
}

// EntryCategory partitions hours into billable and internal time.
type EntryCategory string

const (
	EntryCategoryChargeable    EntryCategory = "chargeable"
	EntryCategoryNonChargeable EntryCategory = "non-chargeable"
)

// TimeSheet holds one ISO week of a collaborator's time.
type TimeSheet struct {
	ID                 string          `db:"id" json:"id"`
	CollaboratorID     string          `db:"collaborator_id" json:"collaboratorId"`
	ISOYear            int             `db:"iso_year" json:"isoYear"`
	ISOWeek            int             `db:"iso_week" json:"isoWeek"`
	Status             TimeSheetStatus `db:"status" json:"status"`
	TotalHours         float64         `db:"total_hours" json:"totalHours"`
	ChargeableHours    float64         `db:"chargeable_hours" json:"chargeableHours"`
	NonChargeableHours float64         `db:"non_chargeable_hours" json:"nonChargeableHours"`
	SubmittedAt        *time.Time      `db:"submitted_at" json:"submittedAt,omitempty"`
	ReviewedBy         *string         `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt         *time.Time      `db:"reviewed_at" json:"reviewedAt,omitempty"`
	ReviewNote         *string         `db:"review_note" json:"reviewNote,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updatedAt"`
}

// TimeEntry is one line of hours on a given date of a time sheet.
type TimeEntry struct {
	ID          string        `db:"id" json:"id"`
	TimeSheetID string        `db:"time_sheet_id" json:"timeSheetId"`
	Date        time.Time     `db:"entry_date" json:"date"`
	Hours       float64       `db:"hours" json:"hours"`
	Category    EntryCategory `db:"category" json:"category"`
	MissionID   *string       `db:"mission_id" json:"missionId,omitempty"`
	TaskID      *string       `db:"task_id" json:"taskId,omitempty"`
	ActivityID  *string       `db:"activity_id" json:"activityId,omitempty"`
	Comment     *string       `db:"comment" json:"comment,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updatedAt"`
}

// TimeSheetTotals are the aggregate hours recomputed from entries.
type TimeSheetTotals struct {
	TotalHours         float64 `db:"total_hours" json:"totalHours"`
	ChargeableHours    float64 `db:"chargeable_hours" json:"chargeableHours"`
	NonChargeableHours float64 `db:"non_chargeable_hours" json:"nonChargeableHours"`
}

// Totals projects the aggregate columns of the sheet.
func (t TimeSheet) Totals() TimeSheetTotals {
	return TimeSheetTotals{
		TotalHours:         t.TotalHours,
		ChargeableHours:    t.ChargeableHours,
		NonChargeableHours: t.NonChargeableHours,
	}
}

// TimeSheetFilter constrains listing queries.
type TimeSheetFilter struct {
	CollaboratorIDs []string
	ISOYear         int
	Status          []TimeSheetStatus
	Limit           int
	Offset          int
}
