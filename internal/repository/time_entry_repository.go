package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timesheet-api/internal/models"
)

const timeEntryColumns = `id, time_sheet_id, entry_date, hours, category, mission_id, task_id, activity_id, comment, created_at, updated_at`

// TimeEntryRepository persists entries. Every write re-checks that the parent sheet is editable,
// so a write racing a submission or approval fails with ErrTimeSheetLocked.
type TimeEntryRepository struct {
	db *sqlx.DB
}

// NewTimeEntryRepository constructs the repository.
func NewTimeEntryRepository(db *sqlx.DB) *TimeEntryRepository {
	return &TimeEntryRepository{db: db}
}

// Insert adds an entry to an editable sheet.
func (r *TimeEntryRepository) Insert(ctx context.Context, exec sqlx.ExtContext, entry *models.TimeEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = entry.CreatedAt
	}
	query := `
INSERT INTO time_entries (id, time_sheet_id, entry_date, hours, category, mission_id, task_id, activity_id, comment, created_at, updated_at)
SELECT $1, ts.id, $3, $4, $5, $6, $7, $8, $9, $10, $11
FROM time_sheets ts
WHERE ts.id = $2 AND ` + editableParent
	res, err := target(r.db, exec).ExecContext(ctx, query,
		entry.ID, entry.TimeSheetID, entry.Date, entry.Hours, entry.Category,
		entry.MissionID, entry.TaskID, entry.ActivityID, entry.Comment, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert time entry: %w", err)
	}
	return requireAffected(res, "insert time entry")
}

// Update rewrites an entry of an editable sheet.
func (r *TimeEntryRepository) Update(ctx context.Context, exec sqlx.ExtContext, entry *models.TimeEntry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	query := `
UPDATE time_entries te
SET entry_date = $1, hours = $2, category = $3, mission_id = $4, task_id = $5, activity_id = $6, comment = $7, updated_at = $8
FROM time_sheets ts
WHERE te.id = $9 AND te.time_sheet_id = $10 AND ts.id = te.time_sheet_id AND ` + editableParent
	res, err := target(r.db, exec).ExecContext(ctx, query,
		entry.Date, entry.Hours, entry.Category, entry.MissionID, entry.TaskID, entry.ActivityID, entry.Comment, entry.UpdatedAt,
		entry.ID, entry.TimeSheetID)
	if err != nil {
		return fmt.Errorf("update time entry: %w", err)
	}
	return requireAffected(res, "update time entry")
}

// Delete removes an entry from an editable sheet.
func (r *TimeEntryRepository) Delete(ctx context.Context, exec sqlx.ExtContext, sheetID, entryID string) error {
	query := `
DELETE FROM time_entries te
USING time_sheets ts
WHERE te.id = $1 AND te.time_sheet_id = $2 AND ts.id = te.time_sheet_id AND ` + editableParent
	res, err := target(r.db, exec).ExecContext(ctx, query, entryID, sheetID)
	if err != nil {
		return fmt.Errorf("delete time entry: %w", err)
	}
	return requireAffected(res, "delete time entry")
}

// DeleteBySheet clears every entry of an editable sheet. A sheet without entries is not an error.
func (r *TimeEntryRepository) DeleteBySheet(ctx context.Context, exec sqlx.ExtContext, sheetID string) (int64, error) {
	query := `
DELETE FROM time_entries te
USING time_sheets ts
WHERE te.time_sheet_id = $1 AND ts.id = te.time_sheet_id AND ` + editableParent
	res, err := target(r.db, exec).ExecContext(ctx, query, sheetID)
	if err != nil {
		return 0, fmt.Errorf("clear time entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear time entries rows: %w", err)
	}
	return affected, nil
}

// GetInSheet returns an entry only if it belongs to sheetID.
func (r *TimeEntryRepository) GetInSheet(ctx context.Context, exec sqlx.ExtContext, sheetID, entryID string) (*models.TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE id = $1 AND time_sheet_id = $2`
	var entry models.TimeEntry
	if err := sqlx.GetContext(ctx, target(r.db, exec), &entry, query, entryID, sheetID); err != nil {
		return nil, fmt.Errorf("get time entry: %w", err)
	}
	return &entry, nil
}

// ListBySheet returns the entries of a sheet ordered by date.
func (r *TimeEntryRepository) ListBySheet(ctx context.Context, exec sqlx.ExtContext, sheetID string) ([]models.TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE time_sheet_id = $1 ORDER BY entry_date ASC, created_at ASC`
	var entries []models.TimeEntry
	if err := sqlx.SelectContext(ctx, target(r.db, exec), &entries, query, sheetID); err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	return entries, nil
}

// DayTotal sums the hours booked on date within a sheet.
func (r *TimeEntryRepository) DayTotal(ctx context.Context, exec sqlx.ExtContext, sheetID string, date time.Time) (float64, error) {
	const query = `SELECT COALESCE(SUM(hours), 0) FROM time_entries WHERE time_sheet_id = $1 AND entry_date = $2`
	var total float64
	if err := sqlx.GetContext(ctx, target(r.db, exec), &total, query, sheetID, date); err != nil {
		return 0, fmt.Errorf("sum day hours: %w", err)
	}
	return total, nil
}

func requireAffected(res interface{ RowsAffected() (int64, error) }, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return ErrTimeSheetLocked
	}
	return nil
}
