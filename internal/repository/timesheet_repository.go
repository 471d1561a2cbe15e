package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/timesheet-api/internal/models"
)

const timeSheetColumns = `id, collaborator_id, iso_year, iso_week, status, total_hours, chargeable_hours, non_chargeable_hours,
submitted_at, reviewed_by, reviewed_at, review_note, created_at, updated_at`

// TimeSheetRepository persists weekly time sheets. Methods taking exec run inside the caller's transaction.
type TimeSheetRepository struct {
	db *sqlx.DB
}

// NewTimeSheetRepository constructs the repository.
func NewTimeSheetRepository(db *sqlx.DB) *TimeSheetRepository {
	return &TimeSheetRepository{db: db}
}

// EnsureForWeek returns the collaborator's sheet for the ISO week, creating a draft on first use.
// The conflicting-row update takes the row lock, so the sheet stays locked until the transaction ends.
func (r *TimeSheetRepository) EnsureForWeek(ctx context.Context, exec sqlx.ExtContext, collaboratorID string, isoYear, isoWeek int, now time.Time) (*models.TimeSheet, error) {
	query := `
INSERT INTO time_sheets (id, collaborator_id, iso_year, iso_week, status, total_hours, chargeable_hours, non_chargeable_hours, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, 0, 0, $6, $6)
ON CONFLICT (collaborator_id, iso_year, iso_week) DO UPDATE SET updated_at = time_sheets.updated_at
RETURNING ` + timeSheetColumns
	var sheet models.TimeSheet
	if err := sqlx.GetContext(ctx, target(r.db, exec), &sheet, query,
		uuid.NewString(), collaboratorID, isoYear, isoWeek, models.TimeSheetStatusDraft, now.UTC()); err != nil {
		return nil, fmt.Errorf("ensure time sheet for week: %w", err)
	}
	return &sheet, nil
}

// LockByID reads a sheet with SELECT ... FOR UPDATE.
func (r *TimeSheetRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TimeSheet, error) {
	query := `SELECT ` + timeSheetColumns + ` FROM time_sheets WHERE id = $1 FOR UPDATE`
	var sheet models.TimeSheet
	if err := sqlx.GetContext(ctx, target(r.db, exec), &sheet, query, id); err != nil {
		return nil, fmt.Errorf("lock time sheet: %w", err)
	}
	return &sheet, nil
}

// LockForWeek locks the collaborator's sheet for an ISO week without creating it.
func (r *TimeSheetRepository) LockForWeek(ctx context.Context, exec sqlx.ExtContext, collaboratorID string, isoYear, isoWeek int) (*models.TimeSheet, error) {
	query := `SELECT ` + timeSheetColumns + ` FROM time_sheets WHERE collaborator_id = $1 AND iso_year = $2 AND iso_week = $3 FOR UPDATE`
	var sheet models.TimeSheet
	if err := sqlx.GetContext(ctx, target(r.db, exec), &sheet, query, collaboratorID, isoYear, isoWeek); err != nil {
		return nil, fmt.Errorf("lock time sheet for week: %w", err)
	}
	return &sheet, nil
}

// GetByID reads a sheet without locking it.
func (r *TimeSheetRepository) GetByID(ctx context.Context, id string) (*models.TimeSheet, error) {
	query := `SELECT ` + timeSheetColumns + ` FROM time_sheets WHERE id = $1`
	var sheet models.TimeSheet
	if err := r.db.GetContext(ctx, &sheet, query, id); err != nil {
		return nil, fmt.Errorf("get time sheet: %w", err)
	}
	return &sheet, nil
}

// UpdateTimeSheetStatusParams describes a status write and the reviewer metadata that goes with it.
type UpdateTimeSheetStatusParams struct {
	ID          string
	From        models.TimeSheetStatus
	To          models.TimeSheetStatus
	SubmittedAt *time.Time
	ReviewedBy  *string
	ReviewedAt  *time.Time
	ReviewNote  *string
	UpdatedAt   time.Time
}

// UpdateStatus moves the sheet from params.From to params.To. It returns ErrStaleTimeSheet when
// the stored status is no longer params.From.
func (r *TimeSheetRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, params UpdateTimeSheetStatusParams) error {
	const query = `
UPDATE time_sheets
SET status = $1, submitted_at = $2, reviewed_by = $3, reviewed_at = $4, review_note = $5, updated_at = $6
WHERE id = $7 AND status = $8`
	res, err := target(r.db, exec).ExecContext(ctx, query,
		params.To, params.SubmittedAt, params.ReviewedBy, params.ReviewedAt, params.ReviewNote, params.UpdatedAt.UTC(),
		params.ID, params.From)
	if err != nil {
		return fmt.Errorf("update time sheet status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update time sheet status rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleTimeSheet
	}
	return nil
}

// RecomputeTotals rewrites the aggregate columns from the sheet's current entries.
func (r *TimeSheetRepository) RecomputeTotals(ctx context.Context, exec sqlx.ExtContext, id string, now time.Time) (models.TimeSheetTotals, error) {
	const query = `
UPDATE time_sheets ts
SET total_hours = agg.total_hours,
    chargeable_hours = agg.chargeable_hours,
    non_chargeable_hours = agg.non_chargeable_hours,
    updated_at = $2
FROM (
	SELECT
		COALESCE(SUM(hours), 0) AS total_hours,
		COALESCE(SUM(hours) FILTER (WHERE category = 'chargeable'), 0) AS chargeable_hours,
		COALESCE(SUM(hours) FILTER (WHERE category = 'non-chargeable'), 0) AS non_chargeable_hours
	FROM time_entries
	WHERE time_sheet_id = $1
) agg
WHERE ts.id = $1
RETURNING ts.total_hours, ts.chargeable_hours, ts.non_chargeable_hours`
	var totals models.TimeSheetTotals
	if err := sqlx.GetContext(ctx, target(r.db, exec), &totals, query, id, now.UTC()); err != nil {
		return models.TimeSheetTotals{}, fmt.Errorf("recompute time sheet totals: %w", err)
	}
	return totals, nil
}

// Delete removes a sheet together with its entries, returning sql.ErrNoRows when it did not exist.
func (r *TimeSheetRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	t := target(r.db, exec)
	if _, err := t.ExecContext(ctx, `DELETE FROM time_entries WHERE time_sheet_id = $1`, id); err != nil {
		return fmt.Errorf("delete time sheet entries: %w", err)
	}
	res, err := t.ExecContext(ctx, `DELETE FROM time_sheets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete time sheet: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete time sheet rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns sheets matching the filter, newest week first.
func (r *TimeSheetRepository) List(ctx context.Context, filter models.TimeSheetFilter) ([]models.TimeSheet, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + timeSheetColumns + ` FROM time_sheets WHERE 1=1`)

	args := []interface{}{}
	if len(filter.CollaboratorIDs) > 0 {
		args = append(args, pq.Array(filter.CollaboratorIDs))
		fmt.Fprintf(&query, " AND collaborator_id = ANY($%d)", len(args))
	}
	if filter.ISOYear > 0 {
		args = append(args, filter.ISOYear)
		fmt.Fprintf(&query, " AND iso_year = $%d", len(args))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			statuses = append(statuses, string(s))
		}
		args = append(args, pq.Array(statuses))
		fmt.Fprintf(&query, " AND status = ANY($%d)", len(args))
	}
	query.WriteString(" ORDER BY iso_year DESC, iso_week DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&query, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&query, " OFFSET $%d", len(args))
	}

	var sheets []models.TimeSheet
	if err := r.db.SelectContext(ctx, &sheets, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list time sheets: %w", err)
	}
	return sheets, nil
}

// ListPendingForSupervisor returns submitted sheets of the supervisor's collaborators, oldest submission first.
func (r *TimeSheetRepository) ListPendingForSupervisor(ctx context.Context, supervisorID string, limit, offset int) ([]models.TimeSheet, error) {
	const query = `
SELECT ts.id, ts.collaborator_id, ts.iso_year, ts.iso_week, ts.status, ts.total_hours, ts.chargeable_hours, ts.non_chargeable_hours,
	ts.submitted_at, ts.reviewed_by, ts.reviewed_at, ts.review_note, ts.created_at, ts.updated_at
FROM time_sheets ts
JOIN time_sheet_supervisors s ON s.collaborator_id = ts.collaborator_id
WHERE s.supervisor_id = $1 AND ts.status = $2
ORDER BY ts.submitted_at ASC NULLS LAST, ts.id ASC
LIMIT $3 OFFSET $4`
	var sheets []models.TimeSheet
	if err := r.db.SelectContext(ctx, &sheets, query, supervisorID, models.TimeSheetStatusSubmitted, limit, offset); err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return sheets, nil
}
