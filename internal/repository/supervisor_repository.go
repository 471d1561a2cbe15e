package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timesheet-api/internal/models"
)

// SupervisorRepository persists the collaborator to supervisor edges.
type SupervisorRepository struct {
	db *sqlx.DB
}

// NewSupervisorRepository constructs the repository.
func NewSupervisorRepository(db *sqlx.DB) *SupervisorRepository {
	return &SupervisorRepository{db: db}
}

// Exists reports whether supervisorID supervises collaboratorID. exec may be a transaction.
func (r *SupervisorRepository) Exists(ctx context.Context, exec sqlx.ExtContext, collaboratorID, supervisorID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM time_sheet_supervisors WHERE collaborator_id = $1 AND supervisor_id = $2)`
	var exists bool
	if err := sqlx.GetContext(ctx, target(r.db, exec), &exists, query, collaboratorID, supervisorID); err != nil {
		return false, fmt.Errorf("check supervisor edge: %w", err)
	}
	return exists, nil
}

// ListSupervisors returns the supervisors of a collaborator.
func (r *SupervisorRepository) ListSupervisors(ctx context.Context, collaboratorID string) ([]models.SupervisorRelation, error) {
	const query = `
SELECT s.collaborator_id, s.supervisor_id, c.full_name AS collaborator_name, sup.full_name AS supervisor_name, s.created_at
FROM time_sheet_supervisors s
JOIN collaborators c ON c.id = s.collaborator_id
JOIN collaborators sup ON sup.id = s.supervisor_id
WHERE s.collaborator_id = $1
ORDER BY sup.full_name ASC`
	var relations []models.SupervisorRelation
	if err := r.db.SelectContext(ctx, &relations, query, collaboratorID); err != nil {
		return nil, fmt.Errorf("list supervisors: %w", err)
	}
	return relations, nil
}

// ListSupervisees returns the collaborators overseen by a supervisor.
func (r *SupervisorRepository) ListSupervisees(ctx context.Context, supervisorID string) ([]models.SupervisorRelation, error) {
	const query = `
SELECT s.collaborator_id, s.supervisor_id, c.full_name AS collaborator_name, sup.full_name AS supervisor_name, s.created_at
FROM time_sheet_supervisors s
JOIN collaborators c ON c.id = s.collaborator_id
JOIN collaborators sup ON sup.id = s.supervisor_id
WHERE s.supervisor_id = $1
ORDER BY c.full_name ASC`
	var relations []models.SupervisorRelation
	if err := r.db.SelectContext(ctx, &relations, query, supervisorID); err != nil {
		return nil, fmt.Errorf("list supervisees: %w", err)
	}
	return relations, nil
}

// Add registers an edge. Adding an existing edge is a no-op.
func (r *SupervisorRepository) Add(ctx context.Context, relation *models.SupervisorRelation) error {
	if relation.CollaboratorID == relation.SupervisorID {
		return ErrSelfSupervision
	}
	if relation.CreatedAt.IsZero() {
		relation.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO time_sheet_supervisors (collaborator_id, supervisor_id, created_at)
VALUES (:collaborator_id, :supervisor_id, :created_at)
ON CONFLICT (collaborator_id, supervisor_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, relation); err != nil {
		switch pqCode(err) {
		case pqCheckViolation:
			return ErrSelfSupervision
		case pqForeignKeyViolation:
			return ErrUnknownCollaborator
		}
		return fmt.Errorf("add supervisor edge: %w", err)
	}
	return nil
}

// Remove deletes an edge, returning sql.ErrNoRows when it did not exist.
func (r *SupervisorRepository) Remove(ctx context.Context, collaboratorID, supervisorID string) error {
	const query = `DELETE FROM time_sheet_supervisors WHERE collaborator_id = $1 AND supervisor_id = $2`
	res, err := r.db.ExecContext(ctx, query, collaboratorID, supervisorID)
	if err != nil {
		return fmt.Errorf("remove supervisor edge: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove supervisor edge rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
