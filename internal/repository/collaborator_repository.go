package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timesheet-api/internal/models"
)

const collaboratorColumns = `id, full_name, user_id, active, created_at, updated_at`

// CollaboratorRepository reads the collaborator directory maintained by HR onboarding.
type CollaboratorRepository struct {
	db *sqlx.DB
}

// NewCollaboratorRepository constructs the repository.
func NewCollaboratorRepository(db *sqlx.DB) *CollaboratorRepository {
	return &CollaboratorRepository{db: db}
}

// FindByUserID returns the collaborator linked to an authentication user. Missing rows surface as sql.ErrNoRows.
func (r *CollaboratorRepository) FindByUserID(ctx context.Context, userID string) (*models.Collaborator, error) {
	query := `SELECT ` + collaboratorColumns + ` FROM collaborators WHERE user_id = $1`
	var collaborator models.Collaborator
	if err := r.db.GetContext(ctx, &collaborator, query, userID); err != nil {
		return nil, fmt.Errorf("find collaborator by user: %w", err)
	}
	return &collaborator, nil
}

// FindByID returns a collaborator by its identifier.
func (r *CollaboratorRepository) FindByID(ctx context.Context, id string) (*models.Collaborator, error) {
	query := `SELECT ` + collaboratorColumns + ` FROM collaborators WHERE id = $1`
	var collaborator models.Collaborator
	if err := r.db.GetContext(ctx, &collaborator, query, id); err != nil {
		return nil, fmt.Errorf("find collaborator: %w", err)
	}
	return &collaborator, nil
}
