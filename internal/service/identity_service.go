package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/timesheet-api/internal/models"
	appErrors "github.com/noah-isme/timesheet-api/pkg/errors"
)

type collaboratorLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.Collaborator, error)
}

// IdentityService maps authenticated users to collaborators.
type IdentityService struct {
	repo   collaboratorLookup
	logger *zap.Logger
}

// NewIdentityService constructs the resolver.
func NewIdentityService(repo collaboratorLookup, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{repo: repo, logger: logger}
}

// Resolve returns the active collaborator linked to userID. found is false when the user has
// no collaborator or the collaborator was deactivated; err is reserved for storage failures.
func (s *IdentityService) Resolve(ctx context.Context, userID string) (*models.Collaborator, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, false, nil
	}
	collaborator, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, appErrors.Internal(err, "failed to resolve collaborator")
	}
	if collaborator == nil || !collaborator.Active {
		return nil, false, nil
	}
	return collaborator, true, nil
}

// MustResolve is Resolve for callers that need a collaborator to proceed.
func (s *IdentityService) MustResolve(ctx context.Context, userID string) (*models.Collaborator, error) {
	collaborator, found, err := s.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no active collaborator is linked to this account")
	}
	return collaborator, nil
}
