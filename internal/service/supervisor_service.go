package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timesheet-api/internal/dto"
	"github.com/noah-isme/timesheet-api/internal/models"
	"github.com/noah-isme/timesheet-api/internal/repository"
	appErrors "github.com/noah-isme/timesheet-api/pkg/errors"
)

type supervisorGraphStore interface {
	ListSupervisors(ctx context.Context, collaboratorID string) ([]models.SupervisorRelation, error)
	ListSupervisees(ctx context.Context, supervisorID string) ([]models.SupervisorRelation, error)
	Add(ctx context.Context, relation *models.SupervisorRelation) error
	Remove(ctx context.Context, collaboratorID, supervisorID string) error
}

// SupervisorService administers the supervisor graph on behalf of HR.
type SupervisorService struct {
	repo      supervisorGraphStore
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSupervisorService constructs the service.
func NewSupervisorService(repo supervisorGraphStore, audit auditRecorder, logger *zap.Logger) *SupervisorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupervisorService{repo: repo, audit: audit, validator: validator.New(), logger: logger}
}

// ListSupervisors returns the supervisors of a collaborator.
func (s *SupervisorService) ListSupervisors(ctx context.Context, actor *models.JWTClaims, collaboratorID string) ([]models.SupervisorRelation, error) {
	if err := requireAdministrative(actor); err != nil {
		return nil, err
	}
	relations, err := s.repo.ListSupervisors(ctx, strings.TrimSpace(collaboratorID))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list supervisors")
	}
	return nonNilRelations(relations), nil
}

// ListSupervisees returns the collaborators a supervisor reviews.
func (s *SupervisorService) ListSupervisees(ctx context.Context, actor *models.JWTClaims, supervisorID string) ([]models.SupervisorRelation, error) {
	if err := requireAdministrative(actor); err != nil {
		return nil, err
	}
	relations, err := s.repo.ListSupervisees(ctx, strings.TrimSpace(supervisorID))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list supervisees")
	}
	return nonNilRelations(relations), nil
}

// Add registers a supervisor edge.
func (s *SupervisorService) Add(ctx context.Context, actor *models.JWTClaims, req dto.SupervisorEdgeRequest) (*models.SupervisorRelation, error) {
	if err := requireAdministrative(actor); err != nil {
		return nil, err
	}
	req.CollaboratorID = strings.TrimSpace(req.CollaboratorID)
	req.SupervisorID = strings.TrimSpace(req.SupervisorID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid supervisor payload")
	}
	relation := &models.SupervisorRelation{CollaboratorID: req.CollaboratorID, SupervisorID: req.SupervisorID}
	if err := s.repo.Add(ctx, relation); err != nil {
		switch {
		case errors.Is(err, repository.ErrSelfSupervision):
			return nil, appErrors.Clone(appErrors.ErrValidation, "a collaborator cannot supervise themselves")
		case errors.Is(err, repository.ErrUnknownCollaborator):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "collaborator not found")
		}
		return nil, appErrors.Internal(err, "failed to add supervisor")
	}
	requestLogger(ctx, s.logger).Info("supervisor edge added", zap.String("collaborator_id", relation.CollaboratorID), zap.String("supervisor_id", relation.SupervisorID))
	s.record(ctx, actor, models.AuditActionSupervisorAdd, relation, nil, relation)
	return relation, nil
}

// Remove deletes a supervisor edge.
func (s *SupervisorService) Remove(ctx context.Context, actor *models.JWTClaims, collaboratorID, supervisorID string) error {
	if err := requireAdministrative(actor); err != nil {
		return err
	}
	relation := &models.SupervisorRelation{
		CollaboratorID: strings.TrimSpace(collaboratorID),
		SupervisorID:   strings.TrimSpace(supervisorID),
	}
	if err := s.repo.Remove(ctx, relation.CollaboratorID, relation.SupervisorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "supervisor relation not found")
		}
		return appErrors.Internal(err, "failed to remove supervisor")
	}
	requestLogger(ctx, s.logger).Info("supervisor edge removed", zap.String("collaborator_id", relation.CollaboratorID), zap.String("supervisor_id", relation.SupervisorID))
	s.record(ctx, actor, models.AuditActionSupervisorRemove, relation, relation, nil)
	return nil
}

func (s *SupervisorService) record(ctx context.Context, actor *models.JWTClaims, action string, relation *models.SupervisorRelation, oldValues, newValues interface{}) {
	if s.audit == nil {
		return
	}
	resourceID := relation.CollaboratorID + ":" + relation.SupervisorID
	s.audit.Record(ctx, newAuditLog(ctx, actor, action, "time_sheet_supervisor", resourceID, oldValues, newValues))
}

func requireAdministrative(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.IsAdministrative() {
		return appErrors.Clone(appErrors.ErrForbidden, "supervisor administration requires the ADMIN or HR role")
	}
	return nil
}

func nonNilRelations(relations []models.SupervisorRelation) []models.SupervisorRelation {
	if relations == nil {
		return []models.SupervisorRelation{}
	}
	return relations
}
