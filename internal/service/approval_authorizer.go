package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/timesheet-api/internal/models"
	appErrors "github.com/noah-isme/timesheet-api/pkg/errors"
)

type collaboratorResolver interface {
	Resolve(ctx context.Context, userID string) (*models.Collaborator, bool, error)
}

type supervisorEdgeStore interface {
	Exists(ctx context.Context, exec sqlx.ExtContext, collaboratorID, supervisorID string) (bool, error)
}

type sheetReader interface {
	GetByID(ctx context.Context, id string) (*models.TimeSheet, error)
}

// Decision is the outcome of each hop of the approver check.
type Decision struct {
	Approver   *models.Collaborator
	Resolved   bool
	Supervises bool
	Submitted  bool
}

// Allowed reports whether every hop succeeded.
func (d Decision) Allowed() bool {
	return d.Resolved && d.Supervises && d.Submitted
}

// ApprovalAuthorizer decides whether a user may review a collaborator's time sheet:
// user to collaborator, sheet to owner, then the owner to supervisor edge.
type ApprovalAuthorizer struct {
	identity collaboratorResolver
	edges    supervisorEdgeStore
	sheets   sheetReader
	logger   *zap.Logger
}

// NewApprovalAuthorizer constructs the authorizer.
func NewApprovalAuthorizer(identity collaboratorResolver, edges supervisorEdgeStore, sheets sheetReader, logger *zap.Logger) *ApprovalAuthorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalAuthorizer{identity: identity, edges: edges, sheets: sheets, logger: logger}
}

// IsAuthorizedApprover fails closed: any unresolved hop or storage failure yields false.
func (a *ApprovalAuthorizer) IsAuthorizedApprover(ctx context.Context, candidateUserID, timeSheetID string) bool {
	sheet, err := a.sheets.GetByID(ctx, timeSheetID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			a.logger.Error("approver check failed to load time sheet", zap.String("time_sheet_id", timeSheetID), zap.Error(err))
		}
		return false
	}
	decision, err := a.Authorize(ctx, nil, candidateUserID, sheet)
	if err != nil {
		a.logger.Error("approver check failed", zap.String("time_sheet_id", timeSheetID), zap.Error(err))
		return false
	}
	return decision.Allowed()
}

// Authorize evaluates the hops against an already loaded sheet, typically locked by exec.
func (a *ApprovalAuthorizer) Authorize(ctx context.Context, exec sqlx.ExtContext, candidateUserID string, sheet *models.TimeSheet) (Decision, error) {
	var decision Decision
	if sheet == nil {
		return decision, nil
	}
	decision.Submitted = sheet.Status == models.TimeSheetStatusSubmitted

	approver, found, err := a.identity.Resolve(ctx, candidateUserID)
	if err != nil {
		return decision, err
	}
	if !found {
		return decision, nil
	}
	decision.Approver = approver
	decision.Resolved = true

	if sheet.CollaboratorID == "" || sheet.CollaboratorID == approver.ID {
		return decision, nil
	}
	supervises, err := a.edges.Exists(ctx, exec, sheet.CollaboratorID, approver.ID)
	if err != nil {
		return decision, appErrors.Internal(err, "failed to check supervisor relation")
	}
	decision.Supervises = supervises
	return decision, nil
}
