package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/timesheet-api/internal/dto"
	"github.com/noah-isme/timesheet-api/internal/models"
	"github.com/noah-isme/timesheet-api/internal/repository"
	"github.com/noah-isme/timesheet-api/internal/workflow"
	"github.com/noah-isme/timesheet-api/pkg/clock"
	"github.com/noah-isme/timesheet-api/pkg/database"
	appErrors "github.com/noah-isme/timesheet-api/pkg/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type timeSheetStore interface {
	EnsureForWeek(ctx context.Context, exec sqlx.ExtContext, collaboratorID string, isoYear, isoWeek int, now time.Time) (*models.TimeSheet, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TimeSheet, error)
	LockForWeek(ctx context.Context, exec sqlx.ExtContext, collaboratorID string, isoYear, isoWeek int) (*models.TimeSheet, error)
	GetByID(ctx context.Context, id string) (*models.TimeSheet, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, params repository.UpdateTimeSheetStatusParams) error
	RecomputeTotals(ctx context.Context, exec sqlx.ExtContext, id string, now time.Time) (models.TimeSheetTotals, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	List(ctx context.Context, filter models.TimeSheetFilter) ([]models.TimeSheet, error)
	ListPendingForSupervisor(ctx context.Context, supervisorID string, limit, offset int) ([]models.TimeSheet, error)
}

type timeEntryStore interface {
	Insert(ctx context.Context, exec sqlx.ExtContext, entry *models.TimeEntry) error
	Update(ctx context.Context, exec sqlx.ExtContext, entry *models.TimeEntry) error
	Delete(ctx context.Context, exec sqlx.ExtContext, sheetID, entryID string) error
	DeleteBySheet(ctx context.Context, exec sqlx.ExtContext, sheetID string) (int64, error)
	GetInSheet(ctx context.Context, exec sqlx.ExtContext, sheetID, entryID string) (*models.TimeEntry, error)
	ListBySheet(ctx context.Context, exec sqlx.ExtContext, sheetID string) ([]models.TimeEntry, error)
	DayTotal(ctx context.Context, exec sqlx.ExtContext, sheetID string, date time.Time) (float64, error)
}

type identityResolver interface {
	Resolve(ctx context.Context, userID string) (*models.Collaborator, bool, error)
	MustResolve(ctx context.Context, userID string) (*models.Collaborator, error)
}

type approverAuthorizer interface {
	Authorize(ctx context.Context, exec sqlx.ExtContext, candidateUserID string, sheet *models.TimeSheet) (Decision, error)
}

type auditRecorder interface {
	Record(ctx context.Context, log *models.AuditLog)
}

// TimesheetRules tunes the entry rules.
type TimesheetRules struct {
	DailyHourCap  float64
	MaxEntryHours float64
}

// TimesheetService runs entry edits and workflow transitions. Each mutation locks the sheet row
// and re-reads its status inside one transaction before checking guards.
type TimesheetService struct {
	tx         txProvider
	sheets     timeSheetStore
	entries    timeEntryStore
	edges      supervisorEdgeStore
	identity   identityResolver
	authorizer approverAuthorizer
	cache      *StatusCache
	audit      auditRecorder
	metrics    *MetricsService
	clock      clock.Clock
	validator  *validator.Validate
	logger     *zap.Logger
	rules      TimesheetRules
}

// TimesheetServiceOption configures the service.
type TimesheetServiceOption func(*TimesheetService)

// WithTimesheetClock overrides the wall clock.
func WithTimesheetClock(c clock.Clock) TimesheetServiceOption {
	return func(s *TimesheetService) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithTimesheetCache enables the status projection cache.
func WithTimesheetCache(cache *StatusCache) TimesheetServiceOption {
	return func(s *TimesheetService) { s.cache = cache }
}

// WithTimesheetAudit sets the audit trail recorder.
func WithTimesheetAudit(audit auditRecorder) TimesheetServiceOption {
	return func(s *TimesheetService) { s.audit = audit }
}

// WithTimesheetMetrics sets the metrics sink.
func WithTimesheetMetrics(metrics *MetricsService) TimesheetServiceOption {
	return func(s *TimesheetService) { s.metrics = metrics }
}

// WithTimesheetRules overrides the default entry rules.
func WithTimesheetRules(rules TimesheetRules) TimesheetServiceOption {
	return func(s *TimesheetService) {
		if rules.DailyHourCap > 0 {
			s.rules.DailyHourCap = rules.DailyHourCap
		}
		if rules.MaxEntryHours > 0 {
			s.rules.MaxEntryHours = rules.MaxEntryHours
		}
	}
}

// WithTimesheetValidator overrides the struct validator.
func WithTimesheetValidator(v *validator.Validate) TimesheetServiceOption {
	return func(s *TimesheetService) {
		if v != nil {
			s.validator = v
		}
	}
}

// NewTimesheetService constructs the service with defaults.
func NewTimesheetService(
	tx txProvider,
	sheets timeSheetStore,
	entries timeEntryStore,
	edges supervisorEdgeStore,
	identity identityResolver,
	authorizer approverAuthorizer,
	logger *zap.Logger,
	opts ...TimesheetServiceOption,
) *TimesheetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &TimesheetService{
		tx:         tx,
		sheets:     sheets,
		entries:    entries,
		edges:      edges,
		identity:   identity,
		authorizer: authorizer,
		clock:      clock.NewSystem(time.UTC),
		validator:  validator.New(),
		logger:     logger,
		rules: TimesheetRules{
			DailyHourCap:  10,
			MaxEntryHours: 24,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// UpsertEntry creates or updates one entry in the caller's sheet for weekKey, creating the sheet on first write.
func (s *TimesheetService) UpsertEntry(ctx context.Context, actor *models.JWTClaims, weekKey string, req dto.UpsertEntryRequest) (*dto.EntryResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	week, err := parseWeek(weekKey)
	if err != nil {
		return nil, err
	}
	owner, err := s.identity.MustResolve(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	action := models.AuditActionEntryCreate
	var (
		sheet    *models.TimeSheet
		entry    *models.TimeEntry
		previous *models.TimeEntry
		dayTotal float64
	)
	err = s.inTx(ctx, "timesheet_upsert_entry", func(tx *sqlx.Tx) error {
		var err error
		sheet, err = s.sheets.EnsureForWeek(ctx, tx, owner.ID, week.Year, week.Number, now)
		if err != nil {
			return appErrors.Internal(err, "failed to load time sheet")
		}
		// A locked sheet is reported before anything about the payload.
		if !workflow.Editable(sheet.Status) {
			return lockedError(sheet)
		}
		if err := s.validator.Struct(req); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time entry payload")
		}
		entry, err = buildEntry(req, week, s.rules.MaxEntryHours)
		if err != nil {
			return err
		}
		entry.TimeSheetID = sheet.ID
		entry.UpdatedAt = now.UTC()
		if entry.ID == "" {
			entry.CreatedAt = entry.UpdatedAt
			err = s.entries.Insert(ctx, tx, entry)
		} else {
			action = models.AuditActionEntryUpdate
			previous, err = s.entries.GetInSheet(ctx, tx, sheet.ID, entry.ID)
			if err != nil {
				return notFoundOr(err, "time entry not found", "failed to load time entry")
			}
			entry.CreatedAt = previous.CreatedAt
			err = s.entries.Update(ctx, tx, entry)
		}
		if err != nil {
			return entryWriteError(err, sheet)
		}
		stamp := nextStamp(sheet, now)
		totals, err := s.sheets.RecomputeTotals(ctx, tx, sheet.ID, stamp)
		if err != nil {
			return appErrors.Internal(err, "failed to recompute time sheet totals")
		}
		applyTotals(sheet, totals, stamp)
		dayTotal, err = s.entries.DayTotal(ctx, tx, sheet.ID, entry.Date)
		if err != nil {
			return appErrors.Internal(err, "failed to sum day hours")
		}
		return nil
	})
	if err != nil {
		return nil, asAppError(err, "failed to save time entry")
	}

	result := &dto.EntryResult{Entry: entry, Sheet: statusView(sheet)}
	if s.rules.DailyHourCap > 0 && roundHours(dayTotal) > s.rules.DailyHourCap {
		warning := capWarning(entry.Date, roundHours(dayTotal), s.rules.DailyHourCap)
		result.Warnings = append(result.Warnings, warning)
		s.metrics.RecordDailyCapExceeded()
		requestLogger(ctx, s.logger).Warn("daily hour cap exceeded",
			zap.String("time_sheet_id", sheet.ID),
			zap.String("collaborator_id", owner.ID),
			zap.String("date", entry.Date.Format(entryDateLayout)),
			zap.Float64("hours", dayTotal))
	}

	s.publish(ctx, sheet)
	s.emitAudit(ctx, actor, action, "time_entry", entry.ID, previous, entry)
	return result, nil
}

// SaveWeek replaces every entry of the caller's week and applies the save event atomically.
func (s *TimesheetService) SaveWeek(ctx context.Context, actor *models.JWTClaims, weekKey string, req dto.SaveWeekRequest) (*dto.WeekResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	week, err := parseWeek(weekKey)
	if err != nil {
		return nil, err
	}
	owner, err := s.identity.MustResolve(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		sheet   *models.TimeSheet
		from    models.TimeSheetStatus
		entries []models.TimeEntry
	)
	err = s.inTx(ctx, "timesheet_save_week", func(tx *sqlx.Tx) error {
		var err error
		sheet, err = s.sheets.EnsureForWeek(ctx, tx, owner.ID, week.Year, week.Number, now)
		if err != nil {
			return appErrors.Internal(err, "failed to load time sheet")
		}
		from = sheet.Status
		if !workflow.Editable(sheet.Status) {
			return lockedError(sheet)
		}
		built, err := s.buildWeek(req, week)
		if err != nil {
			return err
		}
		if _, err := s.entries.DeleteBySheet(ctx, tx, sheet.ID); err != nil {
			return appErrors.Internal(err, "failed to clear time entries")
		}
		for i := range built {
			built[i].TimeSheetID = sheet.ID
			built[i].CreatedAt = now.UTC()
			built[i].UpdatedAt = now.UTC()
			if err := s.entries.Insert(ctx, tx, &built[i]); err != nil {
				return entryWriteError(err, sheet)
			}
		}
		stamp := nextStamp(sheet, now)
		totals, err := s.sheets.RecomputeTotals(ctx, tx, sheet.ID, stamp)
		if err != nil {
			return appErrors.Internal(err, "failed to recompute time sheet totals")
		}
		applyTotals(sheet, totals, stamp)

		to, err := workflow.Apply(sheet.Status, workflow.EventSave, workflow.Facts{EntriesValid: true})
		if err != nil {
			return transitionError(err)
		}
		if err := s.writeStatus(ctx, tx, sheet, to, nil, now); err != nil {
			return err
		}
		entries = built
		return nil
	})
	if err != nil {
		s.metrics.RecordTransition(string(workflow.EventSave), outcomeOf(err))
		return nil, asAppError(err, "failed to save week")
	}
	s.metrics.RecordTransition(string(workflow.EventSave), OutcomeApplied)

	result := &dto.WeekResult{
		Sheet:    s.detail(sheet, entries),
		Warnings: dailyCapWarnings(entries, s.rules.DailyHourCap),
	}
	if len(result.Warnings) > 0 {
		s.metrics.RecordDailyCapExceeded()
		requestLogger(ctx, s.logger).Warn("daily hour cap exceeded", zap.String("time_sheet_id", sheet.ID), zap.Strings("warnings", result.Warnings))
	}
	s.publish(ctx, sheet)
	s.emitAudit(ctx, actor, models.AuditActionWeekSave, "time_sheet", sheet.ID,
		map[string]interface{}{"status": from},
		map[string]interface{}{"status": sheet.Status, "entries": len(entries), "totals": sheet.Totals()})
	return result, nil
}

func (s *TimesheetService) buildWeek(req dto.SaveWeekRequest, week workflow.Week) ([]models.TimeEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid week payload")
	}
	built := make([]models.TimeEntry, 0, len(req.Entries))
	for i, item := range req.Entries {
		item.ID = ""
		entry, err := buildEntry(item, week, s.rules.MaxEntryHours)
		if err != nil {
			return nil, appErrors.FromError(err).WithDetails(map[string]interface{}{"index": i})
		}
		built = append(built, *entry)
	}
	return built, nil
}

// DeleteEntry removes one entry from the caller's sheet for weekKey.
func (s *TimesheetService) DeleteEntry(ctx context.Context, actor *models.JWTClaims, weekKey, entryID string) (*dto.EntryResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	week, err := parseWeek(weekKey)
	if err != nil {
		return nil, err
	}
	owner, err := s.identity.MustResolve(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		sheet    *models.TimeSheet
		previous *models.TimeEntry
	)
	err = s.inTx(ctx, "timesheet_delete_entry", func(tx *sqlx.Tx) error {
		var err error
		sheet, err = s.sheets.LockForWeek(ctx, tx, owner.ID, week.Year, week.Number)
		if err != nil {
			return notFoundOr(err, "time sheet not found", "failed to load time sheet")
		}
		if !workflow.Editable(sheet.Status) {
			return lockedError(sheet)
		}
		previous, err = s.entries.GetInSheet(ctx, tx, sheet.ID, entryID)
		if err != nil {
			return notFoundOr(err, "time entry not found", "failed to load time entry")
		}
		if err := s.entries.Delete(ctx, tx, sheet.ID, entryID); err != nil {
			return entryWriteError(err, sheet)
		}
		stamp := nextStamp(sheet, now)
		totals, err := s.sheets.RecomputeTotals(ctx, tx, sheet.ID, stamp)
		if err != nil {
			return appErrors.Internal(err, "failed to recompute time sheet totals")
		}
		applyTotals(sheet, totals, stamp)
		return nil
	})
	if err != nil {
		return nil, asAppError(err, "failed to delete time entry")
	}

	s.publish(ctx, sheet)
	s.emitAudit(ctx, actor, models.AuditActionEntryDelete, "time_entry", entryID, previous, nil)
	return &dto.EntryResult{Sheet: statusView(sheet)}, nil
}

// Save applies the save event to the caller's sheet.
func (s *TimesheetService) Save(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TimeSheetStatusView, error) {
	return s.transition(ctx, actor, sheetID, workflow.EventSave, "")
}

// Submit applies the submit event, subject to the submission window and the presence of entries.
func (s *TimesheetService) Submit(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TimeSheetStatusView, error) {
	return s.transition(ctx, actor, sheetID, workflow.EventSubmit, "")
}

// Approve applies the approve event on behalf of a supervisor of the sheet owner.
func (s *TimesheetService) Approve(ctx context.Context, actor *models.JWTClaims, sheetID string, req dto.ReviewRequest) (*dto.TimeSheetStatusView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	return s.transition(ctx, actor, sheetID, workflow.EventApprove, req.Note)
}

// Reject applies the reject event, returning the sheet to its owner for edits.
func (s *TimesheetService) Reject(ctx context.Context, actor *models.JWTClaims, sheetID string, req dto.ReviewRequest) (*dto.TimeSheetStatusView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	return s.transition(ctx, actor, sheetID, workflow.EventReject, req.Note)
}

func (s *TimesheetService) transition(ctx context.Context, actor *models.JWTClaims, sheetID string, event workflow.Event, note string) (*dto.TimeSheetStatusView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	now := s.clock.Now()
	var (
		sheet    *models.TimeSheet
		from     models.TimeSheetStatus
		reviewer *models.Collaborator
	)
	err := s.inTx(ctx, "timesheet_"+string(event), func(tx *sqlx.Tx) error {
		var err error
		sheet, err = s.sheets.LockByID(ctx, tx, sheetID)
		if err != nil {
			return notFoundOr(err, "time sheet not found", "failed to load time sheet")
		}
		from = sheet.Status

		var facts workflow.Facts
		switch event {
		case workflow.EventApprove, workflow.EventReject:
			decision, err := s.authorizer.Authorize(ctx, tx, actor.UserID, sheet)
			if err != nil {
				return asAppError(err, "failed to authorize approver")
			}
			if !decision.Resolved || !decision.Supervises {
				return appErrors.Clone(appErrors.ErrUnauthorizedReview, "only a supervisor of the time sheet owner can review it").
					WithDetails(map[string]interface{}{"event": string(event)})
			}
			reviewer = decision.Approver
			facts.AuthorizedApprover = true
		default:
			owner, err := s.identity.MustResolve(ctx, actor.UserID)
			if err != nil {
				return err
			}
			if owner.ID != sheet.CollaboratorID {
				return appErrors.Clone(appErrors.ErrForbidden, "only the owner can save or submit this time sheet")
			}
			entries, err := s.entries.ListBySheet(ctx, tx, sheet.ID)
			if err != nil {
				return appErrors.Internal(err, "failed to load time entries")
			}
			week := workflow.Week{Year: sheet.ISOYear, Number: sheet.ISOWeek}
			facts.HasEntries = len(entries) > 0
			facts.EntriesValid = entriesValid(entries, week, s.rules.MaxEntryHours)
			facts.SubmissionAllowed = workflow.CanSubmit(week.Start(), sheet.Status, now)
		}

		to, err := workflow.Apply(sheet.Status, event, facts)
		if err != nil {
			return transitionError(err)
		}
		return s.writeStatus(ctx, tx, sheet, to, reviewerReview(reviewer, note), now)
	})
	if err != nil {
		s.metrics.RecordTransition(string(event), outcomeOf(err))
		return nil, asAppError(err, fmt.Sprintf("failed to %s time sheet", event))
	}
	s.metrics.RecordTransition(string(event), OutcomeApplied)
	requestLogger(ctx, s.logger).Info("time sheet transition",
		zap.String("time_sheet_id", sheet.ID),
		zap.String("event", string(event)),
		zap.String("from", string(from)),
		zap.String("to", string(sheet.Status)),
		zap.String("actor", actor.UserID))

	s.publish(ctx, sheet)
	s.emitAudit(ctx, actor, models.AuditActionTransition, "time_sheet", sheet.ID,
		map[string]interface{}{"status": from},
		map[string]interface{}{"status": sheet.Status, "event": event})
	view := statusView(sheet)
	return &view, nil
}

type review struct {
	by   string
	note *string
}

func reviewerReview(reviewer *models.Collaborator, note string) *review {
	if reviewer == nil {
		return nil
	}
	return &review{by: reviewer.ID, note: trimmedRef(&note)}
}

// writeStatus persists a status change along with the metadata that belongs to it.
func (s *TimesheetService) writeStatus(ctx context.Context, tx *sqlx.Tx, sheet *models.TimeSheet, to models.TimeSheetStatus, rev *review, now time.Time) error {
	stamp := nextStamp(sheet, now)
	params := repository.UpdateTimeSheetStatusParams{
		ID:          sheet.ID,
		From:        sheet.Status,
		To:          to,
		SubmittedAt: sheet.SubmittedAt,
		ReviewedBy:  sheet.ReviewedBy,
		ReviewedAt:  sheet.ReviewedAt,
		ReviewNote:  sheet.ReviewNote,
		UpdatedAt:   stamp,
	}
	switch to {
	case models.TimeSheetStatusSubmitted:
		params.SubmittedAt = &stamp
		params.ReviewedBy, params.ReviewedAt, params.ReviewNote = nil, nil, nil
	case models.TimeSheetStatusApproved, models.TimeSheetStatusRejected:
		if rev != nil {
			params.ReviewedBy = &rev.by
			params.ReviewNote = rev.note
		}
		params.ReviewedAt = &stamp
	}
	if err := s.sheets.UpdateStatus(ctx, tx, params); err != nil {
		if errors.Is(err, repository.ErrStaleTimeSheet) {
			return appErrors.Clone(appErrors.ErrConflict, "time sheet changed concurrently, retry the request")
		}
		return appErrors.Internal(err, "failed to update time sheet status")
	}
	sheet.Status = to
	sheet.SubmittedAt = params.SubmittedAt
	sheet.ReviewedBy = params.ReviewedBy
	sheet.ReviewedAt = params.ReviewedAt
	sheet.ReviewNote = params.ReviewNote
	sheet.UpdatedAt = stamp
	return nil
}

// Status returns the status projection, served from cache when possible.
func (s *TimesheetService) Status(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TimeSheetStatusView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	view, hit := s.cache.Lookup(ctx, sheetID)
	if !hit {
		sheet, err := s.sheets.GetByID(ctx, sheetID)
		if err != nil {
			return nil, notFoundOr(err, "time sheet not found", "failed to load time sheet")
		}
		fresh := statusView(sheet)
		view = &fresh
		s.cache.Remember(ctx, view)
	}
	if err := s.ensureVisible(ctx, actor, view.CollaboratorID); err != nil {
		return nil, err
	}
	return view, nil
}

// Get returns a sheet with its entries.
func (s *TimesheetService) Get(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TimeSheetDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	sheet, err := s.sheets.GetByID(ctx, sheetID)
	if err != nil {
		return nil, notFoundOr(err, "time sheet not found", "failed to load time sheet")
	}
	if err := s.ensureVisible(ctx, actor, sheet.CollaboratorID); err != nil {
		return nil, err
	}
	entries, err := s.entries.ListBySheet(ctx, nil, sheet.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load time entries")
	}
	detail := s.detail(sheet, entries)
	return &detail, nil
}

// ListMine returns the caller's sheets.
func (s *TimesheetService) ListMine(ctx context.Context, actor *models.JWTClaims, query dto.TimeSheetQuery) ([]dto.TimeSheetStatusView, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time sheet query")
	}
	owner, err := s.identity.MustResolve(ctx, actor.UserID)
	if err != nil {
		return nil, nil, err
	}
	filter := models.TimeSheetFilter{
		CollaboratorIDs: []string{owner.ID},
		ISOYear:         query.Year,
		Limit:           clampLimit(query.Limit),
		Offset:          query.Offset,
	}
	if query.Status != "" {
		filter.Status = []models.TimeSheetStatus{models.TimeSheetStatus(query.Status)}
	}
	sheets, err := s.sheets.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list time sheets")
	}
	return statusViews(sheets), &models.Pagination{Limit: filter.Limit, Offset: filter.Offset, Count: len(sheets)}, nil
}

// PendingApprovals lists submitted sheets awaiting the caller's review.
func (s *TimesheetService) PendingApprovals(ctx context.Context, actor *models.JWTClaims, limit, offset int) ([]dto.TimeSheetStatusView, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	supervisor, err := s.identity.MustResolve(ctx, actor.UserID)
	if err != nil {
		return nil, nil, err
	}
	if offset < 0 {
		offset = 0
	}
	limit = clampLimit(limit)
	sheets, err := s.sheets.ListPendingForSupervisor(ctx, supervisor.ID, limit, offset)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list pending approvals")
	}
	return statusViews(sheets), &models.Pagination{Limit: limit, Offset: offset, Count: len(sheets)}, nil
}

// Delete is administrative cleanup: the sheet and its entries are removed whatever their status.
func (s *TimesheetService) Delete(ctx context.Context, actor *models.JWTClaims, sheetID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.IsAdministrative() {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators can delete time sheets")
	}
	var sheet *models.TimeSheet
	err := s.inTx(ctx, "timesheet_delete", func(tx *sqlx.Tx) error {
		var err error
		sheet, err = s.sheets.LockByID(ctx, tx, sheetID)
		if err != nil {
			return notFoundOr(err, "time sheet not found", "failed to load time sheet")
		}
		if err := s.sheets.Delete(ctx, tx, sheet.ID); err != nil {
			return notFoundOr(err, "time sheet not found", "failed to delete time sheet")
		}
		return nil
	})
	if err != nil {
		return asAppError(err, "failed to delete time sheet")
	}
	s.cache.Forget(ctx, sheetID)
	s.emitAudit(ctx, actor, models.AuditActionTimeSheetDelete, "time_sheet", sheetID, statusView(sheet), nil)
	return nil
}

func (s *TimesheetService) ensureVisible(ctx context.Context, actor *models.JWTClaims, ownerID string) error {
	if actor.IsAdministrative() {
		return nil
	}
	viewer, found, err := s.identity.Resolve(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if found {
		if viewer.ID == ownerID {
			return nil
		}
		supervises, err := s.edges.Exists(ctx, nil, ownerID, viewer.ID)
		if err != nil {
			return appErrors.Internal(err, "failed to check supervisor relation")
		}
		if supervises {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "time sheet belongs to another collaborator")
}

func (s *TimesheetService) inTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	start := time.Now()
	defer func() { s.metrics.ObserveTx(op, time.Since(start)) }()
	return database.WithTx(ctx, s.tx, fn)
}

// publish refreshes the cached projection after a committed mutation.
func (s *TimesheetService) publish(ctx context.Context, sheet *models.TimeSheet) {
	view := statusView(sheet)
	s.cache.Publish(ctx, &view)
}

func (s *TimesheetService) detail(sheet *models.TimeSheet, entries []models.TimeEntry) dto.TimeSheetDetail {
	week := workflow.Week{Year: sheet.ISOYear, Number: sheet.ISOWeek}
	if entries == nil {
		entries = []models.TimeEntry{}
	}
	return dto.TimeSheetDetail{
		TimeSheet: *sheet,
		Week:      week.Key(),
		CanSubmit: len(entries) > 0 && workflow.CanSubmit(week.Start(), sheet.Status, s.clock.Now()),
		Entries:   entries,
	}
}

func (s *TimesheetService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resource, resourceID string, oldValues, newValues interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, newAuditLog(ctx, actor, action, resource, resourceID, oldValues, newValues))
}

func parseWeek(key string) (workflow.Week, error) {
	week, err := workflow.ParseWeek(strings.TrimSpace(key))
	if err != nil {
		return workflow.Week{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return week, nil
}

func statusView(sheet *models.TimeSheet) dto.TimeSheetStatusView {
	if sheet == nil {
		return dto.TimeSheetStatusView{}
	}
	return dto.TimeSheetStatusView{
		ID:             sheet.ID,
		CollaboratorID: sheet.CollaboratorID,
		Week:           workflow.Week{Year: sheet.ISOYear, Number: sheet.ISOWeek}.Key(),
		Status:         sheet.Status,
		Totals:         sheet.Totals(),
		SubmittedAt:    sheet.SubmittedAt,
		ReviewedAt:     sheet.ReviewedAt,
		UpdatedAt:      sheet.UpdatedAt,
	}
}

func statusViews(sheets []models.TimeSheet) []dto.TimeSheetStatusView {
	views := make([]dto.TimeSheetStatusView, 0, len(sheets))
	for i := range sheets {
		views = append(views, statusView(&sheets[i]))
	}
	return views
}

func applyTotals(sheet *models.TimeSheet, totals models.TimeSheetTotals, stamp time.Time) {
	sheet.TotalHours = totals.TotalHours
	sheet.ChargeableHours = totals.ChargeableHours
	sheet.NonChargeableHours = totals.NonChargeableHours
	sheet.UpdatedAt = stamp
}

// nextStamp returns the updated_at of the next write to a locked sheet. It is strictly after
// the stored value even when clocks disagree, so updated_at orders the projections of a sheet.
func nextStamp(sheet *models.TimeSheet, now time.Time) time.Time {
	stamp := now.UTC().Truncate(time.Microsecond)
	if !stamp.After(sheet.UpdatedAt) {
		stamp = sheet.UpdatedAt.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return stamp
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func lockedError(sheet *models.TimeSheet) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrLockedResource, fmt.Sprintf("time sheet is %s and cannot be edited", sheet.Status)).
		WithDetails(map[string]interface{}{"timeSheetId": sheet.ID, "status": string(sheet.Status)})
}

func entryWriteError(err error, sheet *models.TimeSheet) error {
	if errors.Is(err, repository.ErrTimeSheetLocked) {
		return lockedError(sheet)
	}
	return appErrors.Internal(err, "failed to write time entry")
}

func transitionError(err error) error {
	var violation *workflow.Violation
	if !errors.As(err, &violation) {
		return appErrors.Internal(err, "failed to evaluate transition")
	}
	return appErrors.Wrap(violation, appErrors.ErrWorkflowViolation.Code, appErrors.ErrWorkflowViolation.Status, violation.Error()).
		WithDetails(map[string]interface{}{
			"from":  string(violation.From),
			"event": string(violation.Event),
			"guard": string(violation.Guard),
		})
}

func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Internal(err, internal)
}

func asAppError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Internal(err, message)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, appErrors.ErrWorkflowViolation):
		return OutcomeViolation
	case errors.Is(err, appErrors.ErrLockedResource):
		return OutcomeLocked
	case errors.Is(err, appErrors.ErrUnauthorizedReview):
		return OutcomeUnauthorized
	case errors.Is(err, appErrors.ErrValidation):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}
