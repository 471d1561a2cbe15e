package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timesheet-api/internal/dto"
	"github.com/noah-isme/timesheet-api/internal/middleware"
	"github.com/noah-isme/timesheet-api/internal/models"
	appErrors "github.com/noah-isme/timesheet-api/pkg/errors"
	"github.com/noah-isme/timesheet-api/pkg/response"
)

type timesheetService interface {
	UpsertEntry(ctx context.Context, actor *models.JWTClaims, weekKey string, req dto.UpsertEntryRequest) (*dto.EntryResult, error)
	SaveWeek(ctx context.Context, actor *models.JWTClaims, weekKey string, req dto.SaveWeekRequest) (*dto.WeekResult, error)
	DeleteEntry(ctx context.Context, actor *models.JWTClaims, weekKey, entryID string) (*dto.EntryResult, error)
	Save(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TimeSheetStatusView, error)
	Submit(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TimeSheetStatusView, error)
	Approve(ctx context.Context, actor *models.JWTClaims, sheetID string, req dto.ReviewRequest) (*dto.TimeSheetStatusView, error)
	Reject(ctx context.Context, actor *models.JWTClaims, sheetID string, req dto.ReviewRequest) (*dto.TimeSheetStatusView, error)
	Status(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TimeSheetStatusView, error)
	Get(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TimeSheetDetail, error)
	ListMine(ctx context.Context, actor *models.JWTClaims, query dto.TimeSheetQuery) ([]dto.TimeSheetStatusView, *models.Pagination, error)
	PendingApprovals(ctx context.Context, actor *models.JWTClaims, limit, offset int) ([]dto.TimeSheetStatusView, *models.Pagination, error)
	Delete(ctx context.Context, actor *models.JWTClaims, sheetID string) error
}

// TimesheetHandler exposes time entry and workflow endpoints. The :ref path parameter is an ISO
// week key (2026-W42) on entry routes and a sheet id everywhere else.
type TimesheetHandler struct {
	service timesheetService
}

// NewTimesheetHandler constructs the handler.
func NewTimesheetHandler(svc timesheetService) *TimesheetHandler {
	return &TimesheetHandler{service: svc}
}

// UpsertEntry godoc
// @Summary Create or update a time entry
// @Description Creates the week's time sheet on first write. Entries are refused once the sheet is submitted or approved.
// @Tags Timesheets
// @Accept json
// @Produce json
// @Param ref path string true "ISO week key, e.g. 2026-W42"
// @Param payload body dto.UpsertEntryRequest true "Entry payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /timesheets/{ref}/entries [post]
func (h *TimesheetHandler) UpsertEntry(c *gin.Context) {
	actor, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.UpsertEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return
	}
	result, err := h.service.UpsertEntry(c.Request.Context(), actor, c.Param("ref"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.AddWarnings(c, result.Warnings...)
	status := http.StatusOK
	if req.ID == "" {
		status = http.StatusCreated
	}
	response.JSON(c, status, result, nil, middleware.ExtractMeta(c))
}

// SaveWeek godoc
// @Summary Replace a week's entries and save the sheet
// @Tags Timesheets
// @Accept json
// @Produce json
// @Param ref path string true "ISO week key, e.g. 2026-W42"
// @Param payload body dto.SaveWeekRequest true "Week payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /timesheets/{ref}/entries [put]
func (h *TimesheetHandler) SaveWeek(c *gin.Context) {
	actor, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.SaveWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid week payload"))
		return
	}
	result, err := h.service.SaveWeek(c.Request.Context(), actor, c.Param("ref"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.AddWarnings(c, result.Warnings...)
	response.JSON(c, http.StatusOK, result.Sheet, nil, middleware.ExtractMeta(c))
}

// DeleteEntry godoc
// @Summary Delete a time entry
// @Tags Timesheets
// @Produce json
// @Param ref path string true "ISO week key, e.g. 2026-W42"
// @Param entryId path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /timesheets/{ref}/entries/{entryId} [delete]
func (h *TimesheetHandler) DeleteEntry(c *gin.Context) {
	actor, ok := requireClaims(c)
	if !ok {
		return
	}
	result, err := h.service.DeleteEntry(c.Request.Context(), actor, c.Param("ref"), c.Param("entryId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Save godoc
// @Summary Save a time sheet
// @Tags Timesheets
// @Produce json
// @Param ref path string true "Time sheet ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets/{ref}/save [post]
func (h *TimesheetHandler) Save(c *gin.Context) {
	h.ownerTransition(c, h.service.Save)
}

// Submit godoc
// @Summary Submit a time sheet for approval
// @Description The current week opens for submission on Friday; earlier weeks are always open.
// @Tags Timesheets
// @Produce json
// @Param ref path string true "Time sheet ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets/{ref}/submit [post]
func (h *TimesheetHandler) Submit(c *gin.Context) {
	h.ownerTransition(c, h.service.Submit)
}

// Approve godoc
// @Summary Approve a submitted time sheet
// @Description Only a supervisor of the sheet owner may approve.
// @Tags Approvals
// @Accept json
// @Produce json
// @Param ref path string true "Time sheet ID"
// @Param payload body dto.ReviewRequest false "Optional reviewer note"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets/{ref}/approve [post]
func (h *TimesheetHandler) Approve(c *gin.Context) {
	h.reviewTransition(c, h.service.Approve)
}

// Reject godoc
// @Summary Reject a submitted time sheet
// @Description Returns the sheet to its owner for edits and resubmission.
// @Tags Approvals
// @Accept json
// @Produce json
// @Param ref path string true "Time sheet ID"
// @Param payload body dto.ReviewRequest false "Optional reviewer note"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets/{ref}/reject [post]
func (h *TimesheetHandler) Reject(c *gin.Context) {
	h.reviewTransition(c, h.service.Reject)
}

// Status godoc
// @Summary Time sheet status and totals
// @Tags Timesheets
// @Produce json
// @Param ref path string true "Time sheet ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timesheets/{ref}/status [get]
func (h *TimesheetHandler) Status(c *gin.Context) {
	actor, ok := requireClaims(c)
	if !ok {
		return
	}
	view, err := h.service.Status(c.Request.Context(), actor, c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Get godoc
// @Summary Time sheet with entries
// @Tags Timesheets
// @Produce json
// @Param ref path string true "Time sheet ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timesheets/{ref} [get]
func (h *TimesheetHandler) Get(c *gin.Context) {
	actor, ok := requireClaims(c)
	if !ok {
		return
	}
	detail, err := h.service.Get(c.Request.Context(), actor, c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// List godoc
// @Summary List the caller's time sheets
// @Tags Timesheets
// @Produce json
// @Param year query int false "ISO year"
// @Param status query string false "Status filter"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /timesheets [get]
func (h *TimesheetHandler) List(c *gin.Context) {
	actor, ok := requireClaims(c)
	if !ok {
		return
	}
	var query dto.TimeSheetQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	views, pagination, err := h.service.ListMine(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, pagination)
}

// PendingApprovals godoc
// @Summary Submitted time sheets awaiting the caller's review
// @Tags Approvals
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /approvals/pending [get]
func (h *TimesheetHandler) PendingApprovals(c *gin.Context) {
	actor, ok := requireClaims(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	views, pagination, err := h.service.PendingApprovals(c.Request.Context(), actor, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, pagination)
}

// Delete godoc
// @Summary Delete a time sheet and its entries
// @Description Administrative cleanup, restricted to ADMIN and HR.
// @Tags Timesheets
// @Param ref path string true "Time sheet ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timesheets/{ref} [delete]
func (h *TimesheetHandler) Delete(c *gin.Context) {
	actor, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("ref")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type ownerTransitionFunc func(ctx context.Context, actor *models.JWTClaims, sheetID string) (*dto.TimeSheetStatusView, error)

type reviewTransitionFunc func(ctx context.Context, actor *models.JWTClaims, sheetID string, req dto.ReviewRequest) (*dto.TimeSheetStatusView, error)

func (h *TimesheetHandler) ownerTransition(c *gin.Context, apply ownerTransitionFunc) {
	actor, ok := requireClaims(c)
	if !ok {
		return
	}
	view, err := apply(c.Request.Context(), actor, c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

func (h *TimesheetHandler) reviewTransition(c *gin.Context, apply reviewTransitionFunc) {
	actor, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.ReviewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
			return
		}
	}
	view, err := apply(c.Request.Context(), actor, c.Param("ref"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
