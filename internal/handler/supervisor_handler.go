package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timesheet-api/internal/dto"
	"github.com/noah-isme/timesheet-api/internal/models"
	appErrors "github.com/noah-isme/timesheet-api/pkg/errors"
	"github.com/noah-isme/timesheet-api/pkg/response"
)

type supervisorService interface {
	ListSupervisors(ctx context.Context, actor *models.JWTClaims, collaboratorID string) ([]models.SupervisorRelation, error)
	ListSupervisees(ctx context.Context, actor *models.JWTClaims, supervisorID string) ([]models.SupervisorRelation, error)
	Add(ctx context.Context, actor *models.JWTClaims, req dto.SupervisorEdgeRequest) (*models.SupervisorRelation, error)
	Remove(ctx context.Context, actor *models.JWTClaims, collaboratorID, supervisorID string) error
}

// SupervisorHandler exposes HR administration of the supervisor graph.
type SupervisorHandler struct {
	service supervisorService
}

// NewSupervisorHandler constructs the handler.
func NewSupervisorHandler(svc supervisorService) *SupervisorHandler {
	return &SupervisorHandler{service: svc}
}

// List godoc
// @Summary List supervisor relations
// @Description Pass collaboratorId to list a collaborator's supervisors, or supervisorId to list a supervisor's collaborators.
// @Tags Supervisors
// @Produce json
// @Param collaboratorId query string false "Collaborator ID"
// @Param supervisorId query string false "Supervisor ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /supervisors [get]
func (h *SupervisorHandler) List(c *gin.Context) {
	actor, ok := requireClaims(c)
	if !ok {
		return
	}
	collaboratorID := c.Query("collaboratorId")
	supervisorID := c.Query("supervisorId")

	var (
		relations []models.SupervisorRelation
		err       error
	)
	switch {
	case collaboratorID != "" && supervisorID == "":
		relations, err = h.service.ListSupervisors(c.Request.Context(), actor, collaboratorID)
	case supervisorID != "" && collaboratorID == "":
		relations, err = h.service.ListSupervisees(c.Request.Context(), actor, supervisorID)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, "exactly one of collaboratorId or supervisorId is required")
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, relations, nil)
}

// Add godoc
// @Summary Register a supervisor
// @Tags Supervisors
// @Accept json
// @Produce json
// @Param payload body dto.SupervisorEdgeRequest true "Supervisor relation"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /supervisors [post]
func (h *SupervisorHandler) Add(c *gin.Context) {
	actor, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.SupervisorEdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid supervisor payload"))
		return
	}
	relation, err := h.service.Add(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, relation)
}

// Remove godoc
// @Summary Remove a supervisor
// @Tags Supervisors
// @Param collaboratorId path string true "Collaborator ID"
// @Param supervisorId path string true "Supervisor ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /supervisors/{collaboratorId}/{supervisorId} [delete]
func (h *SupervisorHandler) Remove(c *gin.Context) {
	actor, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.service.Remove(c.Request.Context(), actor, c.Param("collaboratorId"), c.Param("supervisorId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
