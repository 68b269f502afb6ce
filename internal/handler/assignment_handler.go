package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/content-admin-api/internal/dto"
	"github.com/noah-isme/content-admin-api/internal/models"
	appErrors "github.com/noah-isme/content-admin-api/pkg/errors"
	"github.com/noah-isme/content-admin-api/pkg/response"
)

type assignmentQueries interface {
	Get(ctx context.Context, key models.AssignmentKey) (*models.Assignment, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]dto.AssignmentView, error)
	Remove(ctx context.Context, assignmentID string) error
}

type conflictProtocol interface {
	Request(ctx context.Context, req dto.CreateAssignmentRequest) (*dto.AssignmentOutcome, error)
	Confirm(ctx context.Context, assignmentID string, req dto.ReplaceAssignmentRequest) (*dto.AssignmentOutcome, error)
}

// AssignmentHandler exposes manager assignments and the confirm-to-replace flow.
type AssignmentHandler struct {
	queries  assignmentQueries
	protocol conflictProtocol
}

// NewAssignmentHandler builds a new handler.
func NewAssignmentHandler(queries assignmentQueries, protocol conflictProtocol) *AssignmentHandler {
	return &AssignmentHandler{queries: queries, protocol: protocol}
}

// List godoc
// @Summary List assignments
// @Tags Assignments
// @Produce json
// @Param target_kind query string false "CHANNEL, CATEGORY or PAGE"
// @Param target_id query string false "Target node ID"
// @Param role query string false "SUPERVISOR or WORKER"
// @Param user_id query string false "Assignee"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	filter := models.AssignmentFilter{
		TargetKind:     models.NodeKind(strings.ToUpper(c.Query("target_kind"))),
		TargetID:       c.Query("target_id"),
		Role:           models.AssignmentRole(strings.ToUpper(c.Query("role"))),
		AssigneeUserID: c.Query("user_id"),
	}
	items, err := h.queries.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}

// Lookup godoc
// @Summary Get the assignment holding a target and role
// @Tags Assignments
// @Produce json
// @Param target_kind query string true "CHANNEL, CATEGORY or PAGE"
// @Param target_id query string true "Target node ID"
// @Param role query string true "SUPERVISOR or WORKER"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/lookup [get]
func (h *AssignmentHandler) Lookup(c *gin.Context) {
	key := models.AssignmentKey{
		TargetKind: models.NodeKind(strings.ToUpper(c.Query("target_kind"))),
		TargetID:   c.Query("target_id"),
		Role:       models.AssignmentRole(strings.ToUpper(c.Query("role"))),
	}
	assignment, err := h.queries.Get(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment)
}

// Create godoc
// @Summary Assign a manager
// @Description Returns 409 with a conflict descriptor when the target and role are already held.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req dto.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	outcome, err := h.protocol.Request(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if outcome.Status == dto.OutcomeConflict {
		response.Error(c, appErrors.WithDetails(appErrors.ErrConflict, "target already has an assignee for this role", outcome.Conflict))
		return
	}
	response.Created(c, outcome)
}

// Replace godoc
// @Summary Replace the assignee after confirmation
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.ReplaceAssignmentRequest true "Replacement payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /assignments/{id} [put]
func (h *AssignmentHandler) Replace(c *gin.Context) {
	var req dto.ReplaceAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid replace payload"))
		return
	}
	outcome, err := h.protocol.Confirm(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if outcome.Status == dto.OutcomeConflict {
		response.Error(c, appErrors.WithDetails(appErrors.ErrConflict, "assignee changed since confirmation", outcome.Conflict))
		return
	}
	response.JSON(c, http.StatusOK, outcome)
}

// Remove godoc
// @Summary Remove an assignment
// @Tags Assignments
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Remove(c *gin.Context) {
	if err := h.queries.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
