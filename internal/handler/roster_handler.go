package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/content-admin-api/internal/models"
	"github.com/noah-isme/content-admin-api/internal/service"
	"github.com/noah-isme/content-admin-api/pkg/export"
	"github.com/noah-isme/content-admin-api/pkg/response"
)

type rosterExporter interface {
	Export(ctx context.Context, filter models.AssignmentFilter, format export.Format) (*service.RosterExport, error)
}

// RosterHandler serves assignment roster downloads.
type RosterHandler struct {
	service rosterExporter
}

// NewRosterHandler builds a RosterHandler.
func NewRosterHandler(service rosterExporter) *RosterHandler {
	return &RosterHandler{service: service}
}

// Export godoc
// @Summary Download the assignment roster
// @Tags Assignments
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param target_kind query string false "CHANNEL, CATEGORY or PAGE"
// @Param role query string false "SUPERVISOR or WORKER"
// @Param user_id query string false "Assignee"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /assignments/export [get]
func (h *RosterHandler) Export(c *gin.Context) {
	filter := models.AssignmentFilter{
		TargetKind:     models.NodeKind(strings.ToUpper(c.Query("target_kind"))),
		TargetID:       c.Query("target_id"),
		Role:           models.AssignmentRole(strings.ToUpper(c.Query("role"))),
		AssigneeUserID: c.Query("user_id"),
	}
	format := export.Format(strings.ToLower(c.DefaultQuery("format", string(export.FormatCSV))))

	out, err := h.service.Export(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, out.Filename, out.ContentType, out.Body, out.Rows)
}
