package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/content-admin-api/internal/dto"
	"github.com/noah-isme/content-admin-api/internal/models"
	"github.com/noah-isme/content-admin-api/pkg/response"
)

type hierarchyService interface {
	GetHierarchyWithAssignments(ctx context.Context) ([]*dto.TreeNode, error)
	FindNode(ctx context.Context, id string) (*models.HierarchyNode, error)
	Invalidate(ctx context.Context) error
}

type pathService interface {
	Resolve(ctx context.Context, nodeID string) (*dto.NodePath, error)
}

// HierarchyHandler exposes the read-only content tree.
type HierarchyHandler struct {
	service hierarchyService
	paths   pathService
}

// NewHierarchyHandler builds a new handler.
func NewHierarchyHandler(service hierarchyService, paths pathService) *HierarchyHandler {
	return &HierarchyHandler{service: service, paths: paths}
}

// Tree godoc
// @Summary Get the content hierarchy with assignments
// @Tags Hierarchy
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /hierarchy [get]
func (h *HierarchyHandler) Tree(c *gin.Context) {
	tree, err := h.service.GetHierarchyWithAssignments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tree, map[string]interface{}{"channels": len(tree)})
}

// Refresh godoc
// @Summary Drop the cached hierarchy so the next read reloads it
// @Tags Hierarchy
// @Success 204
// @Router /hierarchy/refresh [post]
func (h *HierarchyHandler) Refresh(c *gin.Context) {
	if err := h.service.Invalidate(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Node godoc
// @Summary Get a hierarchy node
// @Tags Hierarchy
// @Produce json
// @Param id path string true "Node ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /nodes/{id} [get]
func (h *HierarchyHandler) Node(c *gin.Context) {
	node, err := h.service.FindNode(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, node)
}

// Path godoc
// @Summary Resolve the display path of a node
// @Tags Hierarchy
// @Produce json
// @Param id path string true "Node ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /nodes/{id}/path [get]
func (h *HierarchyHandler) Path(c *gin.Context) {
	path, err := h.paths.Resolve(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, path)
}
