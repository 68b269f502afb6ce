package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/content-admin-api/internal/dto"
	"github.com/noah-isme/content-admin-api/internal/models"
	appErrors "github.com/noah-isme/content-admin-api/pkg/errors"
	"github.com/noah-isme/content-admin-api/pkg/response"
)

type artifactService interface {
	GetArtifact(ctx context.Context, id string) (*models.Artifact, error)
	ListArtifacts(ctx context.Context, pageID string) ([]models.Artifact, error)
	ListArchives(ctx context.Context, id string) ([]models.ArtifactArchive, error)
	StagePending(ctx context.Context, id string, upload dto.StageUpload) (*models.Artifact, error)
	ApprovePending(ctx context.Context, id, approvedBy string) (*models.Artifact, error)
	CreateAdditional(ctx context.Context, pageID string, upload dto.StageUpload) (*models.Artifact, error)
	RemoveAdditional(ctx context.Context, id string) error
	OpenContent(ctx context.Context, id, version string) (*dto.ArtifactContent, error)
}

// ArtifactHandler exposes staging and approval of versioned files.
type ArtifactHandler struct {
	service artifactService
}

// NewArtifactHandler builds a new handler.
func NewArtifactHandler(service artifactService) *ArtifactHandler {
	return &ArtifactHandler{service: service}
}

// ListByPage godoc
// @Summary List artifacts of a page
// @Tags Artifacts
// @Produce json
// @Param id path string true "Page node ID"
// @Success 200 {object} response.Envelope
// @Router /pages/{id}/artifacts [get]
func (h *ArtifactHandler) ListByPage(c *gin.Context) {
	items, err := h.service.ListArtifacts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}

// Get godoc
// @Summary Get an artifact
// @Tags Artifacts
// @Produce json
// @Param id path string true "Artifact ID"
// @Success 200 {object} response.Envelope
// @Router /artifacts/{id} [get]
func (h *ArtifactHandler) Get(c *gin.Context) {
	artifact, err := h.service.GetArtifact(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, artifact, map[string]interface{}{"state": artifact.State()})
}

// Archives godoc
// @Summary List blobs replaced by past approvals
// @Tags Artifacts
// @Produce json
// @Param id path string true "Artifact ID"
// @Success 200 {object} response.Envelope
// @Router /artifacts/{id}/archives [get]
func (h *ArtifactHandler) Archives(c *gin.Context) {
	items, err := h.service.ListArchives(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}

// Stage godoc
// @Summary Upload a pending version
// @Tags Artifacts
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Artifact ID"
// @Param file formData file true "Candidate file"
// @Param uploaded_by formData string false "Uploader"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /artifacts/{id}/pending [post]
func (h *ArtifactHandler) Stage(c *gin.Context) {
	upload, closeFile, err := readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFile()

	artifact, err := h.service.StagePending(c.Request.Context(), c.Param("id"), upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, artifact, map[string]interface{}{"state": artifact.State()})
}

// Approve godoc
// @Summary Promote the pending version to active
// @Tags Artifacts
// @Accept json
// @Produce json
// @Param id path string true "Artifact ID"
// @Param payload body dto.ApproveArtifactRequest false "Approver"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /artifacts/{id}/approve [post]
func (h *ArtifactHandler) Approve(c *gin.Context) {
	var req dto.ApproveArtifactRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
			return
		}
	}
	artifact, err := h.service.ApprovePending(c.Request.Context(), c.Param("id"), actorFromRequest(c, req.ApprovedBy))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, artifact, map[string]interface{}{"state": artifact.State()})
}

// CreateAdditional godoc
// @Summary Attach additional content to a page
// @Description The upload becomes the pending version of a new artifact; approve it to make it active.
// @Tags Artifacts
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Page node ID"
// @Param file formData file true "Content file"
// @Param uploaded_by formData string false "Uploader"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /pages/{id}/artifacts [post]
func (h *ArtifactHandler) CreateAdditional(c *gin.Context) {
	upload, closeFile, err := readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFile()

	artifact, err := h.service.CreateAdditional(c.Request.Context(), c.Param("id"), upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, artifact, map[string]interface{}{"state": artifact.State()})
}

// Remove godoc
// @Summary Delete additional content
// @Tags Artifacts
// @Param id path string true "Artifact ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /artifacts/{id} [delete]
func (h *ArtifactHandler) Remove(c *gin.Context) {
	if err := h.service.RemoveAdditional(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Content godoc
// @Summary Download the active or pending version
// @Tags Artifacts
// @Produce octet-stream
// @Param id path string true "Artifact ID"
// @Param version query string false "active (default) or pending"
// @Success 200 {file} binary
// @Failure 409 {object} response.Envelope
// @Router /artifacts/{id}/content [get]
func (h *ArtifactHandler) Content(c *gin.Context) {
	content, err := h.service.OpenContent(c.Request.Context(), c.Param("id"), c.Query("version"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer content.Body.Close()
	c.Header("X-Artifact-Version", content.Version)
	response.Stream(c, content.Filename, content.ContentType, content.Size, content.Body)
}

func readUpload(c *gin.Context) (dto.StageUpload, func(), error) {
	header, err := c.FormFile("file")
	if err != nil {
		return dto.StageUpload{}, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "multipart field 'file' is required")
	}
	file, err := header.Open()
	if err != nil {
		return dto.StageUpload{}, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload")
	}
	return dto.StageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		UploadedBy:  actorFromRequest(c, c.PostForm("uploaded_by")),
	}, func() { _ = file.Close() }, nil
}
