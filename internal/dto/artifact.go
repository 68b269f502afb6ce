package dto

import "io"

// StageUpload is a candidate payload for an artifact.
type StageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	UploadedBy  string
}

// ApproveArtifactRequest carries the approving operator.
type ApproveArtifactRequest struct {
	ApprovedBy string `json:"approved_by" validate:"omitempty,max=128"`
}

// Artifact content versions accepted by the download endpoint.
const (
	ContentVersionActive  = "active"
	ContentVersionPending = "pending"
)

// ArtifactContent is an open blob ready to be streamed. Size is -1 when unknown.
type ArtifactContent struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
	Size        int64
	Version     string
}
