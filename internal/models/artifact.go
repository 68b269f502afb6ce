package models

import "time"

// ArtifactKind distinguishes the primary page image from attached files.
type ArtifactKind string

const (
	ArtifactKindPageImage  ArtifactKind = "PAGE_IMAGE"
	ArtifactKindAdditional ArtifactKind = "ADDITIONAL"
)

// ArtifactState is derived from HasPending.
type ArtifactState string

const (
	ArtifactStateClean  ArtifactState = "CLEAN"
	ArtifactStateStaged ArtifactState = "STAGED"
)

// Artifact holds the live and candidate blob references of a versionable file.
type Artifact struct {
	ID                string       `db:"id" json:"id"`
	OwnerPageID       string       `db:"owner_page_id" json:"owner_page_id"`
	Kind              ArtifactKind `db:"kind" json:"kind"`
	Filename          string       `db:"filename" json:"filename"`
	FileExtension     string       `db:"file_extension" json:"file_extension"`
	ActiveBlobRef     *string      `db:"active_blob_ref" json:"active_blob_ref,omitempty"`
	PendingBlobRef    *string      `db:"pending_blob_ref" json:"pending_blob_ref,omitempty"`
	HasPending        bool         `db:"has_pending" json:"has_pending"`
	PendingSize       *int64       `db:"pending_size" json:"pending_size,omitempty"`
	PendingUploadedBy *string      `db:"pending_uploaded_by" json:"pending_uploaded_by,omitempty"`
	PendingUploadedAt *time.Time   `db:"pending_uploaded_at" json:"pending_uploaded_at,omitempty"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updated_at"`
}

// State reports whether a candidate version is waiting for approval.
func (a Artifact) State() ArtifactState {
	if a.HasPending {
		return ArtifactStateStaged
	}
	return ArtifactStateClean
}

// ArtifactArchive records an active blob that was replaced by an approval.
type ArtifactArchive struct {
	ID         string    `db:"id" json:"id"`
	ArtifactID string    `db:"artifact_id" json:"artifact_id"`
	BlobRef    string    `db:"blob_ref" json:"blob_ref"`
	ArchivedBy *string   `db:"archived_by" json:"archived_by,omitempty"`
	ArchivedAt time.Time `db:"archived_at" json:"archived_at"`
}
