package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/content-admin-api/internal/models"
)

// ErrPendingChanged signals that the pending reference moved between read and promote.
var ErrPendingChanged = errors.New("artifact pending version changed")

const artifactColumns = `id, owner_page_id, kind, filename, file_extension, active_blob_ref, pending_blob_ref, has_pending,
       pending_size, pending_uploaded_by, pending_uploaded_at, updated_at`

// ArtifactRepository persists artifact version pointers.
type ArtifactRepository struct {
	db *sqlx.DB
}

// NewArtifactRepository constructs the repository.
func NewArtifactRepository(db *sqlx.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// FindByID loads a single artifact.
func (r *ArtifactRepository) FindByID(ctx context.Context, id string) (*models.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE id = $1`
	var artifact models.Artifact
	if err := r.db.GetContext(ctx, &artifact, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return &artifact, nil
}

// ListByPage returns the page image first, then additional content by filename.
func (r *ArtifactRepository) ListByPage(ctx context.Context, pageID string) ([]models.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE owner_page_id = $1
ORDER BY CASE kind WHEN 'PAGE_IMAGE' THEN 0 ELSE 1 END, filename ASC, id ASC`
	var artifacts []models.Artifact
	if err := r.db.SelectContext(ctx, &artifacts, query, pageID); err != nil {
		return nil, fmt.Errorf("list artifacts by page: %w", err)
	}
	return artifacts, nil
}

// PendingPageIDs returns pages whose image has a staged version.
func (r *ArtifactRepository) PendingPageIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT owner_page_id FROM artifacts WHERE kind = 'PAGE_IMAGE' AND has_pending`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list pending pages: %w", err)
	}
	return ids, nil
}

// StagePendingParams describes a new pending version.
type StagePendingParams struct {
	ArtifactID string
	BlobRef    string
	Size       int64
	UploadedBy *string
	UploadedAt time.Time
}

// SetPending points the artifact at a new pending blob in one statement and
// returns the reference it replaced, if any.
func (r *ArtifactRepository) SetPending(ctx context.Context, params StagePendingParams) (*string, error) {
	const query = `WITH prev AS (
    SELECT id, pending_blob_ref FROM artifacts WHERE id = $1 FOR UPDATE
)
UPDATE artifacts a
SET pending_blob_ref = $2, has_pending = TRUE, pending_size = $3, pending_uploaded_by = $4,
    pending_uploaded_at = $5, updated_at = $5
FROM prev
WHERE a.id = prev.id
RETURNING prev.pending_blob_ref`
	var previous sql.NullString
	if err := r.db.GetContext(ctx, &previous, query, params.ArtifactID, params.BlobRef, params.Size, params.UploadedBy, params.UploadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("set pending artifact: %w", err)
	}
	if !previous.Valid {
		return nil, nil
	}
	return &previous.String, nil
}

// Promote archives the active blob and moves the pending reference into place.
// It fails with ErrPendingChanged when expectedPending is no longer staged.
func (r *ArtifactRepository) Promote(ctx context.Context, artifactID, expectedPending string, approvedBy *string, at time.Time) (artifact *models.Artifact, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin promote transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const lockQuery = `SELECT active_blob_ref FROM artifacts WHERE id = $1 AND has_pending AND pending_blob_ref = $2 FOR UPDATE`
	var active sql.NullString
	if err = tx.GetContext(ctx, &active, lockQuery, artifactID, expectedPending); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrPendingChanged
			return nil, err
		}
		return nil, fmt.Errorf("lock artifact: %w", err)
	}

	if active.Valid {
		const archiveQuery = `INSERT INTO artifact_archives (id, artifact_id, blob_ref, archived_by, archived_at) VALUES ($1, $2, $3, $4, $5)`
		if _, err = tx.ExecContext(ctx, archiveQuery, uuid.NewString(), artifactID, active.String, approvedBy, at); err != nil {
			return nil, fmt.Errorf("archive active blob: %w", err)
		}
	}

	promoteQuery := `UPDATE artifacts
SET active_blob_ref = pending_blob_ref, pending_blob_ref = NULL, has_pending = FALSE, pending_size = NULL,
    pending_uploaded_by = NULL, pending_uploaded_at = NULL, updated_at = $3
WHERE id = $1 AND has_pending AND pending_blob_ref = $2
RETURNING ` + artifactColumns
	var promoted models.Artifact
	if err = tx.GetContext(ctx, &promoted, promoteQuery, artifactID, expectedPending, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrPendingChanged
			return nil, err
		}
		return nil, fmt.Errorf("promote pending artifact: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit promote: %w", err)
	}
	return &promoted, nil
}

// ListArchives returns replaced blobs newest first.
func (r *ArtifactRepository) ListArchives(ctx context.Context, artifactID string) ([]models.ArtifactArchive, error) {
	const query = `SELECT id, artifact_id, blob_ref, archived_by, archived_at FROM artifact_archives WHERE artifact_id = $1 ORDER BY archived_at DESC, id ASC`
	var archives []models.ArtifactArchive
	if err := r.db.SelectContext(ctx, &archives, query, artifactID); err != nil {
		return nil, fmt.Errorf("list artifact archives: %w", err)
	}
	return archives, nil
}

// Insert adds a new artifact row, generating the ID when empty.
func (r *ArtifactRepository) Insert(ctx context.Context, artifact *models.Artifact) error {
	if artifact.ID == "" {
		artifact.ID = uuid.NewString()
	}
	const query = `INSERT INTO artifacts (id, owner_page_id, kind, filename, file_extension, active_blob_ref, pending_blob_ref,
    has_pending, pending_size, pending_uploaded_by, pending_uploaded_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		artifact.ID, artifact.OwnerPageID, artifact.Kind, artifact.Filename, artifact.FileExtension,
		artifact.ActiveBlobRef, artifact.PendingBlobRef, artifact.HasPending, artifact.PendingSize,
		artifact.PendingUploadedBy, artifact.PendingUploadedAt, artifact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// DeleteAdditional removes an ADDITIONAL artifact together with its archive rows
// and returns the deleted row. Page images are never deleted here.
func (r *ArtifactRepository) DeleteAdditional(ctx context.Context, id string) (*models.Artifact, error) {
	query := `DELETE FROM artifacts WHERE id = $1 AND kind = 'ADDITIONAL' RETURNING ` + artifactColumns
	var artifact models.Artifact
	if err := r.db.GetContext(ctx, &artifact, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("delete artifact: %w", err)
	}
	return &artifact, nil
}
