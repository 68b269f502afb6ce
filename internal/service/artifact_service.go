package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/content-admin-api/internal/dto"
	"github.com/noah-isme/content-admin-api/internal/models"
	"github.com/noah-isme/content-admin-api/internal/repository"
	appErrors "github.com/noah-isme/content-admin-api/pkg/errors"
	"github.com/noah-isme/content-admin-api/pkg/jobs"
	"github.com/noah-isme/content-admin-api/pkg/keylock"
	"github.com/noah-isme/content-admin-api/pkg/storage"
)

// PageImageExtension is the only accepted format for page images.
const PageImageExtension = ".png"

// DefaultAdditionalExtensions are the file types accepted for new additional content.
var DefaultAdditionalExtensions = []string{
	".mp4", ".avi", ".mkv", ".mov", ".webm", ".asf",
	".pdf",
	".png", ".bmp", ".jpg", ".jpeg", ".gif",
}

var errUploadTooLarge = errors.New("upload exceeds size limit")

type artifactRepository interface {
	FindByID(ctx context.Context, id string) (*models.Artifact, error)
	ListByPage(ctx context.Context, pageID string) ([]models.Artifact, error)
	SetPending(ctx context.Context, params repository.StagePendingParams) (*string, error)
	Promote(ctx context.Context, artifactID, expectedPending string, approvedBy *string, at time.Time) (*models.Artifact, error)
	ListArchives(ctx context.Context, artifactID string) ([]models.ArtifactArchive, error)
	Insert(ctx context.Context, artifact *models.Artifact) error
	DeleteAdditional(ctx context.Context, id string) (*models.Artifact, error)
}

type blobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

type cleanupQueue interface {
	Enqueue(job jobs.Job) error
}

type nodeFinder interface {
	FindNode(ctx context.Context, id string) (*models.HierarchyNode, error)
}

// ArtifactConfig bounds uploads and blob calls.
type ArtifactConfig struct {
	MaxPageBytes         int64
	MaxAdditionalBytes   int64
	AdditionalExtensions []string
	BlobTimeout          time.Duration
}

// ArtifactService stages candidate versions and promotes them on approval.
// Blobs are written under fresh keys; only the database pointers move.
type ArtifactService struct {
	repo    artifactRepository
	blobs   blobStore
	cleanup cleanupQueue
	nodes   nodeFinder
	locks   *keylock.Locker
	metrics *MetricsService
	cfg     ArtifactConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewArtifactService wires the staging pipeline.
func NewArtifactService(
	repo artifactRepository,
	blobs blobStore,
	cleanup cleanupQueue,
	nodes nodeFinder,
	metrics *MetricsService,
	cfg ArtifactConfig,
	logger *zap.Logger,
) *ArtifactService {
	if cfg.MaxPageBytes <= 0 {
		cfg.MaxPageBytes = 100 << 20
	}
	if cfg.MaxAdditionalBytes <= 0 {
		cfg.MaxAdditionalBytes = 500 << 20
	}
	if cfg.BlobTimeout <= 0 {
		cfg.BlobTimeout = 30 * time.Second
	}
	if len(cfg.AdditionalExtensions) == 0 {
		cfg.AdditionalExtensions = DefaultAdditionalExtensions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactService{
		repo:    repo,
		blobs:   blobs,
		cleanup: cleanup,
		nodes:   nodes,
		locks:   keylock.New(),
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GetArtifact returns the artifact's current pointers.
func (s *ArtifactService) GetArtifact(ctx context.Context, id string) (*models.Artifact, error) {
	artifact, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapArtifactLookup(err)
	}
	return artifact, nil
}

// ListArtifacts returns the artifacts attached to a page.
func (s *ArtifactService) ListArtifacts(ctx context.Context, pageID string) ([]models.Artifact, error) {
	if err := s.requirePage(ctx, pageID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByPage(ctx, pageID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list artifacts")
	}
	return items, nil
}

// ListArchives returns blobs that were active before each approval.
func (s *ArtifactService) ListArchives(ctx context.Context, id string) ([]models.ArtifactArchive, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, mapArtifactLookup(err)
	}
	items, err := s.repo.ListArchives(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list archives")
	}
	return items, nil
}

// StagePending stores upload as the artifact's pending version. Staging over
// an existing pending version replaces it; the superseded blob is queued for
// deletion once the pointer has moved.
func (s *ArtifactService) StagePending(ctx context.Context, id string, upload dto.StageUpload) (artifact *models.Artifact, err error) {
	defer func() { s.metrics.RecordTransition("stage", err) }()

	if upload.Body == nil || strings.TrimSpace(upload.Filename) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}

	unlock, err := s.locks.Lock(ctx, "artifact:"+id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "request cancelled before staging")
	}
	defer unlock()

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapArtifactLookup(err)
	}
	ext, limit, err := s.checkUpload(current, upload)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("artifacts/%s/pending/%s%s", id, uuid.NewString(), ext)
	if err := s.putBlob(ctx, key, upload, limit); err != nil {
		return nil, err
	}

	writeCtx := context.WithoutCancel(ctx)
	at := s.now()
	var uploadedBy *string
	if by := strings.TrimSpace(upload.UploadedBy); by != "" {
		uploadedBy = &by
	}
	previous, err := s.repo.SetPending(writeCtx, repository.StagePendingParams{
		ArtifactID: id,
		BlobRef:    key,
		Size:       upload.Size,
		UploadedBy: uploadedBy,
		UploadedAt: at,
	})
	if err != nil {
		row, landed := s.settleFailedWrite(writeCtx, id, key, err)
		if !landed {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "artifact not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record pending version")
		}
		if current.PendingBlobRef != nil && *current.PendingBlobRef != key {
			s.scheduleDelete(*current.PendingBlobRef, "superseded")
		}
		return row, nil
	}
	if previous != nil && *previous != key {
		s.scheduleDelete(*previous, "superseded")
	}

	staged := *current
	staged.PendingBlobRef = &key
	staged.HasPending = true
	size := upload.Size
	staged.PendingSize = &size
	staged.PendingUploadedBy = uploadedBy
	staged.PendingUploadedAt = &at
	staged.UpdatedAt = at
	s.logger.Info("artifact staged", zap.String("artifact_id", id), zap.String("blob_ref", key), zap.Bool("replaced_pending", previous != nil))
	return &staged, nil
}

// ApprovePending promotes the pending version to active in one transaction.
// The previous active blob is recorded in the archive.
func (s *ArtifactService) ApprovePending(ctx context.Context, id, approvedBy string) (artifact *models.Artifact, err error) {
	defer func() { s.metrics.RecordTransition("approve", err) }()

	unlock, err := s.locks.Lock(ctx, "artifact:"+id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "request cancelled before approval")
	}
	defer unlock()

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapArtifactLookup(err)
	}
	if !current.HasPending || current.PendingBlobRef == nil {
		return nil, appErrors.Clone(appErrors.ErrNotStaged, "artifact "+id+" has no pending version")
	}
	pending := *current.PendingBlobRef

	blobCtx, cancel := context.WithTimeout(ctx, s.cfg.BlobTimeout)
	start := time.Now()
	exists, err := s.blobs.Exists(blobCtx, pending)
	cancel()
	s.metrics.ObserveBlob("exists", err, time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "could not reach pending blob")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrStorageUnavailable, "pending blob is missing from storage")
	}

	var approver *string
	if by := strings.TrimSpace(approvedBy); by != "" {
		approver = &by
	}
	promoted, err := s.repo.Promote(context.WithoutCancel(ctx), id, pending, approver, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrPendingChanged) {
			return nil, appErrors.Clone(appErrors.ErrNotStaged, "pending version changed before approval")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote pending version")
	}
	s.logger.Info("artifact approved", zap.String("artifact_id", id), zap.String("blob_ref", pending))
	return promoted, nil
}

// CreateAdditional attaches a new ADDITIONAL artifact to a page. The upload is
// stored as the pending version; the artifact has no active version until it
// is approved.
func (s *ArtifactService) CreateAdditional(ctx context.Context, pageID string, upload dto.StageUpload) (artifact *models.Artifact, err error) {
	defer func() { s.metrics.RecordTransition("create", err) }()

	if upload.Body == nil || strings.TrimSpace(upload.Filename) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if err := s.requirePage(ctx, pageID); err != nil {
		return nil, err
	}
	base := filepath.Base(strings.ReplaceAll(upload.Filename, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	if !s.allowedExtension(ext) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %q is not allowed; allowed types: %s", ext, strings.Join(s.cfg.AdditionalExtensions, ", ")))
	}
	if upload.Size > s.cfg.MaxAdditionalBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxAdditionalBytes))
	}

	id := uuid.NewString()
	key := fmt.Sprintf("artifacts/%s/pending/%s%s", id, uuid.NewString(), ext)
	if err := s.putBlob(ctx, key, upload, s.cfg.MaxAdditionalBytes); err != nil {
		return nil, err
	}

	at := s.now()
	size := upload.Size
	created := &models.Artifact{
		ID:                id,
		OwnerPageID:       pageID,
		Kind:              models.ArtifactKindAdditional,
		Filename:          base,
		FileExtension:     ext,
		PendingBlobRef:    &key,
		HasPending:        true,
		PendingSize:       &size,
		PendingUploadedAt: &at,
		UpdatedAt:         at,
	}
	if by := strings.TrimSpace(upload.UploadedBy); by != "" {
		created.PendingUploadedBy = &by
	}
	writeCtx := context.WithoutCancel(ctx)
	if err := s.repo.Insert(writeCtx, created); err != nil {
		row, landed := s.settleFailedWrite(writeCtx, id, key, err)
		if !landed {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create artifact")
		}
		created = row
	}
	s.logger.Info("additional artifact created", zap.String("artifact_id", id), zap.String("page_id", pageID), zap.String("blob_ref", key))
	return created, nil
}

// RemoveAdditional deletes an ADDITIONAL artifact and queues every blob it
// referenced, archived versions included, for deletion. Page images cannot be removed.
func (s *ArtifactService) RemoveAdditional(ctx context.Context, id string) (err error) {
	defer func() { s.metrics.RecordTransition("remove", err) }()

	unlock, err := s.locks.Lock(ctx, "artifact:"+id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "request cancelled before removal")
	}
	defer unlock()

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return mapArtifactLookup(err)
	}
	if current.Kind != models.ArtifactKindAdditional {
		return appErrors.Clone(appErrors.ErrValidation, "only additional content can be removed")
	}
	archives, err := s.repo.ListArchives(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list archives")
	}

	deleted, err := s.repo.DeleteAdditional(context.WithoutCancel(ctx), id)
	if err != nil {
		return mapArtifactLookup(err)
	}
	for _, ref := range []*string{deleted.ActiveBlobRef, deleted.PendingBlobRef} {
		if ref != nil {
			s.scheduleDelete(*ref, "removed")
		}
	}
	for _, archive := range archives {
		s.scheduleDelete(archive.BlobRef, "removed")
	}
	s.logger.Info("additional artifact removed", zap.String("artifact_id", id), zap.Int("archives", len(archives)))
	return nil
}

// OpenContent opens the active or pending blob of an artifact for streaming.
// The caller closes the returned body.
func (s *ArtifactService) OpenContent(ctx context.Context, id, version string) (*dto.ArtifactContent, error) {
	if version == "" {
		version = dto.ContentVersionActive
	}
	if version != dto.ContentVersionActive && version != dto.ContentVersionPending {
		return nil, appErrors.Clone(appErrors.ErrValidation, "version must be active or pending")
	}
	artifact, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapArtifactLookup(err)
	}

	size := int64(-1)
	var ref *string
	if version == dto.ContentVersionPending {
		if !artifact.HasPending || artifact.PendingBlobRef == nil {
			return nil, appErrors.Clone(appErrors.ErrNotStaged, "artifact "+id+" has no pending version")
		}
		ref = artifact.PendingBlobRef
		if artifact.PendingSize != nil {
			size = *artifact.PendingSize
		}
	} else {
		if artifact.ActiveBlobRef == nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "artifact "+id+" has no active version")
		}
		ref = artifact.ActiveBlobRef
	}

	start := time.Now()
	body, err := s.blobs.Open(ctx, *ref)
	s.metrics.ObserveBlob("open", err, time.Since(start))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrStorageUnavailable, version+" blob is missing from storage")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "could not open blob")
	}

	ext := normalizeExtension(artifact.FileExtension)
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	filename := artifact.Filename
	if !strings.EqualFold(filepath.Ext(filename), ext) {
		filename += ext
	}
	return &dto.ArtifactContent{
		Body:        body,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		Version:     version,
	}, nil
}

func (s *ArtifactService) requirePage(ctx context.Context, pageID string) error {
	if s.nodes == nil {
		return nil
	}
	node, err := s.nodes.FindNode(ctx, pageID)
	if err != nil {
		return err
	}
	if node.Kind != models.NodeKindPage {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("node %s is a %s, not a page", pageID, node.Kind))
	}
	return nil
}

func (s *ArtifactService) allowedExtension(ext string) bool {
	if ext == "" {
		return false
	}
	for _, allowed := range s.cfg.AdditionalExtensions {
		if normalizeExtension(allowed) == ext {
			return true
		}
	}
	return false
}

// settleFailedWrite re-reads the artifact after a failed pointer write. The
// write may have committed before the error surfaced, so key is deleted only
// when the row is known not to reference it. An unreadable row keeps the blob.
func (s *ArtifactService) settleFailedWrite(ctx context.Context, id, key string, writeErr error) (*models.Artifact, bool) {
	row, err := s.repo.FindByID(ctx, id)
	switch {
	case err == nil && row.PendingBlobRef != nil && *row.PendingBlobRef == key:
		s.logger.Warn("pointer write reported failure but landed", zap.String("artifact_id", id), zap.String("blob_ref", key), zap.Error(writeErr))
		return row, true
	case err == nil || errors.Is(err, sql.ErrNoRows):
		s.scheduleDelete(key, "orphaned")
	default:
		s.logger.Warn("blob kept after unverifiable write", zap.String("artifact_id", id), zap.String("blob_ref", key), zap.Error(err))
	}
	return nil, false
}

func (s *ArtifactService) checkUpload(artifact *models.Artifact, upload dto.StageUpload) (string, int64, error) {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	switch artifact.Kind {
	case models.ArtifactKindPageImage:
		if ext != PageImageExtension {
			return "", 0, appErrors.Clone(appErrors.ErrValidation, "page image must be a .png file")
		}
		if upload.Size > s.cfg.MaxPageBytes {
			return "", 0, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("page image exceeds %d bytes", s.cfg.MaxPageBytes))
		}
		return ext, s.cfg.MaxPageBytes, nil
	default:
		want := normalizeExtension(artifact.FileExtension)
		if want != "" && ext != want {
			return "", 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file must keep the %s extension", want))
		}
		if upload.Size > s.cfg.MaxAdditionalBytes {
			return "", 0, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxAdditionalBytes))
		}
		return ext, s.cfg.MaxAdditionalBytes, nil
	}
}

func (s *ArtifactService) putBlob(ctx context.Context, key string, upload dto.StageUpload, limit int64) error {
	blobCtx, cancel := context.WithTimeout(ctx, s.cfg.BlobTimeout)
	defer cancel()

	size := upload.Size
	if size <= 0 {
		size = -1
	}
	start := time.Now()
	err := s.blobs.Put(blobCtx, key, &cappedReader{r: upload.Body, remaining: limit}, size, upload.ContentType)
	s.metrics.ObserveBlob("put", err, time.Since(start))
	if err == nil {
		return nil
	}
	s.scheduleDelete(key, "failed upload")
	if errors.Is(err, errUploadTooLarge) {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("upload exceeds %d bytes", limit))
	}
	return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "failed to store pending blob")
}

func (s *ArtifactService) scheduleDelete(key, reason string) {
	if s.cleanup == nil {
		return
	}
	if err := s.cleanup.Enqueue(jobs.Job{Type: BlobCleanupJob, Key: key}); err != nil {
		s.logger.Warn("blob cleanup not scheduled", zap.String("key", key), zap.String("reason", reason), zap.Error(err))
	}
}

// normalizeExtension lowercases ext and ensures a leading dot.
func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func mapArtifactLookup(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "artifact not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load artifact")
}

// cappedReader fails once more than remaining bytes are read.
type cappedReader struct {
	r         io.Reader
	remaining int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, errUploadTooLarge
	}
	return n, err
}
