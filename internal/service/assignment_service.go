package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/content-admin-api/internal/dto"
	"github.com/noah-isme/content-admin-api/internal/models"
	appErrors "github.com/noah-isme/content-admin-api/pkg/errors"
	"github.com/noah-isme/content-admin-api/pkg/keylock"
)

// createAttempts bounds retries when the winning row disappears between insert and read back.
const createAttempts = 3

type assignmentRepository interface {
	InsertIfAbsent(ctx context.Context, assignment *models.Assignment) (bool, error)
	FindByKey(ctx context.Context, key models.AssignmentKey) (*models.Assignment, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	UpdateAssignee(ctx context.Context, id, userID string, at time.Time) (*models.Assignment, error)
	UpdateAssigneeIf(ctx context.Context, id, expectedUserID, userID string, at time.Time) (*models.Assignment, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error)
	Delete(ctx context.Context, id string) error
}

type pathLabeler interface {
	DisplayPath(ctx context.Context, nodeID string) (string, error)
}

// AssignResult is the outcome of Create: exactly one of Created or Existing is set.
type AssignResult struct {
	Created  *models.Assignment
	Existing *models.Assignment
}

// Conflict reports whether the key was already taken.
func (r AssignResult) Conflict() bool { return r.Existing != nil }

// AssignmentService keeps at most one assignment per (target, role).
type AssignmentService struct {
	repo    assignmentRepository
	nodes   nodeFinder
	paths   pathLabeler
	locks   *keylock.Locker
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewAssignmentService wires the registry. paths may be nil.
func NewAssignmentService(repo assignmentRepository, nodes nodeFinder, paths pathLabeler, metrics *MetricsService, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		repo:    repo,
		nodes:   nodes,
		paths:   paths,
		locks:   keylock.New(),
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create assigns userID to key unless the key is already held, in which case
// the holder is returned in AssignResult.Existing and nothing changes.
func (s *AssignmentService) Create(ctx context.Context, key models.AssignmentKey, userID string) (*AssignResult, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user_id is required")
	}
	if err := s.checkTarget(ctx, key); err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, "key:"+key.String())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "request cancelled before assignment")
	}
	defer unlock()

	writeCtx := context.WithoutCancel(ctx)
	for attempt := 0; attempt < createAttempts; attempt++ {
		assignment := &models.Assignment{
			TargetKind:     key.TargetKind,
			TargetID:       key.TargetID,
			Role:           key.Role,
			AssigneeUserID: userID,
			AssignedAt:     s.now(),
		}
		inserted, err := s.repo.InsertIfAbsent(writeCtx, assignment)
		if err != nil {
			s.metrics.RecordAssignment("create", "error")
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
		}
		if inserted {
			s.metrics.RecordAssignment("create", "created")
			s.logger.Info("assignment created", zap.String("assignment_id", assignment.ID), zap.String("key", key.String()), zap.String("user_id", userID))
			return &AssignResult{Created: assignment}, nil
		}

		existing, err := s.repo.FindByKey(writeCtx, key)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing assignment")
		}
		s.metrics.RecordAssignment("create", "conflict")
		return &AssignResult{Existing: existing}, nil
	}
	s.metrics.RecordAssignment("create", "error")
	s.logger.Warn("assignment create exhausted retries", zap.String("key", key.String()), zap.Int("attempts", createAttempts))
	return nil, appErrors.Clone(appErrors.ErrRetryLater, "assignment changed repeatedly, retry")
}

// Replace overwrites the assignee of assignmentID. The id is kept and no
// history of the previous assignee remains.
func (s *AssignmentService) Replace(ctx context.Context, assignmentID, userID string) (*models.Assignment, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user_id is required")
	}
	unlock, err := s.locks.Lock(ctx, "id:"+assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "request cancelled before replace")
	}
	defer unlock()

	updated, err := s.repo.UpdateAssignee(context.WithoutCancel(ctx), assignmentID, userID, s.now())
	if err != nil {
		s.metrics.RecordAssignment("replace", "error")
		return nil, mapAssignmentLookup(err)
	}
	s.metrics.RecordAssignment("replace", "replaced")
	s.logger.Info("assignment replaced", zap.String("assignment_id", assignmentID), zap.String("user_id", userID))
	return updated, nil
}

// ReplaceIf overwrites the assignee only while expectedUserID still holds the
// assignment. On mismatch it returns the current row and no update.
func (s *AssignmentService) ReplaceIf(ctx context.Context, assignmentID, expectedUserID, userID string) (*models.Assignment, *models.Assignment, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "user_id is required")
	}
	unlock, err := s.locks.Lock(ctx, "id:"+assignmentID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "request cancelled before replace")
	}
	defer unlock()

	writeCtx := context.WithoutCancel(ctx)
	updated, err := s.repo.UpdateAssigneeIf(writeCtx, assignmentID, expectedUserID, userID, s.now())
	if err == nil {
		s.metrics.RecordAssignment("replace", "replaced")
		return updated, nil, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.metrics.RecordAssignment("replace", "error")
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace assignment")
	}
	current, err := s.repo.FindByID(writeCtx, assignmentID)
	if err != nil {
		return nil, nil, mapAssignmentLookup(err)
	}
	s.metrics.RecordAssignment("replace", "conflict")
	return nil, current, nil
}

// Get returns the assignment holding key.
func (s *AssignmentService) Get(ctx context.Context, key models.AssignmentKey) (*models.Assignment, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	assignment, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, mapAssignmentLookup(err)
	}
	return assignment, nil
}

// FindByID returns the assignment with id.
func (s *AssignmentService) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapAssignmentLookup(err)
	}
	return assignment, nil
}

// List returns assignments matching filter, labelled with their target path.
func (s *AssignmentService) List(ctx context.Context, filter models.AssignmentFilter) ([]dto.AssignmentView, error) {
	if filter.TargetKind != "" && !filter.TargetKind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown target_kind")
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	views := make([]dto.AssignmentView, 0, len(items))
	for _, item := range items {
		view := dto.AssignmentView{AssignmentDetail: item}
		if s.paths != nil {
			label, err := s.paths.DisplayPath(ctx, item.TargetID)
			if err != nil {
				s.logger.Debug("assignment target has no path", zap.String("target_id", item.TargetID), zap.Error(err))
			}
			view.TargetPath = label
		}
		views = append(views, view)
	}
	return views, nil
}

// Remove deletes an assignment.
func (s *AssignmentService) Remove(ctx context.Context, assignmentID string) error {
	unlock, err := s.locks.Lock(ctx, "id:"+assignmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "request cancelled before removal")
	}
	defer unlock()

	if err := s.repo.Delete(context.WithoutCancel(ctx), assignmentID); err != nil {
		return mapAssignmentLookup(err)
	}
	s.logger.Info("assignment removed", zap.String("assignment_id", assignmentID))
	return nil
}

func (s *AssignmentService) checkTarget(ctx context.Context, key models.AssignmentKey) error {
	if s.nodes == nil {
		return nil
	}
	node, err := s.nodes.FindNode(ctx, key.TargetID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNodeNotFound) {
			return appErrors.Clone(appErrors.ErrInvalidTarget, fmt.Sprintf("target %s does not exist", key.TargetID))
		}
		return err
	}
	if node.Kind != key.TargetKind {
		return appErrors.Clone(appErrors.ErrInvalidTarget, fmt.Sprintf("target %s is a %s, not a %s", key.TargetID, node.Kind, key.TargetKind))
	}
	return nil
}

func validateKey(key models.AssignmentKey) error {
	if !key.TargetKind.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown target_kind")
	}
	if !key.Role.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if strings.TrimSpace(key.TargetID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "target_id is required")
	}
	return nil
}

func mapAssignmentLookup(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "assignment lookup failed")
}
