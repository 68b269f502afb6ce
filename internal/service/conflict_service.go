package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/content-admin-api/internal/dto"
	"github.com/noah-isme/content-admin-api/internal/models"
	appErrors "github.com/noah-isme/content-admin-api/pkg/errors"
)

type assignmentRegistry interface {
	Create(ctx context.Context, key models.AssignmentKey, userID string) (*AssignResult, error)
	Replace(ctx context.Context, assignmentID, userID string) (*models.Assignment, error)
	ReplaceIf(ctx context.Context, assignmentID, expectedUserID, userID string) (*models.Assignment, *models.Assignment, error)
}

type identityLookup interface {
	GetUserIdentity(ctx context.Context, userID string) (*models.UserIdentity, error)
}

// ConflictConfig bounds the enrichment lookups.
type ConflictConfig struct {
	DirectoryTimeout time.Duration
	UnknownPosition  string
}

// ConflictService runs the detect, confirm, overwrite protocol over the
// registry. Request never overwrites; only Confirm with confirmed=true does.
type ConflictService struct {
	registry  assignmentRegistry
	directory identityLookup
	paths     pathLabeler
	validator *validator.Validate
	metrics   *MetricsService
	cfg       ConflictConfig
	logger    *zap.Logger
}

// NewConflictService wires the protocol.
func NewConflictService(
	registry assignmentRegistry,
	directory identityLookup,
	paths pathLabeler,
	validate *validator.Validate,
	metrics *MetricsService,
	cfg ConflictConfig,
	logger *zap.Logger,
) *ConflictService {
	if validate == nil {
		validate = validator.New()
	}
	if cfg.DirectoryTimeout <= 0 {
		cfg.DirectoryTimeout = 2 * time.Second
	}
	if cfg.UnknownPosition == "" {
		cfg.UnknownPosition = DefaultUnknownPosition
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{
		registry:  registry,
		directory: directory,
		paths:     paths,
		validator: validate,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// Request attempts the assignment. A taken key yields a CONFLICT outcome
// describing both people so the caller can ask for confirmation.
func (s *ConflictService) Request(ctx context.Context, req dto.CreateAssignmentRequest) (*dto.AssignmentOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	key := models.AssignmentKey{TargetKind: req.TargetKind, TargetID: req.TargetID, Role: req.Role}
	result, err := s.registry.Create(ctx, key, req.UserID)
	if err != nil {
		return nil, err
	}
	if !result.Conflict() {
		return &dto.AssignmentOutcome{Status: dto.OutcomeCreated, Assignment: result.Created}, nil
	}
	descriptor := s.describe(ctx, *result.Existing, req.UserID)
	return &dto.AssignmentOutcome{Status: dto.OutcomeConflict, Conflict: descriptor}, nil
}

// Confirm replaces the assignee after explicit confirmation. When
// ExpectedUserID no longer matches the holder a fresh conflict is returned.
func (s *ConflictService) Confirm(ctx context.Context, assignmentID string, req dto.ReplaceAssignmentRequest) (*dto.AssignmentOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid replace payload")
	}
	if !req.Confirmed {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "replacing an assignee requires confirmed=true")
	}

	if req.ExpectedUserID == "" {
		updated, err := s.registry.Replace(ctx, assignmentID, req.UserID)
		if err != nil {
			return nil, err
		}
		return &dto.AssignmentOutcome{Status: dto.OutcomeReplaced, Assignment: updated}, nil
	}

	updated, current, err := s.registry.ReplaceIf(ctx, assignmentID, req.ExpectedUserID, req.UserID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		s.logger.Info("confirmation is stale", zap.String("assignment_id", assignmentID),
			zap.String("expected_user_id", req.ExpectedUserID), zap.String("current_user_id", current.AssigneeUserID))
		return &dto.AssignmentOutcome{Status: dto.OutcomeConflict, Conflict: s.describe(ctx, *current, req.UserID)}, nil
	}
	return &dto.AssignmentOutcome{Status: dto.OutcomeReplaced, Assignment: updated}, nil
}

// describe builds the confirmation prompt. Lookups run concurrently under
// DirectoryTimeout and fall back to placeholders instead of failing.
func (s *ConflictService) describe(ctx context.Context, existing models.Assignment, candidateUserID string) *models.ConflictDescriptor {
	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.DirectoryTimeout)
	defer cancel()

	desc := &models.ConflictDescriptor{
		ExistingAssignmentID: existing.ID,
		ExistingAssignment:   existing,
		TargetPath:           existing.TargetID,
	}
	var g errgroup.Group
	g.Go(func() error {
		desc.ExistingIdentity = s.identity(lookupCtx, existing.AssigneeUserID)
		return nil
	})
	g.Go(func() error {
		desc.CandidateIdentity = s.identity(lookupCtx, candidateUserID)
		return nil
	})
	g.Go(func() error {
		if s.paths == nil {
			return nil
		}
		label, err := s.paths.DisplayPath(lookupCtx, existing.TargetID)
		if err != nil {
			s.logger.Warn("conflict target path unavailable", zap.String("target_id", existing.TargetID), zap.Error(err))
			return nil
		}
		desc.TargetPath = label
		return nil
	})
	_ = g.Wait()
	return desc
}

func (s *ConflictService) identity(ctx context.Context, userID string) models.UserIdentity {
	placeholder := models.UserIdentity{UserID: userID, Name: userID, Position: s.cfg.UnknownPosition, Placeholder: true}
	if s.directory == nil {
		s.metrics.RecordDirectoryLookup("placeholder")
		return placeholder
	}
	identity, err := s.directory.GetUserIdentity(ctx, userID)
	if err != nil || identity == nil {
		s.metrics.RecordDirectoryLookup("placeholder")
		s.logger.Warn("directory lookup degraded to placeholder", zap.String("user_id", userID), zap.Error(err))
		return placeholder
	}
	if !identity.Exists {
		s.metrics.RecordDirectoryLookup("unknown")
	} else {
		s.metrics.RecordDirectoryLookup("found")
	}
	return *identity
}
