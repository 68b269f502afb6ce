package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/noah-isme/content-admin-api/internal/models"
	appErrors "github.com/noah-isme/content-admin-api/pkg/errors"
)

// DefaultUnknownPosition labels users without a recorded position.
const DefaultUnknownPosition = "미지정"

type directoryRepository interface {
	FindByID(ctx context.Context, id string) (*models.DirectoryUser, error)
}

// DirectoryConfig controls position normalisation.
type DirectoryConfig struct {
	PositionPrefixes []string
	UnknownPosition  string
}

// DirectoryService resolves user identities from the users table.
type DirectoryService struct {
	users  directoryRepository
	cfg    DirectoryConfig
	logger *zap.Logger
}

// NewDirectoryService constructs the directory collaborator.
func NewDirectoryService(users directoryRepository, cfg DirectoryConfig, logger *zap.Logger) *DirectoryService {
	if cfg.UnknownPosition == "" {
		cfg.UnknownPosition = DefaultUnknownPosition
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{users: users, cfg: cfg, logger: logger}
}

// GetUserIdentity returns the display identity of userID. Unknown users come
// back with Exists=false and their id as Name; lookup failures are
// DirectoryUnavailable.
func (s *DirectoryService) GetUserIdentity(ctx context.Context, userID string) (*models.UserIdentity, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.UserIdentity{UserID: userID, Name: userID, Position: s.cfg.UnknownPosition}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDirectoryUnavailable.Code, appErrors.ErrDirectoryUnavailable.Status, "user directory lookup failed")
	}
	raw := ""
	if user.Position != nil {
		raw = *user.Position
	}
	return &models.UserIdentity{
		UserID:   user.ID,
		Name:     user.Name,
		Position: NormalizePosition(raw, s.cfg.PositionPrefixes, s.cfg.UnknownPosition),
		Exists:   true,
	}, nil
}

// NormalizePosition collapses whitespace and reduces a position title to a
// known rank prefix, or else its first token (split on space, '(' or '/').
func NormalizePosition(raw string, prefixes []string, unknown string) string {
	collapsed := strings.Join(strings.Fields(raw), " ")
	if collapsed == "" {
		return unknown
	}
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(collapsed, prefix) {
			return prefix
		}
	}
	if idx := strings.IndexFunc(collapsed, func(r rune) bool {
		return unicode.IsSpace(r) || r == '(' || r == '/'
	}); idx >= 0 {
		if idx == 0 {
			return unknown
		}
		return collapsed[:idx]
	}
	return collapsed
}
