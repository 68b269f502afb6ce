package service

import (
	"context"
	"errors"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/noah-isme/content-admin-api/internal/dto"
	appErrors "github.com/noah-isme/content-admin-api/pkg/errors"
)

// PathSeparator joins display path segments.
const PathSeparator = "/"

type snapshotSource interface {
	Snapshot(ctx context.Context) (*HierarchySnapshot, error)
}

// PathResolver renders human readable node paths. Results are memoised per
// snapshot version, so a reloaded tree never serves a stale label.
type PathResolver struct {
	source snapshotSource
	memo   *gocache.Cache
}

// NewPathResolver builds a resolver whose memo entries live for ttl.
func NewPathResolver(source snapshotSource, ttl time.Duration) *PathResolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PathResolver{source: source, memo: gocache.New(ttl, 2*ttl)}
}

// DisplayPath returns the node's path joined with PathSeparator.
func (r *PathResolver) DisplayPath(ctx context.Context, nodeID string) (string, error) {
	path, err := r.Resolve(ctx, nodeID)
	if err != nil {
		return "", err
	}
	return path.Display, nil
}

// Resolve returns both the segments and the joined label of a node path.
func (r *PathResolver) Resolve(ctx context.Context, nodeID string) (*dto.NodePath, error) {
	snap, err := r.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	key := snap.Version() + ":" + nodeID
	if cached, ok := r.memo.Get(key); ok {
		return copyPath(cached.(dto.NodePath)), nil
	}

	segments, err := snap.Path(nodeID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNodeNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNodeNotFound, "node "+nodeID+" not found")
		}
		return nil, err
	}
	path := dto.NodePath{NodeID: nodeID, Segments: segments, Display: strings.Join(segments, PathSeparator)}
	r.memo.Set(key, path, gocache.DefaultExpiration)
	return copyPath(path), nil
}

func copyPath(p dto.NodePath) *dto.NodePath {
	p.Segments = append([]string(nil), p.Segments...)
	return &p
}

// Len reports memoised entries.
func (r *PathResolver) Len() int {
	return r.memo.ItemCount()
}
