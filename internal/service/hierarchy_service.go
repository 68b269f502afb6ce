package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/content-admin-api/internal/dto"
	"github.com/noah-isme/content-admin-api/internal/models"
	appErrors "github.com/noah-isme/content-admin-api/pkg/errors"
)

type hierarchyRepository interface {
	ListNodes(ctx context.Context) ([]models.HierarchyNode, error)
}

type assignmentLister interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error)
}

type pendingPageReader interface {
	PendingPageIDs(ctx context.Context) ([]string, error)
}

// HierarchyConfig tunes snapshot loading.
type HierarchyConfig struct {
	CacheTTL time.Duration
	MaxDepth int
}

// HierarchyService serves read-only tree queries from validated snapshots.
// Rows are shared through the Redis cache; each process keeps its last
// snapshot until CacheTTL elapses or Invalidate is called.
type HierarchyService struct {
	repo        hierarchyRepository
	assignments assignmentLister
	pending     pendingPageReader
	cache       *RowCache
	metrics     *MetricsService
	cfg         HierarchyConfig
	logger      *zap.Logger

	group   singleflight.Group
	gen     atomic.Uint64
	mu      sync.RWMutex
	current *HierarchySnapshot
	loaded  time.Time
	now     func() time.Time
}

// NewHierarchyService wires the hierarchy store.
func NewHierarchyService(
	repo hierarchyRepository,
	assignments assignmentLister,
	pending pendingPageReader,
	cache *RowCache,
	metrics *MetricsService,
	cfg HierarchyConfig,
	logger *zap.Logger,
) *HierarchyService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HierarchyService{
		repo:        repo,
		assignments: assignments,
		pending:     pending,
		cache:       cache,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Snapshot returns the current validated snapshot, rebuilding it when stale.
// Concurrent rebuilds collapse into one load.
func (s *HierarchyService) Snapshot(ctx context.Context) (*HierarchySnapshot, error) {
	s.mu.RLock()
	snap, loaded := s.current, s.loaded
	s.mu.RUnlock()
	if snap != nil && s.now().Sub(loaded) < s.cfg.CacheTTL {
		return snap, nil
	}

	v, err, _ := s.group.Do("snapshot", func() (interface{}, error) {
		return s.load(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.(*HierarchySnapshot), nil
}

// load builds a snapshot. A load that overlaps an Invalidate still answers its
// callers but neither caches its rows nor installs its snapshot.
func (s *HierarchyService) load(ctx context.Context) (*HierarchySnapshot, error) {
	gen := s.gen.Load()
	source := "cache"
	rows, hit := s.cache.Load(ctx)
	if !hit {
		source = "database"
		var err error
		rows, err = s.repo.ListNodes(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hierarchy")
		}
		if s.gen.Load() == gen {
			s.cache.Store(ctx, rows)
			// Invalidate may have dropped the key between the check and the store.
			if s.gen.Load() != gen {
				_ = s.cache.Drop(ctx)
			}
		}
	}

	snap, err := BuildSnapshot(rows, s.cfg.MaxDepth)
	if err != nil {
		s.logger.Error("hierarchy rows rejected", zap.String("source", source), zap.Error(err))
		if source == "cache" {
			_ = s.cache.Drop(ctx)
		}
		return nil, err
	}
	s.metrics.RecordSnapshotBuild(source)

	s.mu.Lock()
	if s.gen.Load() != gen {
		s.mu.Unlock()
		s.logger.Debug("hierarchy snapshot superseded by invalidation", zap.String("source", source))
		return snap, nil
	}
	s.current = snap
	s.loaded = s.now()
	s.mu.Unlock()
	s.logger.Debug("hierarchy snapshot built", zap.String("source", source), zap.String("version", snap.Version()), zap.Int("nodes", snap.Len()))
	return snap, nil
}

// Invalidate drops the cached rows and the in-process snapshot.
func (s *HierarchyService) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	s.gen.Add(1)
	s.current = nil
	s.mu.Unlock()
	s.group.Forget("snapshot")
	if err := s.cache.Drop(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate hierarchy cache")
	}
	return nil
}

// GetTree returns channels with their nested categories and pages.
func (s *HierarchyService) GetTree(ctx context.Context) ([]*dto.TreeNode, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Tree(nil), nil
}

// FindNode returns the node with id.
func (s *HierarchyService) FindNode(ctx context.Context, id string) (*models.HierarchyNode, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	node, ok := snap.Node(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNodeNotFound, "node "+id+" not found")
	}
	return &node, nil
}

// ResolvePath returns node names from the channel down to id.
func (s *HierarchyService) ResolvePath(ctx context.Context, id string) ([]string, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	path, err := snap.Path(id)
	if err != nil {
		if errors.Is(err, appErrors.ErrNodeNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNodeNotFound, "node "+id+" not found")
		}
		return nil, err
	}
	return path, nil
}

// GetHierarchyWithAssignments returns the tree annotated with live assignments
// and, on pages, whether the page image has a staged version. Both annotations
// are read from the database on every call.
func (s *HierarchyService) GetHierarchyWithAssignments(ctx context.Context) ([]*dto.TreeNode, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var (
		assignments []models.AssignmentDetail
		pendingIDs  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.assignments.List(gctx, models.AssignmentFilter{})
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
		}
		assignments = items
		return nil
	})
	g.Go(func() error {
		ids, err := s.pending.PendingPageIDs(gctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending pages")
		}
		pendingIDs = ids
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byTarget := make(map[string][]models.AssignmentDetail, len(assignments))
	for _, item := range assignments {
		key := string(item.TargetKind) + "|" + item.TargetID
		byTarget[key] = append(byTarget[key], item)
	}
	pending := make(map[string]struct{}, len(pendingIDs))
	for _, id := range pendingIDs {
		pending[id] = struct{}{}
	}

	return snap.Tree(func(node *dto.TreeNode) {
		node.Assignments = byTarget[string(node.Kind)+"|"+node.ID]
		if node.Kind == models.NodeKindPage {
			_, has := pending[node.ID]
			node.HasPending = &has
		}
	}), nil
}

// Ping confirms the hierarchy can be loaded.
func (s *HierarchyService) Ping(ctx context.Context) error {
	_, err := s.Snapshot(ctx)
	return err
}
