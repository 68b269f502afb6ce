package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/content-admin-api/internal/dto"
	"github.com/noah-isme/content-admin-api/internal/models"
	"github.com/noah-isme/content-admin-api/internal/repository"
	appErrors "github.com/noah-isme/content-admin-api/pkg/errors"
)

func findTreeNode(nodes []*dto.TreeNode, id string) *dto.TreeNode {
	for _, node := range nodes {
		if node.ID == id {
			return node
		}
		if found := findTreeNode(node.Children, id); found != nil {
			return found
		}
	}
	return nil
}

func TestHierarchyServiceCollapsesConcurrentLoads(t *testing.T) {
	repo := &hierarchyRepoStub{rows: sampleRows(), gate: make(chan struct{})}
	svc := NewHierarchyService(repo, newMemoryAssignments(), &pendingReaderStub{}, nil, nil, HierarchyConfig{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetTree(context.Background())
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(repo.gate)
	wg.Wait()

	assert.Equal(t, 1, repo.Calls())
	_, err := svc.GetTree(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Calls())
}

func TestHierarchyServiceReloadsAfterTTL(t *testing.T) {
	svc, repo := newTestHierarchy(sampleRows())
	now := time.Now()
	svc.now = func() time.Time { return now }

	_, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.Calls())
}

func TestHierarchyServiceUsesSharedCache(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRowCache(repository.NewCacheRepository(client, "content", nil), nil, time.Minute, nil)

	repo := &hierarchyRepoStub{rows: sampleRows()}
	first := NewHierarchyService(repo, newMemoryAssignments(), &pendingReaderStub{}, cache, nil, HierarchyConfig{}, nil)
	_, err := first.GetTree(context.Background())
	require.NoError(t, err)
	assert.True(t, srv.Exists("content:hierarchy:rows"))

	second := NewHierarchyService(repo, newMemoryAssignments(), &pendingReaderStub{}, cache, nil, HierarchyConfig{}, nil)
	path, err := second.ResolvePath(context.Background(), "page-42")
	require.NoError(t, err)
	assert.Equal(t, []string{"News", "Sports", "Scores"}, path)
	assert.Equal(t, 1, repo.Calls())

	require.NoError(t, second.Invalidate(context.Background()))
	assert.False(t, srv.Exists("content:hierarchy:rows"))
	_, err = second.GetTree(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.Calls())
}

// stallingRepo copies its rows, reports the read and then waits for release
// before returning them, leaving a load in flight.
type stallingRepo struct {
	mu      sync.Mutex
	rows    []models.HierarchyNode
	read    chan struct{}
	release chan struct{}
	stalled bool
}

func (r *stallingRepo) ListNodes(ctx context.Context) ([]models.HierarchyNode, error) {
	r.mu.Lock()
	rows := append([]models.HierarchyNode(nil), r.rows...)
	stall := !r.stalled
	r.stalled = true
	r.mu.Unlock()
	if stall {
		close(r.read)
		<-r.release
	}
	return rows, nil
}

func (r *stallingRepo) add(node models.HierarchyNode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, node)
}

func TestHierarchyServiceInvalidateDuringLoad(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRowCache(repository.NewCacheRepository(client, "content", nil), nil, time.Minute, nil)

	repo := &stallingRepo{rows: sampleRows(), read: make(chan struct{}), release: make(chan struct{})}
	svc := NewHierarchyService(repo, newMemoryAssignments(), &pendingReaderStub{}, cache, nil, HierarchyConfig{}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.GetTree(context.Background())
		done <- err
	}()
	<-repo.read

	repo.add(models.HierarchyNode{ID: "page-new", Kind: models.NodeKindPage, Name: "Fresh", ParentID: strPtr("cat-world")})
	require.NoError(t, svc.Invalidate(context.Background()))
	close(repo.release)
	require.NoError(t, <-done)

	assert.False(t, srv.Exists("content:hierarchy:rows"), "stale rows must not be cached")
	node, err := svc.FindNode(context.Background(), "page-new")
	require.NoError(t, err)
	assert.Equal(t, "Fresh", node.Name)
}

func TestHierarchyServiceRejectsInvalidRows(t *testing.T) {
	rows := append(sampleRows(), models.HierarchyNode{ID: "bad", Kind: models.NodeKindPage, Name: "Bad", ParentID: strPtr("page-42")})
	svc, _ := newTestHierarchy(rows)

	_, err := svc.GetTree(context.Background())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidHierarchy.Code))
}

func TestHierarchyServiceWrapsLoadFailure(t *testing.T) {
	svc, repo := newTestHierarchy(nil)
	repo.err = errBoom

	err := svc.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))
	assert.ErrorIs(t, err, errBoom)
}

func TestHierarchyServiceFindNode(t *testing.T) {
	svc, _ := newTestHierarchy(sampleRows())

	node, err := svc.FindNode(context.Background(), "cat-sports")
	require.NoError(t, err)
	assert.Equal(t, models.NodeKindCategory, node.Kind)

	_, err = svc.FindNode(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNodeNotFound)
	_, err = svc.ResolvePath(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNodeNotFound)
}

func TestGetHierarchyWithAssignments(t *testing.T) {
	assignments := newMemoryAssignments()
	_, err := assignments.InsertIfAbsent(context.Background(), &models.Assignment{
		TargetKind: models.NodeKindPage, TargetID: "page-42", Role: models.AssignmentRoleWorker, AssigneeUserID: "u1",
	})
	require.NoError(t, err)
	_, err = assignments.InsertIfAbsent(context.Background(), &models.Assignment{
		TargetKind: models.NodeKindChannel, TargetID: "ch-news", Role: models.AssignmentRoleSupervisor, AssigneeUserID: "u9",
	})
	require.NoError(t, err)

	repo := &hierarchyRepoStub{rows: sampleRows()}
	pending := &pendingReaderStub{ids: []string{"page-auth"}}
	svc := NewHierarchyService(repo, assignments, pending, nil, nil, HierarchyConfig{}, nil)

	tree, err := svc.GetHierarchyWithAssignments(context.Background())
	require.NoError(t, err)

	scores := findTreeNode(tree, "page-42")
	require.NotNil(t, scores)
	require.Len(t, scores.Assignments, 1)
	assert.Equal(t, "u1", scores.Assignments[0].AssigneeUserID)
	require.NotNil(t, scores.HasPending)
	assert.False(t, *scores.HasPending)

	auth := findTreeNode(tree, "page-auth")
	require.NotNil(t, auth.HasPending)
	assert.True(t, *auth.HasPending)

	news := findTreeNode(tree, "ch-news")
	require.Len(t, news.Assignments, 1)
	assert.Nil(t, news.HasPending)

	plain, err := svc.GetTree(context.Background())
	require.NoError(t, err)
	assert.Empty(t, findTreeNode(plain, "page-42").Assignments)
}

func TestGetHierarchyWithAssignmentsPropagatesFailures(t *testing.T) {
	repo := &hierarchyRepoStub{rows: sampleRows()}
	svc := NewHierarchyService(repo, newMemoryAssignments(), &pendingReaderStub{err: errBoom}, nil, nil, HierarchyConfig{}, nil)

	_, err := svc.GetHierarchyWithAssignments(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
}
