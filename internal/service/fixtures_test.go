package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/content-admin-api/internal/models"
	"github.com/noah-isme/content-admin-api/internal/repository"
	"github.com/noah-isme/content-admin-api/pkg/jobs"
	"github.com/noah-isme/content-admin-api/pkg/storage"
)

func strPtr(s string) *string { return &s }

// sampleRows builds News(channel) > Sports(category) > Scores(page) plus a
// second channel with a nested category.
func sampleRows() []models.HierarchyNode {
	return []models.HierarchyNode{
		{ID: "ch-news", Kind: models.NodeKindChannel, Name: "News"},
		{ID: "cat-sports", Kind: models.NodeKindCategory, Name: "Sports", ParentID: strPtr("ch-news"), Position: 1},
		{ID: "cat-world", Kind: models.NodeKindCategory, Name: "World", ParentID: strPtr("ch-news"), Position: 0},
		{ID: "page-42", Kind: models.NodeKindPage, Name: "Scores", ParentID: strPtr("cat-sports")},
		{ID: "ch-docs", Kind: models.NodeKindChannel, Name: "Docs", Position: 1},
		{ID: "cat-api", Kind: models.NodeKindCategory, Name: "API", ParentID: strPtr("ch-docs")},
		{ID: "cat-v1", Kind: models.NodeKindCategory, Name: "v1", ParentID: strPtr("cat-api")},
		{ID: "page-auth", Kind: models.NodeKindPage, Name: "Auth", ParentID: strPtr("cat-v1")},
	}
}

type hierarchyRepoStub struct {
	mu    sync.Mutex
	rows  []models.HierarchyNode
	err   error
	calls int
	gate  chan struct{}
}

func (s *hierarchyRepoStub) ListNodes(ctx context.Context) ([]models.HierarchyNode, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.HierarchyNode(nil), s.rows...), nil
}

func (s *hierarchyRepoStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type pendingReaderStub struct {
	ids []string
	err error
}

func (s *pendingReaderStub) PendingPageIDs(ctx context.Context) ([]string, error) {
	return s.ids, s.err
}

func newTestHierarchy(rows []models.HierarchyNode) (*HierarchyService, *hierarchyRepoStub) {
	repo := &hierarchyRepoStub{rows: rows}
	svc := NewHierarchyService(repo, newMemoryAssignments(), &pendingReaderStub{}, nil, nil, HierarchyConfig{CacheTTL: time.Minute}, nil)
	return svc, repo
}

// memoryAssignments mimics the unique (target_kind, target_id, role) index.
type memoryAssignments struct {
	mu      sync.Mutex
	byID    map[string]models.Assignment
	byKey   map[models.AssignmentKey]string
	failErr error
}

func newMemoryAssignments() *memoryAssignments {
	return &memoryAssignments{byID: map[string]models.Assignment{}, byKey: map[models.AssignmentKey]string{}}
}

func (m *memoryAssignments) InsertIfAbsent(ctx context.Context, a *models.Assignment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return false, m.failErr
	}
	if _, taken := m.byKey[a.Key()]; taken {
		return false, nil
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.byID[a.ID] = *a
	m.byKey[a.Key()] = a.ID
	return true, nil
}

func (m *memoryAssignments) FindByKey(ctx context.Context, key models.AssignmentKey) (*models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	a := m.byID[id]
	return &a, nil
}

func (m *memoryAssignments) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (m *memoryAssignments) UpdateAssignee(ctx context.Context, id, userID string, at time.Time) (*models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	a.AssigneeUserID = userID
	a.AssignedAt = at
	m.byID[id] = a
	return &a, nil
}

func (m *memoryAssignments) UpdateAssigneeIf(ctx context.Context, id, expected, userID string, at time.Time) (*models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok || a.AssigneeUserID != expected {
		return nil, sql.ErrNoRows
	}
	a.AssigneeUserID = userID
	a.AssignedAt = at
	m.byID[id] = a
	return &a, nil
}

func (m *memoryAssignments) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AssignmentDetail
	for _, a := range m.byID {
		if filter.TargetKind != "" && a.TargetKind != filter.TargetKind {
			continue
		}
		if filter.TargetID != "" && a.TargetID != filter.TargetID {
			continue
		}
		if filter.Role != "" && a.Role != filter.Role {
			continue
		}
		if filter.AssigneeUserID != "" && a.AssigneeUserID != filter.AssigneeUserID {
			continue
		}
		out = append(out, models.AssignmentDetail{Assignment: a})
	}
	return out, nil
}

func (m *memoryAssignments) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	delete(m.byID, id)
	delete(m.byKey, a.Key())
	return nil
}

func (m *memoryAssignments) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// memoryArtifacts applies the same guarded updates as the SQL repository.
// Writes refuse a cancelled context the way a database driver does.
// landErr fails a write only after applying it, as when a commit succeeds
// but its acknowledgement is lost.
type memoryArtifacts struct {
	mu        sync.Mutex
	items     map[string]models.Artifact
	archives  []models.ArtifactArchive
	setErr    error
	insertErr error
	landErr   error
}

func newMemoryArtifacts(items ...models.Artifact) *memoryArtifacts {
	m := &memoryArtifacts{items: map[string]models.Artifact{}}
	for _, a := range items {
		m.items[a.ID] = a
	}
	return m
}

func (m *memoryArtifacts) FindByID(ctx context.Context, id string) (*models.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (m *memoryArtifacts) ListByPage(ctx context.Context, pageID string) ([]models.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Artifact
	for _, a := range m.items {
		if a.OwnerPageID == pageID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryArtifacts) SetPending(ctx context.Context, p repository.StagePendingParams) (*string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return nil, m.setErr
	}
	a, ok := m.items[p.ArtifactID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	prev := a.PendingBlobRef
	ref := p.BlobRef
	size := p.Size
	at := p.UploadedAt
	a.PendingBlobRef = &ref
	a.HasPending = true
	a.PendingSize = &size
	a.PendingUploadedBy = p.UploadedBy
	a.PendingUploadedAt = &at
	m.items[p.ArtifactID] = a
	if m.landErr != nil {
		return nil, m.landErr
	}
	return prev, nil
}

func (m *memoryArtifacts) Promote(ctx context.Context, id, expected string, by *string, at time.Time) (*models.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok || !a.HasPending || a.PendingBlobRef == nil || *a.PendingBlobRef != expected {
		return nil, repository.ErrPendingChanged
	}
	if a.ActiveBlobRef != nil {
		m.archives = append(m.archives, models.ArtifactArchive{ID: uuid.NewString(), ArtifactID: id, BlobRef: *a.ActiveBlobRef, ArchivedBy: by, ArchivedAt: at})
	}
	active := expected
	a.ActiveBlobRef = &active
	a.PendingBlobRef = nil
	a.HasPending = false
	a.PendingSize = nil
	a.PendingUploadedBy = nil
	a.PendingUploadedAt = nil
	a.UpdatedAt = at
	m.items[id] = a
	return &a, nil
}

func (m *memoryArtifacts) ListArchives(ctx context.Context, id string) ([]models.ArtifactArchive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ArtifactArchive
	for _, arc := range m.archives {
		if arc.ArtifactID == id {
			out = append(out, arc)
		}
	}
	return out, nil
}

func (m *memoryArtifacts) Insert(ctx context.Context, a *models.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.items[a.ID] = *a
	if m.landErr != nil {
		return m.landErr
	}
	return nil
}

func (m *memoryArtifacts) DeleteAdditional(ctx context.Context, id string) (*models.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok || a.Kind != models.ArtifactKindAdditional {
		return nil, sql.ErrNoRows
	}
	delete(m.items, id)
	kept := m.archives[:0]
	for _, arc := range m.archives {
		if arc.ArtifactID != id {
			kept = append(kept, arc)
		}
	}
	m.archives = kept
	return &a, nil
}

func (m *memoryArtifacts) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[id]
	return ok
}

func (m *memoryArtifacts) get(id string) models.Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

// memoryBlobs is an in-memory blob store with switchable failures.
type memoryBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	existsErr error
	deleted   []string
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{objects: map[string][]byte{}}
}

func (b *memoryBlobs) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if b.putErr != nil {
		return b.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = buf.Bytes()
	return nil
}

func (b *memoryBlobs) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memoryBlobs) Exists(ctx context.Context, key string) (bool, error) {
	if b.existsErr != nil {
		return false, b.existsErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *memoryBlobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *memoryBlobs) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *memoryBlobs) remove(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
}

// queueRecorder captures cleanup jobs synchronously.
type queueRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (q *queueRecorder) Enqueue(job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.keys = append(q.keys, job.Key)
	return nil
}

func (q *queueRecorder) Keys() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.keys...)
}

type directoryStub struct {
	mu         sync.Mutex
	identities map[string]models.UserIdentity
	err        error
	block      bool
	calls      int
}

func (d *directoryStub) GetUserIdentity(ctx context.Context, userID string) (*models.UserIdentity, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d.err != nil {
		return nil, d.err
	}
	if id, ok := d.identities[userID]; ok {
		return &id, nil
	}
	return &models.UserIdentity{UserID: userID, Position: DefaultUnknownPosition}, nil
}

var errBoom = errors.New("boom")
