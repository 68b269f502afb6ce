package service

import (
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"

	"github.com/noah-isme/content-admin-api/internal/dto"
	"github.com/noah-isme/content-admin-api/internal/models"
	appErrors "github.com/noah-isme/content-admin-api/pkg/errors"
)

// DefaultMaxDepth bounds parent chains when no limit is configured.
const DefaultMaxDepth = 32

// HierarchySnapshot is an immutable, validated view of the content tree.
// Callers receive copies and can never mutate the shared snapshot.
type HierarchySnapshot struct {
	version  string
	maxDepth int
	nodes    map[string]models.HierarchyNode
	children map[string][]string
	roots    []string
}

// BuildSnapshot validates rows and indexes them. Every node must chain up to a
// channel within maxDepth hops; pages cannot have children.
func BuildSnapshot(rows []models.HierarchyNode, maxDepth int) (*HierarchySnapshot, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	snap := &HierarchySnapshot{
		maxDepth: maxDepth,
		nodes:    make(map[string]models.HierarchyNode, len(rows)),
		children: make(map[string][]string),
	}

	for _, row := range rows {
		if row.ID == "" {
			return nil, invalidHierarchy("node with empty id")
		}
		if !row.Kind.Valid() {
			return nil, invalidHierarchy("node %s has unknown kind %q", row.ID, row.Kind)
		}
		if _, dup := snap.nodes[row.ID]; dup {
			return nil, invalidHierarchy("duplicate node id %s", row.ID)
		}
		isChannel := row.Kind == models.NodeKindChannel
		hasParent := row.ParentID != nil && *row.ParentID != ""
		if isChannel && hasParent {
			return nil, invalidHierarchy("channel %s must not have a parent", row.ID)
		}
		if !isChannel && !hasParent {
			return nil, invalidHierarchy("%s %s has no parent", row.Kind, row.ID)
		}
		if !hasParent {
			row.ParentID = nil
		}
		snap.nodes[row.ID] = row
	}

	for id, node := range snap.nodes {
		if node.ParentID == nil {
			snap.roots = append(snap.roots, id)
			continue
		}
		parent, ok := snap.nodes[*node.ParentID]
		if !ok {
			return nil, invalidHierarchy("node %s references missing parent %s", id, *node.ParentID)
		}
		if parent.Kind == models.NodeKindPage {
			return nil, invalidHierarchy("page %s cannot contain %s", parent.ID, id)
		}
		snap.children[parent.ID] = append(snap.children[parent.ID], id)
	}

	for id := range snap.nodes {
		if _, err := snap.chain(id); err != nil {
			return nil, err
		}
	}

	snap.sortIDs(snap.roots)
	for _, ids := range snap.children {
		snap.sortIDs(ids)
	}
	snap.version = fingerprint(snap)
	return snap, nil
}

func invalidHierarchy(format string, args ...interface{}) error {
	return appErrors.Clone(appErrors.ErrInvalidHierarchy, fmt.Sprintf("invalid hierarchy: "+format, args...))
}

// chain walks from id to its channel, returning ids root first.
func (s *HierarchySnapshot) chain(id string) ([]string, error) {
	node, ok := s.nodes[id]
	if !ok {
		return nil, appErrors.ErrNodeNotFound
	}
	ids := []string{node.ID}
	for node.ParentID != nil {
		if len(ids) > s.maxDepth {
			return nil, invalidHierarchy("node %s exceeds depth %d or is part of a cycle", id, s.maxDepth)
		}
		node = s.nodes[*node.ParentID]
		ids = append(ids, node.ID)
	}
	if node.Kind != models.NodeKindChannel {
		return nil, invalidHierarchy("node %s does not descend from a channel", id)
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids, nil
}

func (s *HierarchySnapshot) sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.nodes[ids[i]], s.nodes[ids[j]]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

func fingerprint(s *HierarchySnapshot) string {
	h := fnv.New64a()
	order := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		order = append(order, id)
	}
	sort.Strings(order)
	for _, id := range order {
		node := s.nodes[id]
		parent := ""
		if node.ParentID != nil {
			parent = *node.ParentID
		}
		for _, part := range []string{node.ID, string(node.Kind), node.Name, parent, strconv.Itoa(node.Position)} {
			_, _ = h.Write([]byte(part))
			_, _ = h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Version identifies the snapshot contents; identical rows give identical versions.
func (s *HierarchySnapshot) Version() string { return s.version }

// Len returns the number of nodes.
func (s *HierarchySnapshot) Len() int { return len(s.nodes) }

// Node returns a copy of the node with id.
func (s *HierarchySnapshot) Node(id string) (models.HierarchyNode, bool) {
	node, ok := s.nodes[id]
	return node, ok
}

// Path returns node names from the channel down to id.
func (s *HierarchySnapshot) Path(id string) ([]string, error) {
	ids, err := s.chain(id)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ids))
	for i, nodeID := range ids {
		names[i] = s.nodes[nodeID].Name
	}
	return names, nil
}

// Tree materialises a fresh tree of channels. decorate, when non-nil, is
// applied to every node before it is returned.
func (s *HierarchySnapshot) Tree(decorate func(*dto.TreeNode)) []*dto.TreeNode {
	views := make(map[string]*dto.TreeNode, len(s.nodes))
	for id, node := range s.nodes {
		views[id] = &dto.TreeNode{ID: node.ID, Kind: node.Kind, Name: node.Name, Position: node.Position}
	}
	for parentID, ids := range s.children {
		parent := views[parentID]
		parent.Children = make([]*dto.TreeNode, 0, len(ids))
		for _, id := range ids {
			parent.Children = append(parent.Children, views[id])
		}
	}
	if decorate != nil {
		for _, view := range views {
			decorate(view)
		}
	}
	roots := make([]*dto.TreeNode, 0, len(s.roots))
	for _, id := range s.roots {
		roots = append(roots, views[id])
	}
	return roots
}
