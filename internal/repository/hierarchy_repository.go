package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/content-admin-api/internal/models"
)

// HierarchyRepository reads content tree rows.
type HierarchyRepository struct {
	db *sqlx.DB
}

// NewHierarchyRepository constructs the repository.
func NewHierarchyRepository(db *sqlx.DB) *HierarchyRepository {
	return &HierarchyRepository{db: db}
}

// ListNodes returns every node of the content tree.
func (r *HierarchyRepository) ListNodes(ctx context.Context) ([]models.HierarchyNode, error) {
	const query = `SELECT id, kind, name, parent_id, position, created_at FROM content_nodes ORDER BY position ASC, name ASC, id ASC`
	var nodes []models.HierarchyNode
	if err := r.db.SelectContext(ctx, &nodes, query); err != nil {
		return nil, fmt.Errorf("list content nodes: %w", err)
	}
	return nodes, nil
}
