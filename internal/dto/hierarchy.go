package dto

import "github.com/noah-isme/content-admin-api/internal/models"

// TreeNode is one node of the rendered hierarchy with its children inlined.
type TreeNode struct {
	ID          string                    `json:"id"`
	Kind        models.NodeKind           `json:"kind"`
	Name        string                    `json:"name"`
	Position    int                       `json:"position"`
	Children    []*TreeNode               `json:"children,omitempty"`
	Assignments []models.AssignmentDetail `json:"assignments,omitempty"`
	HasPending  *bool                     `json:"has_pending,omitempty"`
}

// NodePath describes where a node sits in the tree.
type NodePath struct {
	NodeID   string   `json:"node_id"`
	Segments []string `json:"segments"`
	Display  string   `json:"display"`
}
