package models

import "time"

// NodeKind enumerates content hierarchy levels.
type NodeKind string

const (
	NodeKindChannel  NodeKind = "CHANNEL"
	NodeKindCategory NodeKind = "CATEGORY"
	NodeKindPage     NodeKind = "PAGE"
)

// Valid reports whether k is a known node kind.
func (k NodeKind) Valid() bool {
	switch k {
	case NodeKindChannel, NodeKindCategory, NodeKindPage:
		return true
	}
	return false
}

// HierarchyNode is one row of the content tree. Rows are owned by ingestion tooling.
type HierarchyNode struct {
	ID        string    `db:"id" json:"id"`
	Kind      NodeKind  `db:"kind" json:"kind"`
	Name      string    `db:"name" json:"name"`
	ParentID  *string   `db:"parent_id" json:"parent_id,omitempty"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
