package models

import "time"

// AssignmentRole is the responsibility a manager holds on a node.
type AssignmentRole string

const (
	AssignmentRoleSupervisor AssignmentRole = "SUPERVISOR"
	AssignmentRoleWorker     AssignmentRole = "WORKER"
)

// Valid reports whether r is a known role.
func (r AssignmentRole) Valid() bool {
	return r == AssignmentRoleSupervisor || r == AssignmentRoleWorker
}

// Assignment binds one user to one role on one hierarchy node.
type Assignment struct {
	ID             string         `db:"id" json:"id"`
	TargetKind     NodeKind       `db:"target_kind" json:"target_kind"`
	TargetID       string         `db:"target_id" json:"target_id"`
	Role           AssignmentRole `db:"role" json:"role"`
	AssigneeUserID string         `db:"assignee_user_id" json:"assignee_user_id"`
	AssignedAt     time.Time      `db:"assigned_at" json:"assigned_at"`
}

// Key returns the uniqueness key of the assignment.
func (a Assignment) Key() AssignmentKey {
	return AssignmentKey{TargetKind: a.TargetKind, TargetID: a.TargetID, Role: a.Role}
}

// AssignmentKey is the (target, role) tuple that admits at most one assignment.
type AssignmentKey struct {
	TargetKind NodeKind
	TargetID   string
	Role       AssignmentRole
}

func (k AssignmentKey) String() string {
	return string(k.TargetKind) + "|" + k.TargetID + "|" + string(k.Role)
}

// AssignmentDetail enriches an assignment with the assignee's directory entry.
type AssignmentDetail struct {
	Assignment
	AssigneeName     *string `db:"assignee_name" json:"assignee_name,omitempty"`
	AssigneePosition *string `db:"assignee_position" json:"assignee_position,omitempty"`
}

// AssignmentFilter narrows assignment listings. Empty fields are ignored.
type AssignmentFilter struct {
	TargetKind     NodeKind
	TargetID       string
	Role           AssignmentRole
	AssigneeUserID string
}
