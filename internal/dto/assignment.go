package dto

import "github.com/noah-isme/content-admin-api/internal/models"

// Assignment outcome statuses.
const (
	OutcomeCreated  = "CREATED"
	OutcomeReplaced = "REPLACED"
	OutcomeConflict = "CONFLICT"
)

// CreateAssignmentRequest asks for a new assignment on a node.
type CreateAssignmentRequest struct {
	TargetKind models.NodeKind       `json:"target_kind" validate:"required,oneof=CHANNEL CATEGORY PAGE"`
	TargetID   string                `json:"target_id" validate:"required,max=128"`
	Role       models.AssignmentRole `json:"role" validate:"required,oneof=SUPERVISOR WORKER"`
	UserID     string                `json:"user_id" validate:"required,max=128"`
}

// ReplaceAssignmentRequest overwrites the assignee after the caller confirmed the conflict.
// ExpectedUserID, when set, must still be the current assignee.
type ReplaceAssignmentRequest struct {
	UserID         string `json:"user_id" validate:"required,max=128"`
	Confirmed      bool   `json:"confirmed"`
	ExpectedUserID string `json:"expected_user_id,omitempty" validate:"omitempty,max=128"`
}

// AssignmentOutcome is the result of a create or confirmed replace.
type AssignmentOutcome struct {
	Status     string                     `json:"status"`
	Assignment *models.Assignment         `json:"assignment,omitempty"`
	Conflict   *models.ConflictDescriptor `json:"conflict,omitempty"`
}

// AssignmentView is a listing row labelled with its target path.
type AssignmentView struct {
	models.AssignmentDetail
	TargetPath string `json:"target_path"`
}
