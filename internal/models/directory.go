package models

// DirectoryUser is a raw row of the users table.
type DirectoryUser struct {
	ID       string  `db:"id" json:"id"`
	Name     string  `db:"name" json:"name"`
	Position *string `db:"position" json:"position,omitempty"`
}

// UserIdentity is the display identity shown in confirmation prompts.
// Placeholder is set when the directory could not be consulted.
type UserIdentity struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Position    string `json:"position"`
	Exists      bool   `json:"exists"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// ConflictDescriptor explains why an assignment was not created. It is never persisted.
type ConflictDescriptor struct {
	ExistingAssignmentID string       `json:"existing_assignment_id"`
	ExistingAssignment   Assignment   `json:"existing_assignment"`
	ExistingIdentity     UserIdentity `json:"existing_identity"`
	CandidateIdentity    UserIdentity `json:"candidate_identity"`
	TargetPath           string       `json:"target_path"`
}
