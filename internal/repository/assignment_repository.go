package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/content-admin-api/internal/models"
)

const assignmentColumns = `id, target_kind, target_id, role, assignee_user_id, assigned_at`

// AssignmentRepository persists manager assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// InsertIfAbsent inserts the assignment unless its (target, role) key is taken.
// It reports false without error when another row already holds the key.
func (r *AssignmentRepository) InsertIfAbsent(ctx context.Context, assignment *models.Assignment) (bool, error) {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assignments (id, target_kind, target_id, role, assignee_user_id, assigned_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (target_kind, target_id, role) DO NOTHING
RETURNING id`
	var id string
	err := r.db.GetContext(ctx, &id, query,
		assignment.ID, assignment.TargetKind, assignment.TargetID, assignment.Role, assignment.AssigneeUserID, assignment.AssignedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert assignment: %w", err)
	}
	return true, nil
}

// FindByKey returns the assignment holding the key.
func (r *AssignmentRepository) FindByKey(ctx context.Context, key models.AssignmentKey) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE target_kind = $1 AND target_id = $2 AND role = $3`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, key.TargetKind, key.TargetID, key.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get assignment by key: %w", err)
	}
	return &assignment, nil
}

// FindByID returns the assignment with id.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return &assignment, nil
}

// UpdateAssignee overwrites the assignee and timestamp, keeping the id.
func (r *AssignmentRepository) UpdateAssignee(ctx context.Context, id, userID string, at time.Time) (*models.Assignment, error) {
	query := `UPDATE assignments SET assignee_user_id = $2, assigned_at = $3 WHERE id = $1 RETURNING ` + assignmentColumns
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id, userID, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("update assignment: %w", err)
	}
	return &assignment, nil
}

// UpdateAssigneeIf overwrites the assignee only while expectedUserID still holds
// the assignment. sql.ErrNoRows covers both a missing id and a mismatch.
func (r *AssignmentRepository) UpdateAssigneeIf(ctx context.Context, id, expectedUserID, userID string, at time.Time) (*models.Assignment, error) {
	query := `UPDATE assignments SET assignee_user_id = $3, assigned_at = $4 WHERE id = $1 AND assignee_user_id = $2 RETURNING ` + assignmentColumns
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id, expectedUserID, userID, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("conditional update assignment: %w", err)
	}
	return &assignment, nil
}

// List returns assignments matching filter joined with assignee names.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, error) {
	base := `SELECT a.id, a.target_kind, a.target_id, a.role, a.assignee_user_id, a.assigned_at,
       u.name AS assignee_name, u.position AS assignee_position
FROM assignments a
LEFT JOIN users u ON u.id = a.assignee_user_id`
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.TargetKind != "" {
		args = append(args, filter.TargetKind)
		conditions = append(conditions, fmt.Sprintf("a.target_kind = $%d", len(args)))
	}
	if filter.TargetID != "" {
		args = append(args, filter.TargetID)
		conditions = append(conditions, fmt.Sprintf("a.target_id = $%d", len(args)))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		conditions = append(conditions, fmt.Sprintf("a.role = $%d", len(args)))
	}
	if filter.AssigneeUserID != "" {
		args = append(args, filter.AssigneeUserID)
		conditions = append(conditions, fmt.Sprintf("a.assignee_user_id = $%d", len(args)))
	}
	query := fmt.Sprintf("%s WHERE %s ORDER BY a.target_kind ASC, a.target_id ASC, a.role ASC", base, strings.Join(conditions, " AND "))

	var items []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return items, nil
}

// Delete removes an assignment.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM assignments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
