package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/content-admin-api/internal/models"
)

var assignmentCols = []string{"id", "target_kind", "target_id", "role", "assignee_user_id", "assigned_at"}

func TestAssignmentRepositoryInsertIfAbsent(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery("(?s)INSERT INTO assignments.*ON CONFLICT \\(target_kind, target_id, role\\) DO NOTHING").
		WithArgs(sqlmock.AnyArg(), "PAGE", "page-42", "WORKER", "u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("as-1"))

	assignment := &models.Assignment{TargetKind: models.NodeKindPage, TargetID: "page-42", Role: models.AssignmentRoleWorker, AssigneeUserID: "u1"}
	inserted, err := repo.InsertIfAbsent(context.Background(), assignment)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, assignment.ID)
	assert.False(t, assignment.AssignedAt.IsZero())

	mock.ExpectQuery("INSERT INTO assignments").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	inserted, err = repo.InsertIfAbsent(context.Background(), &models.Assignment{TargetKind: models.NodeKindPage, TargetID: "page-42", Role: models.AssignmentRoleWorker, AssigneeUserID: "u2"})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryFindAndUpdate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM assignments WHERE target_kind = $1 AND target_id = $2 AND role = $3")).
		WithArgs("PAGE", "page-42", "WORKER").
		WillReturnRows(sqlmock.NewRows(assignmentCols).AddRow("as-1", "PAGE", "page-42", "WORKER", "u1", now))
	found, err := repo.FindByKey(context.Background(), models.AssignmentKey{TargetKind: models.NodeKindPage, TargetID: "page-42", Role: models.AssignmentRoleWorker})
	require.NoError(t, err)
	assert.Equal(t, "u1", found.AssigneeUserID)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE assignments SET assignee_user_id = $2, assigned_at = $3 WHERE id = $1 RETURNING")).
		WithArgs("as-1", "u2", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(assignmentCols).AddRow("as-1", "PAGE", "page-42", "WORKER", "u2", now))
	updated, err := repo.UpdateAssignee(context.Background(), "as-1", "u2", now)
	require.NoError(t, err)
	assert.Equal(t, "as-1", updated.ID)
	assert.Equal(t, "u2", updated.AssigneeUserID)

	mock.ExpectQuery("UPDATE assignments").WillReturnRows(sqlmock.NewRows(assignmentCols))
	_, err = repo.UpdateAssignee(context.Background(), "missing", "u2", now)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectQuery(regexp.QuoteMeta("FROM assignments WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(assignmentCols))
	_, err = repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryUpdateAssigneeIf(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND assignee_user_id = $2 RETURNING")).
		WithArgs("as-1", "u1", "u2", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(assignmentCols).AddRow("as-1", "PAGE", "page-42", "WORKER", "u2", now))
	updated, err := repo.UpdateAssigneeIf(context.Background(), "as-1", "u1", "u2", now)
	require.NoError(t, err)
	assert.Equal(t, "u2", updated.AssigneeUserID)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND assignee_user_id = $2 RETURNING")).
		WithArgs("as-1", "u1", "u3", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(assignmentCols))
	_, err = repo.UpdateAssigneeIf(context.Background(), "as-1", "u1", "u3", now)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryListBuildsFilter(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	cols := append(append([]string{}, assignmentCols...), "assignee_name", "assignee_position")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND a.target_kind = $1 AND a.role = $2 ORDER BY")).
		WithArgs("CATEGORY", "SUPERVISOR").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("as-1", "CATEGORY", "cat-1", "SUPERVISOR", "u1", time.Now(), "Kim", "책임"))

	items, err := repo.List(context.Background(), models.AssignmentFilter{TargetKind: models.NodeKindCategory, Role: models.AssignmentRoleSupervisor})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Kim", *items[0].AssigneeName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("DELETE FROM assignments").WithArgs("as-1").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "as-1"))

	mock.ExpectExec("DELETE FROM assignments").WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "missing"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
