package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/content-admin-api/internal/models"
)

var artifactCols = []string{"id", "owner_page_id", "kind", "filename", "file_extension", "active_blob_ref", "pending_blob_ref",
	"has_pending", "pending_size", "pending_uploaded_by", "pending_uploaded_at", "updated_at"}

func TestArtifactRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewArtifactRepository(db)

	now := time.Now()
	mock.ExpectQuery("FROM artifacts WHERE id = \\$1").
		WithArgs("art-1").
		WillReturnRows(sqlmock.NewRows(artifactCols).
			AddRow("art-1", "page-1", "PAGE_IMAGE", "cover", ".png", "blobs/a", "blobs/b", true, int64(10), "op", now, now))

	artifact, err := repo.FindByID(context.Background(), "art-1")
	require.NoError(t, err)
	assert.Equal(t, models.ArtifactStateStaged, artifact.State())
	assert.Equal(t, "blobs/b", *artifact.PendingBlobRef)

	mock.ExpectQuery("FROM artifacts WHERE id = \\$1").WithArgs("missing").WillReturnRows(sqlmock.NewRows(artifactCols))
	_, err = repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactRepositorySetPendingReturnsPrevious(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewArtifactRepository(db)

	mock.ExpectQuery("UPDATE artifacts a\\s+SET pending_blob_ref = \\$2, has_pending = TRUE").
		WithArgs("art-1", "artifacts/art-1/pending/new.png", int64(42), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"pending_blob_ref"}).AddRow("artifacts/art-1/pending/old.png"))

	uploader := "op"
	prev, err := repo.SetPending(context.Background(), StagePendingParams{
		ArtifactID: "art-1",
		BlobRef:    "artifacts/art-1/pending/new.png",
		Size:       42,
		UploadedBy: &uploader,
		UploadedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "artifacts/art-1/pending/old.png", *prev)

	mock.ExpectQuery("UPDATE artifacts a").
		WillReturnRows(sqlmock.NewRows([]string{"pending_blob_ref"}).AddRow(nil))
	prev, err = repo.SetPending(context.Background(), StagePendingParams{ArtifactID: "art-1", BlobRef: "x"})
	require.NoError(t, err)
	assert.Nil(t, prev)

	mock.ExpectQuery("UPDATE artifacts a").WillReturnRows(sqlmock.NewRows([]string{"pending_blob_ref"}))
	_, err = repo.SetPending(context.Background(), StagePendingParams{ArtifactID: "missing", BlobRef: "x"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactRepositoryPromoteArchivesActive(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewArtifactRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT active_blob_ref FROM artifacts WHERE id = \\$1 AND has_pending AND pending_blob_ref = \\$2 FOR UPDATE").
		WithArgs("art-1", "blobs/pending").
		WillReturnRows(sqlmock.NewRows([]string{"active_blob_ref"}).AddRow("blobs/active"))
	mock.ExpectExec("INSERT INTO artifact_archives").
		WithArgs(sqlmock.AnyArg(), "art-1", "blobs/active", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("UPDATE artifacts\\s+SET active_blob_ref = pending_blob_ref").
		WithArgs("art-1", "blobs/pending", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(artifactCols).
			AddRow("art-1", "page-1", "PAGE_IMAGE", "cover", ".png", "blobs/pending", nil, false, nil, nil, nil, now))
	mock.ExpectCommit()

	approver := "lead"
	promoted, err := repo.Promote(context.Background(), "art-1", "blobs/pending", &approver, now)
	require.NoError(t, err)
	assert.Equal(t, "blobs/pending", *promoted.ActiveBlobRef)
	assert.Nil(t, promoted.PendingBlobRef)
	assert.False(t, promoted.HasPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactRepositoryPromoteWithoutActiveSkipsArchive(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewArtifactRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT active_blob_ref FROM artifacts").
		WillReturnRows(sqlmock.NewRows([]string{"active_blob_ref"}).AddRow(nil))
	mock.ExpectQuery("UPDATE artifacts\\s+SET active_blob_ref = pending_blob_ref").
		WillReturnRows(sqlmock.NewRows(artifactCols).
			AddRow("art-1", "page-1", "ADDITIONAL", "doc", ".pdf", "blobs/pending", nil, false, nil, nil, nil, now))
	mock.ExpectCommit()

	_, err := repo.Promote(context.Background(), "art-1", "blobs/pending", nil, now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactRepositoryPromoteStaleRollsBack(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewArtifactRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT active_blob_ref FROM artifacts").
		WillReturnRows(sqlmock.NewRows([]string{"active_blob_ref"}))
	mock.ExpectRollback()

	_, err := repo.Promote(context.Background(), "art-1", "blobs/old", nil, time.Now())
	assert.ErrorIs(t, err, ErrPendingChanged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactRepositoryPromoteArchiveFailureRollsBack(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewArtifactRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT active_blob_ref FROM artifacts").
		WillReturnRows(sqlmock.NewRows([]string{"active_blob_ref"}).AddRow("blobs/active"))
	mock.ExpectExec("INSERT INTO artifact_archives").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.Promote(context.Background(), "art-1", "blobs/pending", nil, time.Now())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrPendingChanged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactRepositoryListingQueries(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewArtifactRepository(db)
	now := time.Now()

	mock.ExpectQuery("FROM artifacts WHERE owner_page_id = \\$1").
		WithArgs("page-1").
		WillReturnRows(sqlmock.NewRows(artifactCols).
			AddRow("art-1", "page-1", "PAGE_IMAGE", "cover", ".png", "blobs/a", nil, false, nil, nil, nil, now).
			AddRow("art-2", "page-1", "ADDITIONAL", "guide", ".pdf", nil, nil, false, nil, nil, nil, now))
	items, err := repo.ListByPage(context.Background(), "page-1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Nil(t, items[1].ActiveBlobRef)

	mock.ExpectQuery("SELECT DISTINCT owner_page_id FROM artifacts").
		WillReturnRows(sqlmock.NewRows([]string{"owner_page_id"}).AddRow("page-1"))
	ids, err := repo.PendingPageIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"page-1"}, ids)

	mock.ExpectQuery("FROM artifact_archives WHERE artifact_id = \\$1").
		WithArgs("art-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "artifact_id", "blob_ref", "archived_by", "archived_at"}).
			AddRow("arc-1", "art-1", "blobs/old", "lead", now))
	archives, err := repo.ListArchives(context.Background(), "art-1")
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Equal(t, "blobs/old", archives[0].BlobRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewArtifactRepository(db)
	now := time.Now()
	pending := "artifacts/art-9/pending/k.pdf"
	size := int64(12)

	mock.ExpectExec("INSERT INTO artifacts").
		WithArgs("art-9", "page-1", "ADDITIONAL", "guide.pdf", ".pdf", nil, pending, true, size, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.Insert(context.Background(), &models.Artifact{
		ID: "art-9", OwnerPageID: "page-1", Kind: models.ArtifactKindAdditional, Filename: "guide.pdf", FileExtension: ".pdf",
		PendingBlobRef: &pending, HasPending: true, PendingSize: &size, PendingUploadedAt: &now, UpdatedAt: now,
	})
	require.NoError(t, err)

	generated := &models.Artifact{OwnerPageID: "page-1", Kind: models.ArtifactKindAdditional, Filename: "a.pdf", FileExtension: ".pdf"}
	mock.ExpectExec("INSERT INTO artifacts").WillReturnError(errors.New("fk violation"))
	err = repo.Insert(context.Background(), generated)
	require.Error(t, err)
	assert.NotEmpty(t, generated.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactRepositoryDeleteAdditional(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewArtifactRepository(db)
	now := time.Now()

	mock.ExpectQuery("DELETE FROM artifacts WHERE id = \\$1 AND kind = 'ADDITIONAL' RETURNING").
		WithArgs("art-2").
		WillReturnRows(sqlmock.NewRows(artifactCols).
			AddRow("art-2", "page-1", "ADDITIONAL", "guide.pdf", ".pdf", "blobs/a", "blobs/b", true, int64(3), nil, now, now))
	deleted, err := repo.DeleteAdditional(context.Background(), "art-2")
	require.NoError(t, err)
	assert.Equal(t, "blobs/a", *deleted.ActiveBlobRef)
	assert.Equal(t, "blobs/b", *deleted.PendingBlobRef)

	mock.ExpectQuery("DELETE FROM artifacts").WithArgs("art-1").WillReturnRows(sqlmock.NewRows(artifactCols))
	_, err = repo.DeleteAdditional(context.Background(), "art-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
