package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/content-admin-api/internal/models"
)

// UserRepository reads the user directory table.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID looks a user up ignoring case.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.DirectoryUser, error) {
	const query = `SELECT id, name, position FROM users WHERE LOWER(id) = LOWER($1) LIMIT 1`
	var user models.DirectoryUser
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get directory user: %w", err)
	}
	return &user, nil
}
