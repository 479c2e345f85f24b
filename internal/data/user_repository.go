package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLUserRepository handles database operations for users.
type SQLUserRepository struct {
	db *sqlx.DB
}

// NewSQLUserRepository creates a new SQLUserRepository.
func NewSQLUserRepository(db *sqlx.DB) *SQLUserRepository {
	return &SQLUserRepository{db: db}
}

// CreateUser inserts a user and returns its ID. A taken username yields
// ErrDuplicate.
func (r *SQLUserRepository) CreateUser(ctx context.Context, user *User) (int64, error) {
	var id int64
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx,
			`INSERT INTO users (username, password_hash, created_at) VALUES (:username, :password_hash, :created_at)`, user)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("user '%s': %w", user.Username, ErrDuplicate)
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetUserByUsername finds a user by username, ignoring case.
func (r *SQLUserRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `SELECT id, username, password_hash, created_at FROM users WHERE username = ? COLLATE NOCASE`
		if err := tx.GetContext(ctx, &user, query, username); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to get user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
