package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/splitkart/split-backend/internal/model"
)

// ErrUserNotFound is returned when no user row exists for the given
// identifier.
var ErrUserNotFound = errors.New("user not found")

// UserRepo reads the local projection of accounts managed by the
// external identity provider.  Order creation snapshots display names
// from here; nothing in this service ever writes credentials.
type UserRepo struct {
    db *sql.DB
}

// NewUserRepo returns a new UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// GetByID returns a single user or ErrUserNotFound.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
    const q = `SELECT id, email, display_name, role, is_active, created_at, updated_at
               FROM users WHERE id = ?`
    var u model.User
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &u.ID, &u.Email, &u.DisplayName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrUserNotFound
    }
    if err != nil {
        return nil, err
    }
    return &u, nil
}
