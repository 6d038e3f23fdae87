package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRepository reads and writes accounts.
type UserRepository struct {
	db  bun.IDB
	now func() time.Time
}

// NewUserRepository returns a repository backed by db.
func NewUserRepository(db bun.IDB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts u. A taken email returns ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = NormalizeEmail(u.Email)
	if u.Email == "" {
		return invalid("email is required")
	}
	if !u.Role.Valid() {
		return invalid(fmt.Sprintf("unknown role %q", u.Role))
	}
	u.CreatedAt = r.now().UTC()

	if _, err := r.db.NewInsert().Model(u).Exec(ctx); err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Get loads a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByEmail loads a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getBy(ctx, "email", NormalizeEmail(email))
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*User, error) {
	u := new(User)
	err := r.db.NewSelect().
		Model(u).
		Where("? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

// UpdatePasswordHash replaces the stored hash for id.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := r.db.NewUpdate().
		Model((*User)(nil)).
		Set("? = ?", bun.Ident("password_hash"), hash).
		Where("? = ?", bun.Ident("id"), id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return expectAffected(res)
}
