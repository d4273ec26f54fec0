package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/user/entity"
)

// UserRepo provides data access for the users table using sqlx. It runs on
// either a *sqlx.DB or a *sqlx.Tx.
type UserRepo struct {
	db sqlx.ExtContext
}

func NewUserRepo(db sqlx.ExtContext) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// The DDL is portable between PostgreSQL and SQLite.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id BIGINT PRIMARY KEY,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'USER',
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP
)`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const userColumns = `id, first_name, last_name, email, password_hash, role, created_at, updated_at`

// Create inserts a new user row. u.ID and u.CreatedAt must be set by the caller.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	q := r.db.Rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID fetches a full user row.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	var u entity.User
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &u, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.UnknownEntity("User", id)
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

// GetByEmail returns a user matched by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	var u entity.User
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)
	if err := sqlx.GetContext(ctx, r.db, &u, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.KindUnknownEntity, "There is no User with email: %s", email)
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// Exists reports whether a user with id exists.
func (r *UserRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var n int
	q := r.db.Rebind(`SELECT COUNT(1) FROM users WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &n, q, id); err != nil {
		return false, fmt.Errorf("check user %d: %w", id, err)
	}
	return n > 0, nil
}

// List returns all users ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]entity.User, error) {
	var out []entity.User
	if err := sqlx.SelectContext(ctx, r.db, &out, `SELECT `+userColumns+` FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// Summary is the short form of a user embedded in other projections.
type Summary struct {
	ID        int64  `db:"id" json:"id"`
	FirstName string `db:"first_name" json:"firstName"`
	LastName  string `db:"last_name" json:"lastName"`
}

// Summaries returns the summaries of the given users keyed by id. Unknown ids
// are absent from the result.
func (r *UserRepo) Summaries(ctx context.Context, ids []int64) (map[int64]Summary, error) {
	out := make(map[int64]Summary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(`SELECT id, first_name, last_name FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build user summaries query: %w", err)
	}
	var rows []Summary
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("user summaries: %w", err)
	}
	for _, s := range rows {
		out[s.ID] = s
	}
	return out, nil
}

// Update replaces the mutable columns of a user.
func (r *UserRepo) Update(ctx context.Context, u *entity.User) error {
	q := r.db.Rebind(`UPDATE users SET first_name = ?, last_name = ?, email = ?, password_hash = ?, role = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Role, u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
	}
	return affectedOne(res, "User", u.ID)
}

// Delete removes a user together with the tasks it authored, the comments on
// those tasks and the comments it wrote. Executor links pointing at the user
// must be cleared beforehand.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	stmts := []string{
		`DELETE FROM comments WHERE task_id IN (SELECT id FROM tasks WHERE author_id = ?)`,
		`DELETE FROM comments WHERE author_id = ?`,
		`DELETE FROM tasks WHERE author_id = ?`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, r.db.Rebind(s), id); err != nil {
			return fmt.Errorf("delete user %d dependents: %w", id, err)
		}
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return affectedOne(res, "User", id)
}

func affectedOne(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.UnknownEntity(what, id)
	}
	return nil
}

// Now is the timestamp written by repositories: UTC at microsecond precision,
// which both PostgreSQL and SQLite round-trip exactly.
func Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
