// Package store groups the repositories behind one handle and runs them in
// transactions.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	commentrepo "github.com/ovaphlow/pitchfork/service-task-tracker/internal/comment/repo"
	taskrepo "github.com/ovaphlow/pitchfork/service-task-tracker/internal/task/repo"
	userrepo "github.com/ovaphlow/pitchfork/service-task-tracker/internal/user/repo"
)

// Repos is a set of repositories sharing one executor (db or tx).
type Repos struct {
	Users    *userrepo.UserRepo
	Tasks    *taskrepo.TaskRepo
	Comments *commentrepo.CommentRepo
}

func newRepos(ext sqlx.ExtContext) Repos {
	return Repos{
		Users:    userrepo.NewUserRepo(ext),
		Tasks:    taskrepo.NewTaskRepo(ext),
		Comments: commentrepo.NewCommentRepo(ext),
	}
}

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store { return &Store{db: db} }

func (s *Store) DB() *sqlx.DB { return s.db }

// Repos returns repositories bound to the pool.
func (s *Store) Repos() Repos { return newRepos(s.db) }

// InTx runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(Repos) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(newRepos(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// EnsureSchema creates all tables in dependency order.
func (s *Store) EnsureSchema(ctx context.Context) error {
	r := s.Repos()
	if err := r.Users.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure users: %w", err)
	}
	if err := r.Tasks.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure tasks: %w", err)
	}
	if err := r.Comments.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure comments: %w", err)
	}
	return nil
}
