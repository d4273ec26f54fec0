package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/comment/entity"
)

// CommentRepo provides data access for the comments table.
type CommentRepo struct {
	db sqlx.ExtContext
}

func NewCommentRepo(db sqlx.ExtContext) *CommentRepo { return &CommentRepo{db: db} }

func (r *CommentRepo) EnsureTable(ctx context.Context) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS comments (
  id BIGINT PRIMARY KEY,
  task_id BIGINT NOT NULL REFERENCES tasks(id),
  author_id BIGINT NOT NULL REFERENCES users(id),
  content TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP
)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_task ON comments(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_author ON comments(author_id)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

const commentColumns = `id, task_id, author_id, content, created_at, updated_at`

func (r *CommentRepo) Create(ctx context.Context, c *entity.Comment) error {
	q := r.db.Rebind(`INSERT INTO comments (` + commentColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, q, c.ID, c.TaskID, c.AuthorID, c.Content, c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *CommentRepo) GetByID(ctx context.Context, id int64) (*entity.Comment, error) {
	var c entity.Comment
	q := r.db.Rebind(`SELECT ` + commentColumns + ` FROM comments WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &c, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.UnknownEntity("Comment", id)
		}
		return nil, fmt.Errorf("get comment %d: %w", id, err)
	}
	return &c, nil
}

// UpdateContent replaces the comment body and stamps updated_at.
func (r *CommentRepo) UpdateContent(ctx context.Context, id int64, content string, at time.Time) error {
	q := r.db.Rebind(`UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, content, at, id)
	if err != nil {
		return fmt.Errorf("update comment %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.UnknownEntity("Comment", id)
	}
	return nil
}

func (r *CommentRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM comments WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete comment %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.UnknownEntity("Comment", id)
	}
	return nil
}

// Ref is a comment summary embedded in user projections.
type Ref struct {
	ID     int64 `db:"id" json:"id"`
	TaskID int64 `db:"task_id" json:"taskId"`
}

// RefsByAuthor lists the comments written by userID.
func (r *CommentRepo) RefsByAuthor(ctx context.Context, userID int64) ([]Ref, error) {
	out := []Ref{}
	q := r.db.Rebind(`SELECT id, task_id FROM comments WHERE author_id = ? ORDER BY id`)
	if err := sqlx.SelectContext(ctx, r.db, &out, q, userID); err != nil {
		return nil, fmt.Errorf("list comments by %d: %w", userID, err)
	}
	return out, nil
}

func (r *CommentRepo) CountByTask(ctx context.Context, taskID int64) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, r.db.Rebind(`SELECT COUNT(1) FROM comments WHERE task_id = ?`), taskID); err != nil {
		return 0, fmt.Errorf("count comments of task %d: %w", taskID, err)
	}
	return n, nil
}

// AuthorsOnTask returns the distinct authors of comments on taskID.
func (r *CommentRepo) AuthorsOnTask(ctx context.Context, taskID int64) ([]int64, error) {
	var ids []int64
	q := r.db.Rebind(`SELECT DISTINCT author_id FROM comments WHERE task_id = ? ORDER BY author_id`)
	if err := sqlx.SelectContext(ctx, r.db, &ids, q, taskID); err != nil {
		return nil, fmt.Errorf("list commenters of task %d: %w", taskID, err)
	}
	return ids, nil
}

// AuthorsOnTasksAuthoredBy returns the distinct commenters on tasks written by userID.
func (r *CommentRepo) AuthorsOnTasksAuthoredBy(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	q := r.db.Rebind(`SELECT DISTINCT c.author_id FROM comments c JOIN tasks t ON t.id = c.task_id WHERE t.author_id = ? ORDER BY c.author_id`)
	if err := sqlx.SelectContext(ctx, r.db, &ids, q, userID); err != nil {
		return nil, fmt.Errorf("list commenters on tasks by %d: %w", userID, err)
	}
	return ids, nil
}
