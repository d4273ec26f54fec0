package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/task/entity"
)

// TaskRepo provides data access for the tasks table.
type TaskRepo struct {
	db sqlx.ExtContext
}

func NewTaskRepo(db sqlx.ExtContext) *TaskRepo { return &TaskRepo{db: db} }

// EnsureTable creates the tasks table and its lookup indexes.
func (r *TaskRepo) EnsureTable(ctx context.Context) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS tasks (
  id BIGINT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  priority TEXT NOT NULL,
  author_id BIGINT NOT NULL REFERENCES users(id),
  executor_id BIGINT REFERENCES users(id),
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP
)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_author ON tasks(author_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_executor ON tasks(executor_id)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

const taskColumns = `id, title, description, status, priority, author_id, executor_id, created_at, updated_at`

// Create inserts t. ID and CreatedAt are assigned by the caller.
func (r *TaskRepo) Create(ctx context.Context, t *entity.Task) error {
	q := r.db.Rebind(`INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, t.ID, t.Title, t.Description, t.Status, t.Priority, t.AuthorID, t.ExecutorID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	var t entity.Task
	q := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &t, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.UnknownEntity("Task", id)
		}
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return &t, nil
}

func (r *TaskRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, r.db.Rebind(`SELECT COUNT(1) FROM tasks WHERE id = ?`), id); err != nil {
		return false, fmt.Errorf("check task %d: %w", id, err)
	}
	return n > 0, nil
}

// Update writes only the columns named in delta and stamps updated_at.
func (r *TaskRepo) Update(ctx context.Context, t *entity.Task, delta entity.FieldDelta, at time.Time) error {
	sets := make([]string, 0, delta.Len()+2)
	args := make([]any, 0, delta.Len()+3)
	for _, f := range delta.Fields() {
		switch f {
		case entity.FieldTitle:
			sets, args = append(sets, "title = ?"), append(args, t.Title)
		case entity.FieldDescription:
			sets, args = append(sets, "description = ?"), append(args, t.Description)
		case entity.FieldStatus:
			sets, args = append(sets, "status = ?"), append(args, t.Status)
		case entity.FieldPriority:
			sets, args = append(sets, "priority = ?"), append(args, t.Priority)
		case entity.FieldExecutorID:
			sets, args = append(sets, "executor_id = ?"), append(args, t.ExecutorID)
		}
	}
	sets, args = append(sets, "updated_at = ?"), append(args, at)
	args = append(args, t.ID)

	q := r.db.Rebind(`UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update task %d: %w", t.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.UnknownEntity("Task", t.ID)
	}
	t.UpdatedAt = &at
	return nil
}

// Delete removes a task and its comments.
func (r *TaskRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM comments WHERE task_id = ?`), id); err != nil {
		return fmt.Errorf("delete comments of task %d: %w", id, err)
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.UnknownEntity("Task", id)
	}
	return nil
}

// ListExecutedForOthers returns ids of tasks executed by userID but authored
// by someone else. Tasks the user authored go with the user on delete.
func (r *TaskRepo) ListExecutedForOthers(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	q := r.db.Rebind(`SELECT id FROM tasks WHERE executor_id = ? AND author_id <> ? ORDER BY id`)
	if err := sqlx.SelectContext(ctx, r.db, &ids, q, userID, userID); err != nil {
		return nil, fmt.Errorf("list tasks executed by %d: %w", userID, err)
	}
	return ids, nil
}

// ClearExecutor nulls executor_id on all given tasks in a single statement.
func (r *TaskRepo) ClearExecutor(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In(`UPDATE tasks SET executor_id = NULL, updated_at = ? WHERE id IN (?)`, at, ids)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return 0, fmt.Errorf("clear executor: %w", err)
	}
	return res.RowsAffected()
}

// ExecutorsOfAuthoredBy returns the distinct executors of tasks authored by userID.
func (r *TaskRepo) ExecutorsOfAuthoredBy(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	q := r.db.Rebind(`SELECT DISTINCT executor_id FROM tasks WHERE author_id = ? AND executor_id IS NOT NULL ORDER BY executor_id`)
	if err := sqlx.SelectContext(ctx, r.db, &ids, q, userID); err != nil {
		return nil, fmt.Errorf("list executors of tasks by %d: %w", userID, err)
	}
	return ids, nil
}

// Ref is a task summary embedded in user projections.
type Ref struct {
	ID    int64  `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
}

// RefsByAuthor lists summaries of tasks authored by userID.
func (r *TaskRepo) RefsByAuthor(ctx context.Context, userID int64) ([]Ref, error) {
	return r.refs(ctx, `author_id`, userID)
}

// RefsByExecutor lists summaries of tasks executed by userID.
func (r *TaskRepo) RefsByExecutor(ctx context.Context, userID int64) ([]Ref, error) {
	return r.refs(ctx, `executor_id`, userID)
}

func (r *TaskRepo) refs(ctx context.Context, col string, userID int64) ([]Ref, error) {
	out := []Ref{}
	q := r.db.Rebind(`SELECT id, title FROM tasks WHERE ` + col + ` = ? ORDER BY id`)
	if err := sqlx.SelectContext(ctx, r.db, &out, q, userID); err != nil {
		return nil, fmt.Errorf("list task refs: %w", err)
	}
	return out, nil
}

// Criteria filters Find. Nil fields are not applied.
type Criteria struct {
	AuthorID   *int64
	ExecutorID *int64
	Status     *entity.Status
	Priority   *entity.Priority
	Page       int
	Size       int
	// Sort overrides the default newest-first order.
	Sort []Order
}

// Order sorts Find by one column.
type Order struct {
	Field string
	Desc  bool
}

const DefaultPageSize = 10

var sortColumns = map[string]string{
	"id":         "id",
	"title":      "title",
	"status":     "status",
	"priority":   "priority",
	"authorId":   "author_id",
	"executorId": "executor_id",
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
}

// ParseOrder builds sort orders for the given fields. Unknown fields are
// rejected.
func ParseOrder(fields []string, desc bool) ([]Order, error) {
	out := make([]Order, 0, len(fields))
	for _, f := range fields {
		if _, ok := sortColumns[f]; !ok {
			return nil, apperr.New(apperr.KindInvalid, "sort: unknown field %q", f)
		}
		out = append(out, Order{Field: f, Desc: desc})
	}
	return out, nil
}

func orderBy(orders []Order) string {
	if len(orders) == 0 {
		return `created_at DESC, id DESC`
	}
	parts := make([]string, 0, len(orders)+1)
	byID := false
	for _, o := range orders {
		col := sortColumns[o.Field]
		if col == "" {
			continue
		}
		byID = byID || col == "id"
		if o.Desc {
			col += " DESC"
		}
		parts = append(parts, col)
	}
	if !byID {
		parts = append(parts, "id")
	}
	return strings.Join(parts, ", ")
}

// Find lists tasks matching c, newest first unless c.Sort is set.
func (r *TaskRepo) Find(ctx context.Context, c Criteria) ([]entity.Task, error) {
	where := []string{}
	args := []any{}
	if c.AuthorID != nil {
		where, args = append(where, "author_id = ?"), append(args, *c.AuthorID)
	}
	if c.ExecutorID != nil {
		where, args = append(where, "executor_id = ?"), append(args, *c.ExecutorID)
	}
	if c.Status != nil {
		where, args = append(where, "status = ?"), append(args, *c.Status)
	}
	if c.Priority != nil {
		where, args = append(where, "priority = ?"), append(args, *c.Priority)
	}
	size := c.Size
	if size <= 0 {
		size = DefaultPageSize
	}
	page := c.Page
	if page < 0 {
		page = 0
	}

	q := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY ` + orderBy(c.Sort) + ` LIMIT ? OFFSET ?`
	args = append(args, size, page*size)

	out := []entity.Task{}
	if err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	return out, nil
}
