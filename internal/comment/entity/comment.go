package entity

import "time"

// Comment represents a row in the `comments` table. AuthorID never changes after creation.
type Comment struct {
	ID        int64      `db:"id"`
	TaskID    int64      `db:"task_id"`
	AuthorID  int64      `db:"author_id"`
	Content   string     `db:"content"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt *time.Time `db:"updated_at"`
}
