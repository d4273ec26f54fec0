package entity

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status of a task. Transitions between statuses are unrestricted.
type Status string

const (
	StatusOnHold     Status = "ON_HOLD"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// ParseStatus parses a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch v := Status(strings.ToUpper(strings.TrimSpace(s))); v {
	case StatusOnHold, StatusInProgress, StatusCompleted:
		return v, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Priority of a task.
type Priority string

const (
	PriorityHigh    Priority = "HIGH"
	PriorityRegular Priority = "REGULAR"
	PriorityLow     Priority = "LOW"
)

// ParsePriority parses a priority name case-insensitively.
func ParsePriority(s string) (Priority, error) {
	switch v := Priority(strings.ToUpper(strings.TrimSpace(s))); v {
	case PriorityHigh, PriorityRegular, PriorityLow:
		return v, nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Task represents a row in the `tasks` table. AuthorID never changes after creation.
type Task struct {
	ID          int64      `db:"id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	Status      Status     `db:"status"`
	Priority    Priority   `db:"priority"`
	AuthorID    int64      `db:"author_id"`
	ExecutorID  *int64     `db:"executor_id"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at"`
}

// HasExecutor reports whether userID is the assigned executor.
func (t *Task) HasExecutor(userID int64) bool {
	return t.ExecutorID != nil && *t.ExecutorID == userID
}

// Field names a mutable task field.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldStatus      Field = "status"
	FieldPriority    Field = "priority"
	FieldExecutorID  Field = "executorId"
)

// FieldDelta is the set of fields that differ between a stored task and a
// candidate replacement.
type FieldDelta map[Field]struct{}

// NewFieldDelta builds a delta from the given fields.
func NewFieldDelta(fields ...Field) FieldDelta {
	d := make(FieldDelta, len(fields))
	for _, f := range fields {
		d[f] = struct{}{}
	}
	return d
}

// Has reports whether f is part of the delta.
func (d FieldDelta) Has(f Field) bool {
	_, ok := d[f]
	return ok
}

// Len is the number of changed fields.
func (d FieldDelta) Len() int { return len(d) }

// Only reports whether f is the single changed field.
func (d FieldDelta) Only(f Field) bool {
	return len(d) == 1 && d.Has(f)
}

// Fields returns the changed fields in a stable order.
func (d FieldDelta) Fields() []Field {
	out := make([]Field, 0, len(d))
	for f := range d {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (d FieldDelta) String() string {
	fs := d.Fields()
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Diff compares the content fields of t and candidate. Identity, ownership,
// executor and timestamps are never part of the comparison.
func (t *Task) Diff(candidate *Task) FieldDelta {
	d := FieldDelta{}
	if t.Title != candidate.Title {
		d[FieldTitle] = struct{}{}
	}
	if t.Description != candidate.Description {
		d[FieldDescription] = struct{}{}
	}
	if t.Status != candidate.Status {
		d[FieldStatus] = struct{}{}
	}
	if t.Priority != candidate.Priority {
		d[FieldPriority] = struct{}{}
	}
	return d
}

// SameExecutor reports whether two nullable executor ids are equal.
func SameExecutor(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
