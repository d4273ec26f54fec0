package mutation

import (
	"strings"
	"unicode/utf8"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
	taskentity "github.com/ovaphlow/pitchfork/service-task-tracker/internal/task/entity"
	userentity "github.com/ovaphlow/pitchfork/service-task-tracker/internal/user/entity"
)

// TaskInput is a complete task body for create and update. A nil ExecutorID
// means no executor.
type TaskInput struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      taskentity.Status   `json:"status"`
	Priority    taskentity.Priority `json:"priority"`
	ExecutorID  *int64              `json:"executorId"`
}

func (in *TaskInput) Validate() error {
	if err := lengthBetween("title", in.Title, 3, 255); err != nil {
		return err
	}
	if err := lengthBetween("description", in.Description, 3, 255); err != nil {
		return err
	}
	st, err := taskentity.ParseStatus(string(in.Status))
	if err != nil {
		return apperr.Wrap(apperr.KindInvalid, err, "status: must be one of ON_HOLD, IN_PROGRESS, COMPLETED")
	}
	pr, err := taskentity.ParsePriority(string(in.Priority))
	if err != nil {
		return apperr.Wrap(apperr.KindInvalid, err, "priority: must be one of HIGH, REGULAR, LOW")
	}
	in.Status, in.Priority = st, pr
	return nil
}

func (in *TaskInput) task(id int64) *taskentity.Task {
	return &taskentity.Task{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		ExecutorID:  in.ExecutorID,
	}
}

// CommentInput creates a comment. The author is always the caller.
type CommentInput struct {
	TaskID  int64  `json:"taskId"`
	Content string `json:"content"`
}

func (in *CommentInput) Validate() error {
	if in.TaskID == 0 {
		return apperr.New(apperr.KindInvalid, "taskId: must not be null")
	}
	return ValidateContent(in.Content)
}

// ValidateContent checks a comment body.
func ValidateContent(content string) error {
	return lengthBetween("content", content, 3, 255)
}

// UserChanges replaces a user's profile. PasswordHash is already hashed.
type UserChanges struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         userentity.Role
}

func lengthBetween(field, v string, lo, hi int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(v))
	if n < lo || utf8.RuneCountInString(v) > hi {
		return apperr.New(apperr.KindInvalid, "%s: size must be between %d and %d", field, lo, hi)
	}
	return nil
}
