// Package seed loads a small demo data set: an admin, a user, two tasks and
// two comments.
package seed

import (
	"context"
	"errors"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/auth"
	commententity "github.com/ovaphlow/pitchfork/service-task-tracker/internal/comment/entity"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/store"
	taskentity "github.com/ovaphlow/pitchfork/service-task-tracker/internal/task/entity"
	userentity "github.com/ovaphlow/pitchfork/service-task-tracker/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-task-tracker/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-task-tracker/pkg/utilities"
)

const (
	AdminEmail   = "adm@site.com"
	UserEmail    = "user@site.com"
	DemoPassword = "123"
)

// Enabled reports whether SEED_DEMO_DATA is set to a true value.
func Enabled() bool {
	v, _ := strconv.ParseBool(os.Getenv("SEED_DEMO_DATA"))
	return v
}

// Load inserts the demo data unless the admin account already exists.
// It reports whether anything was inserted.
func Load(ctx context.Context, st *store.Store, hasher auth.PasswordHasher, ids *utilities.IDGenerator, logger *zap.SugaredLogger) (bool, error) {
	_, err := st.Repos().Users.GetByEmail(ctx, AdminEmail)
	if err == nil {
		logger.Debugw("demo data already present")
		return false, nil
	}
	if !errors.Is(err, apperr.ErrUnknownEntity) {
		return false, err
	}

	hash, err := hasher.Hash(DemoPassword)
	if err != nil {
		return false, err
	}
	now := userrepo.Now()
	admin := &userentity.User{ID: ids.Next(), FirstName: "Admin", LastName: "Admin", Email: AdminEmail, PasswordHash: hash, Role: userentity.RoleAdmin, CreatedAt: now}
	user := &userentity.User{ID: ids.Next(), FirstName: "User", LastName: "User", Email: UserEmail, PasswordHash: hash, Role: userentity.RoleUser, CreatedAt: now}
	first := &taskentity.Task{
		ID: ids.Next(), Title: "First Task", Description: "The first demo task",
		Status: taskentity.StatusInProgress, Priority: taskentity.PriorityHigh,
		AuthorID: admin.ID, ExecutorID: &user.ID, CreatedAt: now,
	}
	second := &taskentity.Task{
		ID: ids.Next(), Title: "Second Task", Description: "Second demo task with Admin as executor",
		Status: taskentity.StatusInProgress, Priority: taskentity.PriorityHigh,
		AuthorID: admin.ID, ExecutorID: &admin.ID, CreatedAt: now,
	}
	comments := []*commententity.Comment{
		{ID: ids.Next(), TaskID: first.ID, AuthorID: admin.ID, Content: "First comment from admin to the first task", CreatedAt: now},
		{ID: ids.Next(), TaskID: second.ID, AuthorID: user.ID, Content: "Second comment from user to the second task", CreatedAt: now},
	}

	err = st.InTx(ctx, func(r store.Repos) error {
		for _, u := range []*userentity.User{admin, user} {
			if err := r.Users.Create(ctx, u); err != nil {
				return err
			}
		}
		for _, t := range []*taskentity.Task{first, second} {
			if err := r.Tasks.Create(ctx, t); err != nil {
				return err
			}
		}
		for _, c := range comments {
			if err := r.Comments.Create(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	logger.Infow("demo data loaded", "admin_id", admin.ID, "user_id", user.ID)
	return true, nil
}
