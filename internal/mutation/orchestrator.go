// Package mutation applies authorized mutations to the entity graph and
// evicts the projections they invalidate once the transaction has committed.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/auth"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/cache"
	commententity "github.com/ovaphlow/pitchfork/service-task-tracker/internal/comment/entity"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/policy"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/store"
	taskentity "github.com/ovaphlow/pitchfork/service-task-tracker/internal/task/entity"
	userentity "github.com/ovaphlow/pitchfork/service-task-tracker/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-task-tracker/pkg/utilities"
)

// Result is the outcome of a mutation together with the cache entries it evicted.
type Result[T any] struct {
	Value   T
	Evicted []cache.Invalidation
}

// UserDeletion describes a removed user and the tasks it was detached from.
type UserDeletion struct {
	User          *userentity.User
	DetachedTasks []int64
}

type Orchestrator struct {
	store  *store.Store
	cache  cache.Cache
	ids    *utilities.IDGenerator
	logger *zap.SugaredLogger
	now    func() time.Time
}

func New(st *store.Store, c cache.Cache, ids *utilities.IDGenerator, logger *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		store:  st,
		cache:  c,
		ids:    ids,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// commit runs fn in a transaction and, only after it commits, evicts the
// invalidations fn returned.
func (o *Orchestrator) commit(ctx context.Context, op string, fn func(store.Repos) ([]cache.Invalidation, error)) ([]cache.Invalidation, error) {
	var invs []cache.Invalidation
	err := o.store.InTx(ctx, func(r store.Repos) error {
		var err error
		invs, err = fn(r)
		return err
	})
	if err != nil {
		return nil, err
	}

	// the mutation is durable; finish evicting even if the caller went away
	evicted, err := cache.Apply(context.WithoutCancel(ctx), o.cache, invs)
	if err != nil {
		o.logger.Errorw("cache eviction failed", "op", op, "evicted", evicted, "pending", len(invs)-len(evicted), "err", err)
		return evicted, fmt.Errorf("%s: %w", op, err)
	}
	o.logger.Debugw("mutation committed", "op", op, "evicted", evicted)
	return evicted, nil
}

func authorize(req policy.Request) error {
	return policy.Evaluate(req).Err()
}

func requirePrincipal(p *auth.Principal, action policy.Action, res policy.Resource) error {
	if p == nil {
		return authorize(policy.Request{Action: action, Resource: res})
	}
	return nil
}

func (o *Orchestrator) requireExecutor(ctx context.Context, r store.Repos, id *int64) error {
	if id == nil {
		return nil
	}
	ok, err := r.Users.Exists(ctx, *id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.UnknownExecutor(*id)
	}
	return nil
}

// CreateTask stores a task authored by the caller.
func (o *Orchestrator) CreateTask(ctx context.Context, p *auth.Principal, in TaskInput) (Result[*taskentity.Task], error) {
	var res Result[*taskentity.Task]
	if err := requirePrincipal(p, policy.ActionCreate, policy.ResourceTask); err != nil {
		return res, err
	}
	if err := in.Validate(); err != nil {
		return res, err
	}
	if err := authorize(policy.Request{Principal: p, Action: policy.ActionCreate, Resource: policy.ResourceTask}); err != nil {
		return res, err
	}

	t := in.task(o.ids.Next())
	t.AuthorID = p.UserID
	t.CreatedAt = o.now()
	evicted, err := o.commit(ctx, "create task", func(r store.Repos) ([]cache.Invalidation, error) {
		if err := o.requireExecutor(ctx, r, t.ExecutorID); err != nil {
			return nil, err
		}
		if err := r.Tasks.Create(ctx, t); err != nil {
			return nil, err
		}
		return TaskCreated(t.AuthorID, t.ExecutorID), nil
	})
	if err != nil {
		return res, err
	}
	return Result[*taskentity.Task]{Value: t, Evicted: evicted}, nil
}

// UpdateTask replaces the task body. Only the fields the caller is permitted
// to change and that actually differ are written.
func (o *Orchestrator) UpdateTask(ctx context.Context, p *auth.Principal, id int64, in TaskInput) (Result[*taskentity.Task], error) {
	var res Result[*taskentity.Task]
	if err := requirePrincipal(p, policy.ActionUpdate, policy.ResourceTask); err != nil {
		return res, err
	}
	if err := in.Validate(); err != nil {
		return res, err
	}

	var updated *taskentity.Task
	evicted, err := o.commit(ctx, "update task", func(r store.Repos) ([]cache.Invalidation, error) {
		cur, err := r.Tasks.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		cand := in.task(id)
		delta := cur.Diff(cand)
		if !taskentity.SameExecutor(cur.ExecutorID, cand.ExecutorID) {
			delta[taskentity.FieldExecutorID] = struct{}{}
		}

		d := policy.Evaluate(policy.Request{
			Principal:  p,
			Action:     policy.ActionUpdate,
			Resource:   policy.ResourceTask,
			ResourceID: id,
			AuthorID:   cur.AuthorID,
			ExecutorID: cur.ExecutorID,
			Delta:      delta,
		})
		if !d.Allowed {
			return nil, d.Err()
		}
		if d.Permitted.Has(taskentity.FieldExecutorID) {
			if err := o.requireExecutor(ctx, r, cand.ExecutorID); err != nil {
				return nil, err
			}
		}

		next := *cur
		applyFields(&next, cand, d.Permitted)
		if err := r.Tasks.Update(ctx, &next, d.Permitted, o.now()); err != nil {
			return nil, err
		}
		updated = &next
		return TaskUpdated(id, cur.AuthorID, cur.ExecutorID, next.ExecutorID), nil
	})
	if err != nil {
		return res, err
	}
	return Result[*taskentity.Task]{Value: updated, Evicted: evicted}, nil
}

func applyFields(dst, src *taskentity.Task, fields taskentity.FieldDelta) {
	for f := range fields {
		switch f {
		case taskentity.FieldTitle:
			dst.Title = src.Title
		case taskentity.FieldDescription:
			dst.Description = src.Description
		case taskentity.FieldStatus:
			dst.Status = src.Status
		case taskentity.FieldPriority:
			dst.Priority = src.Priority
		case taskentity.FieldExecutorID:
			dst.ExecutorID = src.ExecutorID
		}
	}
}

// DeleteTask removes a task and its comments.
func (o *Orchestrator) DeleteTask(ctx context.Context, p *auth.Principal, id int64) (Result[*taskentity.Task], error) {
	var res Result[*taskentity.Task]
	if err := requirePrincipal(p, policy.ActionDelete, policy.ResourceTask); err != nil {
		return res, err
	}
	var deleted *taskentity.Task
	evicted, err := o.commit(ctx, "delete task", func(r store.Repos) ([]cache.Invalidation, error) {
		cur, err := r.Tasks.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := authorize(policy.Request{
			Principal: p, Action: policy.ActionDelete, Resource: policy.ResourceTask,
			ResourceID: id, AuthorID: cur.AuthorID, ExecutorID: cur.ExecutorID,
		}); err != nil {
			return nil, err
		}
		commenters, err := r.Comments.AuthorsOnTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := r.Tasks.Delete(ctx, id); err != nil {
			return nil, err
		}
		deleted = cur
		return TaskDeleted(id, cur.AuthorID, cur.ExecutorID, commenters), nil
	})
	if err != nil {
		return res, err
	}
	return Result[*taskentity.Task]{Value: deleted, Evicted: evicted}, nil
}

// CreateComment adds a comment by the caller to an existing task.
func (o *Orchestrator) CreateComment(ctx context.Context, p *auth.Principal, in CommentInput) (Result[*commententity.Comment], error) {
	var res Result[*commententity.Comment]
	if err := requirePrincipal(p, policy.ActionCreate, policy.ResourceComment); err != nil {
		return res, err
	}
	if err := in.Validate(); err != nil {
		return res, err
	}
	if err := authorize(policy.Request{Principal: p, Action: policy.ActionCreate, Resource: policy.ResourceComment}); err != nil {
		return res, err
	}

	c := &commententity.Comment{
		ID:        o.ids.Next(),
		TaskID:    in.TaskID,
		AuthorID:  p.UserID,
		Content:   in.Content,
		CreatedAt: o.now(),
	}
	evicted, err := o.commit(ctx, "create comment", func(r store.Repos) ([]cache.Invalidation, error) {
		ok, err := r.Tasks.Exists(ctx, c.TaskID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.New(apperr.KindUnknownEntity, "There is no Task with taskId: %d", c.TaskID)
		}
		if err := r.Comments.Create(ctx, c); err != nil {
			return nil, err
		}
		return CommentChanged(c.TaskID, c.AuthorID), nil
	})
	if err != nil {
		return res, err
	}
	return Result[*commententity.Comment]{Value: c, Evicted: evicted}, nil
}

// UpdateComment replaces the content of the caller's own comment.
func (o *Orchestrator) UpdateComment(ctx context.Context, p *auth.Principal, id int64, content string) (Result[*commententity.Comment], error) {
	var res Result[*commententity.Comment]
	if err := requirePrincipal(p, policy.ActionUpdate, policy.ResourceComment); err != nil {
		return res, err
	}
	if err := ValidateContent(content); err != nil {
		return res, err
	}
	var updated *commententity.Comment
	evicted, err := o.commit(ctx, "update comment", func(r store.Repos) ([]cache.Invalidation, error) {
		cur, err := r.Comments.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := authorize(policy.Request{
			Principal: p, Action: policy.ActionUpdate, Resource: policy.ResourceComment,
			ResourceID: id, AuthorID: cur.AuthorID,
		}); err != nil {
			return nil, err
		}
		at := o.now()
		if err := r.Comments.UpdateContent(ctx, id, content, at); err != nil {
			return nil, err
		}
		cur.Content, cur.UpdatedAt = content, &at
		updated = cur
		return CommentChanged(cur.TaskID, cur.AuthorID), nil
	})
	if err != nil {
		return res, err
	}
	return Result[*commententity.Comment]{Value: updated, Evicted: evicted}, nil
}

// DeleteComment removes the caller's own comment.
func (o *Orchestrator) DeleteComment(ctx context.Context, p *auth.Principal, id int64) (Result[*commententity.Comment], error) {
	var res Result[*commententity.Comment]
	if err := requirePrincipal(p, policy.ActionDelete, policy.ResourceComment); err != nil {
		return res, err
	}
	var deleted *commententity.Comment
	evicted, err := o.commit(ctx, "delete comment", func(r store.Repos) ([]cache.Invalidation, error) {
		cur, err := r.Comments.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := authorize(policy.Request{
			Principal: p, Action: policy.ActionDelete, Resource: policy.ResourceComment,
			ResourceID: id, AuthorID: cur.AuthorID,
		}); err != nil {
			return nil, err
		}
		if err := r.Comments.Delete(ctx, id); err != nil {
			return nil, err
		}
		deleted = cur
		return CommentChanged(cur.TaskID, cur.AuthorID), nil
	})
	if err != nil {
		return res, err
	}
	return Result[*commententity.Comment]{Value: deleted, Evicted: evicted}, nil
}

// DeleteUser detaches the user from every task it executes in one batch,
// then removes it together with its authored tasks and its comments.
func (o *Orchestrator) DeleteUser(ctx context.Context, p *auth.Principal, id int64) (Result[UserDeletion], error) {
	var res Result[UserDeletion]
	if err := authorize(policy.Request{Principal: p, Action: policy.ActionDelete, Resource: policy.ResourceUser, ResourceID: id, AuthorID: id}); err != nil {
		return res, err
	}
	var out UserDeletion
	evicted, err := o.commit(ctx, "delete user", func(r store.Repos) ([]cache.Invalidation, error) {
		u, err := r.Users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		executed, err := r.Tasks.ListExecutedForOthers(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, err := r.Tasks.ClearExecutor(ctx, executed, o.now()); err != nil {
			return nil, err
		}
		executors, err := r.Tasks.ExecutorsOfAuthoredBy(ctx, id)
		if err != nil {
			return nil, err
		}
		commenters, err := r.Comments.AuthorsOnTasksAuthoredBy(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := r.Users.Delete(ctx, id); err != nil {
			return nil, err
		}
		out = UserDeletion{User: u, DetachedTasks: executed}
		return UserDeleted(id, u.Email, append(executors, commenters...)), nil
	})
	if err != nil {
		return res, err
	}
	return Result[UserDeletion]{Value: out, Evicted: evicted}, nil
}

// UpdateUser replaces the profile of user id, which must be the caller.
// An empty role keeps the current one; only an ADMIN may change a role.
func (o *Orchestrator) UpdateUser(ctx context.Context, p *auth.Principal, id int64, ch UserChanges) (Result[*userentity.User], error) {
	var res Result[*userentity.User]
	if err := authorize(policy.Request{Principal: p, Action: policy.ActionUpdate, Resource: policy.ResourceUser, ResourceID: id, AuthorID: id}); err != nil {
		return res, err
	}
	var updated *userentity.User
	evicted, err := o.commit(ctx, "update user", func(r store.Repos) ([]cache.Invalidation, error) {
		u, err := r.Users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if ch.Role == "" {
			ch.Role = u.Role
		}
		if ch.Role != u.Role && !p.IsAdmin() {
			return nil, apperr.New(apperr.KindInsufficientRole, "Only ADMIN can change roles")
		}
		if ch.Email != u.Email {
			other, err := r.Users.GetByEmail(ctx, ch.Email)
			switch {
			case err == nil && other.ID != id:
				return nil, apperr.New(apperr.KindConflict, "Email already registered: %s", ch.Email)
			case err != nil && !errors.Is(err, apperr.ErrUnknownEntity):
				return nil, err
			}
		}
		at := o.now()
		u.FirstName, u.LastName, u.Email = ch.FirstName, ch.LastName, ch.Email
		u.PasswordHash, u.Role, u.UpdatedAt = ch.PasswordHash, ch.Role, &at
		if err := r.Users.Update(ctx, u); err != nil {
			return nil, err
		}
		updated = u
		return UserUpdated(id), nil
	})
	if err != nil {
		return res, err
	}
	return Result[*userentity.User]{Value: updated, Evicted: evicted}, nil
}
