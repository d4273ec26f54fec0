package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/auth"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/task/entity"
	userentity "github.com/ovaphlow/pitchfork/service-task-tracker/internal/user/entity"
)

func principal(id int64, role userentity.Role) *auth.Principal {
	return &auth.Principal{UserID: id, Role: role}
}

func ptr(v int64) *int64 { return &v }

var allFields = []entity.Field{
	entity.FieldTitle, entity.FieldDescription, entity.FieldStatus, entity.FieldPriority, entity.FieldExecutorID,
}

func taskUpdate(p *auth.Principal, delta entity.FieldDelta) Request {
	return Request{
		Principal:  p,
		Action:     ActionUpdate,
		Resource:   ResourceTask,
		ResourceID: 10,
		AuthorID:   1,
		ExecutorID: ptr(2),
		Delta:      delta,
	}
}

func TestEvaluate(t *testing.T) {
	user := userentity.RoleUser
	admin := userentity.RoleAdmin

	tests := []struct {
		name    string
		req     Request
		allowed bool
		reason  apperr.Kind
	}{
		{"anonymous update", taskUpdate(nil, entity.NewFieldDelta(entity.FieldStatus)), false, apperr.KindUnauthenticated},
		{"anonymous create comment", Request{Action: ActionCreate, Resource: ResourceComment}, false, apperr.KindUnauthenticated},
		{"anonymous delete user", Request{Action: ActionDelete, Resource: ResourceUser, AuthorID: 2}, false, apperr.KindUnauthenticated},

		{"author deletes task", Request{Principal: principal(1, user), Action: ActionDelete, Resource: ResourceTask, AuthorID: 1}, true, 0},
		{"executor deletes task", Request{Principal: principal(2, user), Action: ActionDelete, Resource: ResourceTask, AuthorID: 1, ExecutorID: ptr(2)}, false, apperr.KindNotOwner},
		{"admin deletes foreign task", Request{Principal: principal(3, admin), Action: ActionDelete, Resource: ResourceTask, AuthorID: 1}, false, apperr.KindNotOwner},
		{"author deletes comment", Request{Principal: principal(4, user), Action: ActionDelete, Resource: ResourceComment, AuthorID: 4}, true, 0},
		{"stranger deletes comment", Request{Principal: principal(5, user), Action: ActionDelete, Resource: ResourceComment, AuthorID: 4}, false, apperr.KindNotOwner},

		{"admin deletes user", Request{Principal: principal(1, admin), Action: ActionDelete, Resource: ResourceUser, AuthorID: 2}, true, 0},
		{"user deletes user", Request{Principal: principal(2, user), Action: ActionDelete, Resource: ResourceUser, AuthorID: 2}, false, apperr.KindInsufficientRole},

		{"author full update", taskUpdate(principal(1, user), entity.NewFieldDelta(allFields...)), true, 0},
		{"author empty update", taskUpdate(principal(1, user), entity.FieldDelta{}), true, 0},
		{"executor status only", taskUpdate(principal(2, user), entity.NewFieldDelta(entity.FieldStatus)), true, 0},
		{"executor status and title", taskUpdate(principal(2, user), entity.NewFieldDelta(entity.FieldStatus, entity.FieldTitle)), false, apperr.KindExecutorFieldRestricted},
		{"executor title only", taskUpdate(principal(2, user), entity.NewFieldDelta(entity.FieldTitle)), false, apperr.KindExecutorFieldRestricted},
		{"executor empty delta", taskUpdate(principal(2, user), entity.FieldDelta{}), false, apperr.KindExecutorFieldRestricted},
		{"executor reassigns", taskUpdate(principal(2, user), entity.NewFieldDelta(entity.FieldExecutorID)), false, apperr.KindExecutorFieldRestricted},
		{"executor status and reassign", taskUpdate(principal(2, user), entity.NewFieldDelta(entity.FieldStatus, entity.FieldExecutorID)), false, apperr.KindExecutorFieldRestricted},
		{"stranger update", taskUpdate(principal(3, user), entity.NewFieldDelta(entity.FieldStatus)), false, apperr.KindNotOwner},
		{"admin stranger update", taskUpdate(principal(3, admin), entity.NewFieldDelta(entity.FieldStatus)), false, apperr.KindNotOwner},

		{"create task", Request{Principal: principal(9, user), Action: ActionCreate, Resource: ResourceTask}, true, 0},
		{"create comment", Request{Principal: principal(9, user), Action: ActionCreate, Resource: ResourceComment}, true, 0},
		{"create user", Request{Principal: principal(9, admin), Action: ActionCreate, Resource: ResourceUser}, false, apperr.KindNotOwner},

		{"author updates comment", Request{Principal: principal(4, user), Action: ActionUpdate, Resource: ResourceComment, AuthorID: 4}, true, 0},
		{"stranger updates comment", Request{Principal: principal(1, admin), Action: ActionUpdate, Resource: ResourceComment, AuthorID: 4}, false, apperr.KindNotOwner},
		{"self updates user", Request{Principal: principal(4, user), Action: ActionUpdate, Resource: ResourceUser, AuthorID: 4}, true, 0},
		{"other updates user", Request{Principal: principal(1, admin), Action: ActionUpdate, Resource: ResourceUser, AuthorID: 4}, false, apperr.KindNotOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.req)
			assert.Equal(t, tt.allowed, d.Allowed)
			if tt.allowed {
				assert.NoError(t, d.Err())
				return
			}
			assert.Equal(t, tt.reason, d.Reason)
			require.Error(t, d.Err())
			assert.Equal(t, tt.reason, apperr.KindOf(d.Err()))
			assert.NotEmpty(t, d.Message)
		})
	}
}

func TestAuthorMayChangeAnySingleField(t *testing.T) {
	for _, f := range allFields {
		d := Evaluate(taskUpdate(principal(1, userentity.RoleUser), entity.NewFieldDelta(f)))
		require.True(t, d.Allowed, f)
		assert.True(t, d.Permitted.Only(f), f)
	}
}

func TestAuthorWhoIsExecutorIsTreatedAsAuthor(t *testing.T) {
	req := taskUpdate(principal(1, userentity.RoleUser), entity.NewFieldDelta(entity.FieldTitle, entity.FieldStatus))
	req.ExecutorID = ptr(1)

	d := Evaluate(req)
	require.True(t, d.Allowed)
	assert.Equal(t, 2, d.Permitted.Len())
}

func TestExecutorMayOnlyChangeStatus(t *testing.T) {
	p := principal(2, userentity.RoleUser)

	d := Evaluate(taskUpdate(p, entity.NewFieldDelta(entity.FieldStatus)))
	require.True(t, d.Allowed)
	assert.True(t, d.Permitted.Only(entity.FieldStatus))

	for _, f := range allFields {
		if f == entity.FieldStatus {
			continue
		}
		d := Evaluate(taskUpdate(p, entity.NewFieldDelta(entity.FieldStatus, f)))
		assert.False(t, d.Allowed, f)
		assert.Equal(t, apperr.KindExecutorFieldRestricted, d.Reason, f)
		assert.Contains(t, d.Message, `ONLY "status"`)
		assert.Contains(t, d.Message, "task: 10")
	}
}

func TestTaskWithoutExecutorDeniesStrangers(t *testing.T) {
	req := taskUpdate(principal(2, userentity.RoleUser), entity.NewFieldDelta(entity.FieldStatus))
	req.ExecutorID = nil

	d := Evaluate(req)
	assert.False(t, d.Allowed)
	assert.Equal(t, apperr.KindNotOwner, d.Reason)
	assert.Equal(t, "You have no permission to update this task: 10", d.Message)
}
