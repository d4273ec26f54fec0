package mutation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/cache"
)

func keys(invs []cache.Invalidation) []string {
	out := make([]string, len(invs))
	for i, inv := range invs {
		out[i] = inv.String()
	}
	return out
}

func ptr(v int64) *int64 { return &v }

func TestInvalidationSets(t *testing.T) {
	tests := []struct {
		name string
		got  []cache.Invalidation
		want []string
	}{
		{"create task without executor", TaskCreated(1, nil), []string{"user_resp:1"}},
		{"create task with executor", TaskCreated(1, ptr(2)), []string{"user_resp:1", "user_resp:2"}},
		{"create task self-executed", TaskCreated(1, ptr(1)), []string{"user_resp:1"}},
		{"update task executor changed", TaskUpdated(10, 1, ptr(2), ptr(3)), []string{"tasks:10", "user_resp:1", "user_resp:2", "user_resp:3"}},
		{"update task executor removed", TaskUpdated(10, 1, ptr(2), nil), []string{"tasks:10", "user_resp:1", "user_resp:2"}},
		{"update task no executor", TaskUpdated(10, 1, nil, nil), []string{"tasks:10", "user_resp:1"}},
		{"delete task", TaskDeleted(10, 1, ptr(2), []int64{2, 3}), []string{"tasks:10", "user_resp:2", "user_resp:1", "user_resp:3"}},
		{"comment", CommentChanged(10, 4), []string{"tasks:10", "user_resp:4"}},
		{"delete user", UserDeleted(5, "u@site.com", []int64{6, 5, 6}), []string{"users:u@site.com", "user_resp:5", "tasks:*", "user_resp:6"}},
		{"update user", UserUpdated(5), []string{"users:*", "user_resp:5", "tasks:*"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keys(tt.got))
		})
	}
}

func TestUserDeletedSignalsFullTaskInvalidation(t *testing.T) {
	invs := UserDeleted(5, "u@site.com", nil)
	var all []cache.Invalidation
	for _, inv := range invs {
		if inv.All {
			all = append(all, inv)
		}
	}
	assert.Equal(t, []cache.Invalidation{cache.EvictAll(cache.KindTask)}, all)
}
