package mutation

import "github.com/ovaphlow/pitchfork/service-task-tracker/internal/cache"

// The functions in this file map a committed mutation to the cache entries
// that embed the data it changed. They perform no I/O; every id they need is
// gathered by the orchestrator inside the mutation's transaction.

type invalidationSet struct {
	list []cache.Invalidation
	seen map[string]struct{}
}

func newInvalidationSet() *invalidationSet {
	return &invalidationSet{seen: map[string]struct{}{}}
}

func (s *invalidationSet) add(inv cache.Invalidation) *invalidationSet {
	k := inv.String()
	if _, ok := s.seen[k]; ok {
		return s
	}
	s.seen[k] = struct{}{}
	s.list = append(s.list, inv)
	return s
}

func (s *invalidationSet) user(id int64) *invalidationSet { return s.add(cache.Evict(cache.UserKey(id))) }

func (s *invalidationSet) userPtr(id *int64) *invalidationSet {
	if id != nil {
		s.user(*id)
	}
	return s
}

func (s *invalidationSet) users(ids []int64) *invalidationSet {
	for _, id := range ids {
		s.user(id)
	}
	return s
}

func (s *invalidationSet) task(id int64) *invalidationSet { return s.add(cache.Evict(cache.TaskKey(id))) }

func (s *invalidationSet) items() []cache.Invalidation { return s.list }

// TaskCreated: the author's projection and the executor's, when assigned.
func TaskCreated(authorID int64, executorID *int64) []cache.Invalidation {
	return newInvalidationSet().user(authorID).userPtr(executorID).items()
}

// TaskUpdated: the task itself, the author, and both the previous and the
// resulting executor.
func TaskUpdated(taskID, authorID int64, oldExecutor, newExecutor *int64) []cache.Invalidation {
	return newInvalidationSet().task(taskID).user(authorID).userPtr(oldExecutor).userPtr(newExecutor).items()
}

// TaskDeleted: the task, its author and executor, and everyone who commented on it.
func TaskDeleted(taskID, authorID int64, executorID *int64, commenters []int64) []cache.Invalidation {
	return newInvalidationSet().task(taskID).userPtr(executorID).user(authorID).users(commenters).items()
}

// CommentChanged covers comment creation, update and deletion: the parent
// task (its comment count) and the comment author (its comment list).
func CommentChanged(taskID, authorID int64) []cache.Invalidation {
	return newInvalidationSet().task(taskID).user(authorID).items()
}

// UserDeleted: the identity entry, the user's projection, every task
// projection, and the projections of users whose relations lost entries
// through the cascade.
func UserDeleted(userID int64, email string, related []int64) []cache.Invalidation {
	return newInvalidationSet().
		add(cache.Evict(cache.EmailKey(email))).
		user(userID).
		add(cache.EvictAll(cache.KindTask)).
		users(related).
		items()
}

// UserUpdated: every identity entry, since the email may have changed, the
// user's projection, and every task projection, since they embed author and
// executor names.
func UserUpdated(userID int64) []cache.Invalidation {
	return newInvalidationSet().
		add(cache.EvictAll(cache.KindUserByEmail)).
		user(userID).
		add(cache.EvictAll(cache.KindTask)).
		items()
}
