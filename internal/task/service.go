package task

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/auth"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/cache"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/mutation"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/projection"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/store"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/task/entity"
	taskrepo "github.com/ovaphlow/pitchfork/service-task-tracker/internal/task/repo"
	userrepo "github.com/ovaphlow/pitchfork/service-task-tracker/internal/user/repo"
)

// View is the response projection of a task. Author and Executor carry user
// summaries when the caller asked for them.
type View struct {
	ID           int64                             `json:"id"`
	Title        string                            `json:"title"`
	Description  string                            `json:"description"`
	Status       entity.Status                     `json:"status"`
	Priority     entity.Priority                   `json:"priority"`
	AuthorID     int64                             `json:"authorId"`
	ExecutorID   *int64                            `json:"executorId"`
	Author       projection.Link[userrepo.Summary] `json:"author"`
	Executor     projection.Link[userrepo.Summary] `json:"executor"`
	CommentCount int                               `json:"commentCount"`
	CreatedAt    time.Time                         `json:"createdAt"`
	UpdatedAt    *time.Time                        `json:"updatedAt"`
}

func newView(t *entity.Task, comments int) View {
	return View{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       t.Status,
		Priority:     t.Priority,
		AuthorID:     t.AuthorID,
		ExecutorID:   t.ExecutorID,
		Author:       projection.LinkNotRequested[userrepo.Summary](),
		Executor:     projection.LinkNotRequested[userrepo.Summary](),
		CommentCount: comments,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// populatePeople fills the author and executor links of views with one
// lookup for all referenced users.
func populatePeople(ctx context.Context, users *userrepo.UserRepo, views []View) error {
	ids := make([]int64, 0, 2*len(views))
	for _, v := range views {
		ids = append(ids, v.AuthorID)
		if v.ExecutorID != nil {
			ids = append(ids, *v.ExecutorID)
		}
	}
	people, err := users.Summaries(ctx, ids)
	if err != nil {
		return err
	}
	link := func(id *int64) projection.Link[userrepo.Summary] {
		if id != nil {
			if p, ok := people[*id]; ok {
				return projection.PopulatedLink(&p)
			}
		}
		return projection.PopulatedLink[userrepo.Summary](nil)
	}
	for i := range views {
		views[i].Author = link(&views[i].AuthorID)
		views[i].Executor = link(views[i].ExecutorID)
	}
	return nil
}

type Service struct {
	store  *store.Store
	reader *cache.Reader
	orch   *mutation.Orchestrator
	logger *zap.SugaredLogger
}

func NewService(st *store.Store, reader *cache.Reader, orch *mutation.Orchestrator, logger *zap.SugaredLogger) *Service {
	return &Service{store: st, reader: reader, orch: orch, logger: logger}
}

// Get returns the task projection, read through the task cache.
func (s *Service) Get(ctx context.Context, id int64) (View, error) {
	return cache.Fetch(ctx, s.reader, cache.TaskKey(id), func(ctx context.Context) (View, error) {
		r := s.store.Repos()
		t, err := r.Tasks.GetByID(ctx, id)
		if err != nil {
			return View{}, err
		}
		n, err := r.Comments.CountByTask(ctx, id)
		if err != nil {
			return View{}, err
		}
		v := []View{newView(t, n)}
		if err := populatePeople(ctx, r.Users, v); err != nil {
			return View{}, err
		}
		return v[0], nil
	})
}

// Find lists tasks matching c without author and executor summaries.
func (s *Service) Find(ctx context.Context, c taskrepo.Criteria) ([]View, error) {
	r := s.store.Repos()
	tasks, err := r.Tasks.Find(ctx, c)
	if err != nil {
		return nil, err
	}
	out := make([]View, len(tasks))
	for i := range tasks {
		n, err := r.Comments.CountByTask(ctx, tasks[i].ID)
		if err != nil {
			return nil, err
		}
		out[i] = newView(&tasks[i], n)
	}
	return out, nil
}

// FindFull lists tasks matching c with author and executor summaries
// populated.
func (s *Service) FindFull(ctx context.Context, c taskrepo.Criteria) ([]View, error) {
	views, err := s.Find(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := populatePeople(ctx, s.store.Repos().Users, views); err != nil {
		return nil, err
	}
	return views, nil
}

// FindByUser lists tasks authored (or executed) by an existing user.
func (s *Service) FindByUser(ctx context.Context, userID int64, asExecutor bool, c taskrepo.Criteria) ([]View, error) {
	ok, err := s.store.Repos().Users.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.UnknownEntity("User", userID)
	}
	if asExecutor {
		c.ExecutorID = &userID
	} else {
		c.AuthorID = &userID
	}
	return s.Find(ctx, c)
}

func (s *Service) Create(ctx context.Context, p *auth.Principal, in mutation.TaskInput) (View, error) {
	res, err := s.orch.CreateTask(ctx, p, in)
	if err != nil {
		return View{}, err
	}
	return s.full(ctx, newView(res.Value, 0))
}

func (s *Service) full(ctx context.Context, v View) (View, error) {
	views := []View{v}
	if err := populatePeople(ctx, s.store.Repos().Users, views); err != nil {
		return View{}, err
	}
	return views[0], nil
}

func (s *Service) Update(ctx context.Context, p *auth.Principal, id int64, in mutation.TaskInput) (View, error) {
	res, err := s.orch.UpdateTask(ctx, p, id, in)
	if err != nil {
		return View{}, err
	}
	n, err := s.store.Repos().Comments.CountByTask(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.full(ctx, newView(res.Value, n))
}

func (s *Service) Delete(ctx context.Context, p *auth.Principal, id int64) (View, error) {
	res, err := s.orch.DeleteTask(ctx, p, id)
	if err != nil {
		return View{}, err
	}
	return newView(res.Value, 0), nil
}

// CriteriaFromQuery parses authorId, executorId, status, priority, page and size.
func CriteriaFromQuery(q url.Values) (taskrepo.Criteria, error) {
	var c taskrepo.Criteria
	for _, f := range []struct {
		name string
		dst  **int64
	}{{"authorId", &c.AuthorID}, {"executorId", &c.ExecutorID}} {
		if v := q.Get(f.name); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return c, apperr.New(apperr.KindInvalid, "%s: invalid id %q", f.name, v)
			}
			*f.dst = &id
		}
	}
	if v := q.Get("status"); v != "" {
		st, err := entity.ParseStatus(v)
		if err != nil {
			return c, apperr.Wrap(apperr.KindInvalid, err, "status: invalid value")
		}
		c.Status = &st
	}
	if v := q.Get("priority"); v != "" {
		pr, err := entity.ParsePriority(v)
		if err != nil {
			return c, apperr.Wrap(apperr.KindInvalid, err, "priority: invalid value")
		}
		c.Priority = &pr
	}
	for _, f := range []struct {
		name string
		dst  *int
	}{{"page", &c.Page}, {"size", &c.Size}} {
		if v := q.Get(f.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return c, apperr.New(apperr.KindInvalid, "%s: must be a non-negative integer", f.name)
			}
			*f.dst = n
		}
	}
	return c, nil
}

// PageFromQuery parses page, size, sort and direction. Sort may repeat or
// hold a comma separated list; direction is ASC (default) or DESC. Without a
// sort field, tasks are ordered by id.
func PageFromQuery(q url.Values) (taskrepo.Criteria, error) {
	page := url.Values{}
	for _, k := range []string{"page", "size"} {
		if v := q.Get(k); v != "" {
			page.Set(k, v)
		}
	}
	c, err := CriteriaFromQuery(page)
	if err != nil {
		return c, err
	}
	var fields []string
	for _, v := range q["sort"] {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	}
	if len(fields) == 0 {
		fields = []string{"id"}
	}
	var desc bool
	switch strings.ToUpper(q.Get("direction")) {
	case "", "ASC":
	case "DESC":
		desc = true
	default:
		return c, apperr.New(apperr.KindInvalid, "direction: must be ASC or DESC")
	}
	c.Sort, err = taskrepo.ParseOrder(fields, desc)
	return c, err
}
