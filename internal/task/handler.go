package task

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/auth"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/mutation"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/response"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/task/entity"
	taskrepo "github.com/ovaphlow/pitchfork/service-task-tracker/internal/task/repo"
)

// Handler exposes the task endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	response.WriteError(w, r, h.logger, err)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in mutation.TaskInput
	if err := response.Decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	v, err := h.svc.Create(r.Context(), p, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, v)
}

// Update replaces a task with the request body. The body is a full
// replacement: an omitted or null executorId unassigns the task. An executor
// who is not the author may change only the status, so their body must repeat
// the current executorId and every other current value; anything else is
// denied with ExecutorFieldRestricted.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := response.PathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in mutation.TaskInput
	if err := response.Decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	v, err := h.svc.Update(r.Context(), p, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := response.PathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	v, err := h.svc.Delete(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := response.PathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) Criteria(w http.ResponseWriter, r *http.Request) {
	c, err := CriteriaFromQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.list(w, r, h.svc.Find, c)
}

// All lists tasks with author and executor summaries, honoring page, size,
// sort and direction.
func (h *Handler) All(w http.ResponseWriter, r *http.Request) {
	c, err := PageFromQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.list(w, r, h.svc.FindFull, c)
}

// Lazy lists tasks like All but leaves author and executor unrequested.
func (h *Handler) Lazy(w http.ResponseWriter, r *http.Request) {
	c, err := PageFromQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.list(w, r, h.svc.Find, c)
}

func (h *Handler) ByAuthor(w http.ResponseWriter, r *http.Request)   { h.byUser(w, r, false) }
func (h *Handler) ByExecutor(w http.ResponseWriter, r *http.Request) { h.byUser(w, r, true) }

func (h *Handler) byUser(w http.ResponseWriter, r *http.Request, asExecutor bool) {
	id, err := response.PathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := CriteriaFromQuery(pageOnly(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.list(w, r, func(ctx context.Context, c taskrepo.Criteria) ([]View, error) {
		return h.svc.FindByUser(ctx, id, asExecutor, c)
	}, c)
}

func (h *Handler) ByStatus(w http.ResponseWriter, r *http.Request) {
	st, err := entity.ParseStatus(r.PathValue("status"))
	if err != nil {
		h.fail(w, r, apperr.Wrap(apperr.KindInvalid, err, "status: invalid value"))
		return
	}
	c, err := CriteriaFromQuery(pageOnly(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c.Status = &st
	h.list(w, r, h.svc.Find, c)
}

func (h *Handler) ByPriority(w http.ResponseWriter, r *http.Request) {
	pr, err := entity.ParsePriority(r.PathValue("priority"))
	if err != nil {
		h.fail(w, r, apperr.Wrap(apperr.KindInvalid, err, "priority: invalid value"))
		return
	}
	c, err := CriteriaFromQuery(pageOnly(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c.Priority = &pr
	h.list(w, r, h.svc.Find, c)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, find func(context.Context, taskrepo.Criteria) ([]View, error), c taskrepo.Criteria) {
	views, err := find(r.Context(), c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, views)
}

// pageOnly keeps the paging parameters of the query string.
func pageOnly(r *http.Request) url.Values {
	q := r.URL.Query()
	out := url.Values{}
	for _, k := range []string{"page", "size"} {
		if v := q.Get(k); v != "" {
			out.Set(k, v)
		}
	}
	return out
}
