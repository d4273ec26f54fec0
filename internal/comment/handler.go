package comment

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/auth"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/comment/entity"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/mutation"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/response"
)

// View is the response shape of a comment.
type View struct {
	ID        int64      `json:"id"`
	TaskID    int64      `json:"taskId"`
	AuthorID  int64      `json:"authorId"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

func newView(c *entity.Comment) View {
	return View{ID: c.ID, TaskID: c.TaskID, AuthorID: c.AuthorID, Content: c.Content, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

// Handler exposes comment mutations. Comments are read through the task and
// user projections.
type Handler struct {
	orch   *mutation.Orchestrator
	logger *zap.SugaredLogger
}

func NewHandler(orch *mutation.Orchestrator, logger *zap.SugaredLogger) *Handler {
	return &Handler{orch: orch, logger: logger}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in mutation.CommentInput
	if err := response.Decode(r, &in); err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	res, err := h.orch.CreateComment(r.Context(), p, in)
	if err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, newView(res.Value))
}

// UpdateRequest carries the new content of a comment.
type UpdateRequest struct {
	Content string `json:"content"`
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := response.PathID(r, "id")
	if err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	var req UpdateRequest
	if err := response.Decode(r, &req); err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	res, err := h.orch.UpdateComment(r.Context(), p, id, req.Content)
	if err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, newView(res.Value))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := response.PathID(r, "id")
	if err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	res, err := h.orch.DeleteComment(r.Context(), p, id)
	if err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, newView(res.Value))
}
