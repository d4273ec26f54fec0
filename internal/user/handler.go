package user

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/auth"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/response"
)

// Handler exposes HTTP endpoints for user operations.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterResponse response body containing new user id.
type RegisterResponse struct {
	ID int64 `json:"id"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req Profile
	if err := response.Decode(r, &req); err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	id, err := h.svc.Register(r.Context(), req)
	if err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, RegisterResponse{ID: id})
}

// LoginRequest login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := response.Decode(r, &req); err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.List(r.Context())
	if err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := response.PathID(r, "id")
	if err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	v, err := h.svc.Get(r.Context(), id)
	if err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, v)
}

// Update replaces the profile of the authenticated caller.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req Profile
	if err := response.Decode(r, &req); err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	v, err := h.svc.Update(r.Context(), p, req)
	if err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, v)
}

// DeleteResponse reports the removed user and the tasks it no longer executes.
type DeleteResponse struct {
	ID            int64   `json:"id"`
	Email         string  `json:"email"`
	DetachedTasks []int64 `json:"detachedTasks"`
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := response.PathID(r, "id")
	if err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	res, err := h.svc.Delete(r.Context(), p, id)
	if err != nil {
		response.WriteError(w, r, h.logger, err)
		return
	}
	detached := res.DetachedTasks
	if detached == nil {
		detached = []int64{}
	}
	response.WriteJSON(w, http.StatusOK, DeleteResponse{ID: res.User.ID, Email: res.User.Email, DetachedTasks: detached})
}
