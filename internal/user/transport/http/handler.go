package http

import (
	"net/http"
	"net/url"

	"couponhub/internal/api"
	"couponhub/internal/api/dto"
	"couponhub/internal/user/service"
	"couponhub/pkg/logger"
	"couponhub/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type Handler struct {
	UserService *service.UserService
}

func NewHandler(us *service.UserService) *Handler {
	return &Handler{UserService: us}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/api/users", func(r chi.Router) {
		r.With(middleware.ValidateRequest).Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/email/{email}", h.GetByEmail)
		r.Get("/name/{name}", h.ListByName)
		r.Get("/{userId}", h.Get)
		r.With(middleware.ValidateRequest).Put("/{userId}", h.Update)
		r.Delete("/{userId}", h.Delete)
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		middleware.HandleValidationError(w, r, err)
		return
	}

	u, err := h.UserService.Create(r.Context(), req.Email, req.Name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "userId")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	u, err := h.UserService.GetByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || email == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid email")
		return
	}

	u, err := h.UserService.GetByEmail(r.Context(), email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, u)
}

// ListByName - GET /api/users/name/{name}; пустой список, если никого нет.
func (h *Handler) ListByName(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid name")
		return
	}

	users, err := h.UserService.ListByName(r.Context(), name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserService.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "userId")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	var req dto.UpdateUserRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		middleware.HandleValidationError(w, r, err)
		return
	}

	u, err := h.UserService.Update(r.Context(), id, req.Email, req.Name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "userId")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if err := h.UserService.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		api.WriteError(w, http.StatusNotFound, "USER_NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		api.WriteError(w, http.StatusConflict, "EMAIL_ALREADY_EXISTS", err.Error())
	case errors.Is(err, service.ErrUserInUse):
		api.WriteError(w, http.StatusConflict, "USER_IN_USE", err.Error())
	default:
		logger.Ctx(r.Context()).Error().Err(err).Msg("user request failed")
		api.WriteInternal(w)
	}
}
