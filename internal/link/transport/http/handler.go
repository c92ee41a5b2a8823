package http

import (
	"net/http"

	"couponhub/internal/api"
	"couponhub/internal/api/dto"
	"couponhub/internal/link"
	"couponhub/internal/link/service"
	"couponhub/pkg/logger"
	"couponhub/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1/links", func(r chi.Router) {
		r.With(middleware.ValidateRequest).Post("/", h.CreateLink)
		r.Get("/short/{shortCode}", h.GetByShortCode)
		r.Get("/{linkId}", h.GetLink)
		r.Delete("/{linkId}", h.DeleteLink)
	})
	r.Route("/api/v1/monitoring", func(r chi.Router) {
		r.Get("/links", h.ListLinks)
		r.Get("/links/{linkId}/clicks", h.ClickStats)
	})
	r.Get("/r/{shortCode}", h.Redirect)
}

func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLinkRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		middleware.HandleValidationError(w, r, err)
		return
	}

	l, err := h.Service.Create(r.Context(), req.URL, req.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusCreated, h.Service.View(l))
}

func (h *Handler) GetByShortCode(w http.ResponseWriter, r *http.Request) {
	l, err := h.Service.GetByShortCode(r.Context(), chi.URLParam(r, "shortCode"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, h.Service.View(l))
}

func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "linkId")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	d, err := h.Service.Detail(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "linkId")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if err := h.Service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Redirect - GET /r/{shortCode}. Клик пишется до ответа, но его ошибка не мешает редиректу.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	l, err := h.Service.Resolve(r.Context(), chi.URLParam(r, "shortCode"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	click := &link.Click{
		LinkID:    l.ID,
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	}
	if err := h.Service.RecordClick(r.Context(), click); err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Int64("link_id", l.ID).Msg("failed to record click")
	}

	http.Redirect(w, r, service.RedirectTarget(l), http.StatusFound)
}

func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.Service.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	views := make([]link.View, 0, len(links))
	for _, l := range links {
		views = append(views, h.Service.View(l))
	}
	api.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) ClickStats(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "linkId")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	stats, err := h.Service.ClickStats(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, stats)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrLinkNotFound):
		api.WriteError(w, http.StatusNotFound, "LINK_NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		api.WriteError(w, http.StatusNotFound, "USER_NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrLinkExists):
		api.WriteError(w, http.StatusConflict, "LINK_ALREADY_EXISTS", err.Error())
	case errors.Is(err, service.ErrLinkExpired):
		api.WriteError(w, http.StatusGone, "LINK_EXPIRED", err.Error())
	case errors.Is(err, service.ErrInvalidURL):
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		logger.Ctx(r.Context()).Error().Err(err).Msg("link request failed")
		api.WriteInternal(w)
	}
}
