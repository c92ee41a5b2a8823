package http

import (
	"net/http"
	"strconv"

	"couponhub/internal/api"
	"couponhub/internal/api/dto"
	"couponhub/internal/coupon/service"
	"couponhub/pkg/logger"
	"couponhub/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type Handler struct {
	Service *service.Service
	// IssueLimiter ограничивает частоту выдачи; nil - без ограничений.
	IssueLimiter func(http.Handler) http.Handler
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

func (h *Handler) Register(r chi.Router) {
	issue := chi.Chain(middleware.ValidateRequest)
	if h.IssueLimiter != nil {
		issue = chi.Chain(h.IssueLimiter, middleware.ValidateRequest)
	}

	r.Route("/api/coupons", func(r chi.Router) {
		r.With(middleware.ValidateRequest).Post("/", h.CreateCoupon)
		r.Get("/", h.ListCoupons)
		r.Get("/issuances", h.ListIssuances)
		r.Get("/issuances/{issuanceId}", h.GetIssuance)
		r.Get("/{couponId}", h.GetCoupon)
		r.Get("/{couponId}/issuances", h.ListCouponIssuances)
		r.With(issue...).Post("/{couponId}/issue", h.IssueCoupon)
	})
	r.Get("/api/users/{userId}/coupons", h.ListUserIssuances)
}

func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCouponRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		middleware.HandleValidationError(w, r, err)
		return
	}

	c, err := h.Service.Register(r.Context(), service.NewCoupon{
		Name:           req.Name,
		DiscountAmount: req.DiscountAmount,
		TotalQuantity:  req.TotalQuantity,
		OwnerID:        req.UserID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "couponId")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	c, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, c)
}

// ListCoupons - GET /api/coupons?ownerId=
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	ownerID, err := strconv.ParseInt(r.URL.Query().Get("ownerId"), 10, 64)
	if err != nil || ownerID <= 0 {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "ownerId query parameter is required")
		return
	}

	coupons, err := h.Service.ListByOwner(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, coupons)
}

func (h *Handler) IssueCoupon(w http.ResponseWriter, r *http.Request) {
	couponID, err := api.PathID(r, "couponId")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	var req dto.IssueCouponRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := dto.Validate.Struct(req); err != nil {
		middleware.HandleValidationError(w, r, err)
		return
	}

	iss, err := h.Service.Issue(r.Context(), couponID, req.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusCreated, iss)
}

func (h *Handler) GetIssuance(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "issuanceId")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	iss, err := h.Service.GetIssuance(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, iss)
}

func (h *Handler) ListIssuances(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListIssuances(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) ListCouponIssuances(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "couponId")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	list, err := h.Service.ListIssuancesByCoupon(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) ListUserIssuances(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "userId")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	list, err := h.Service.ListIssuancesByUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, list)
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrCouponNotFound, http.StatusNotFound, "COUPON_NOT_FOUND"},
	{service.ErrRecipientNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{service.ErrOwnerNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{service.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{service.ErrIssuanceNotFound, http.StatusNotFound, "ISSUANCE_NOT_FOUND"},
	{service.ErrDuplicateAllocation, http.StatusConflict, "COUPON_ALREADY_ISSUED"},
	{service.ErrCouponExhausted, http.StatusConflict, "COUPON_SOLD_OUT"},
	{service.ErrCouponExpired, http.StatusGone, "COUPON_EXPIRED"},
	{service.ErrInvalidCoupon, http.StatusBadRequest, "VALIDATION_ERROR"},
	{service.ErrAllocationFailed, http.StatusInternalServerError, "COUPON_ALLOCATION_FAILED"},
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			api.WriteError(w, m.status, m.code, err.Error())
			return
		}
	}

	logger.Ctx(r.Context()).Error().Err(err).Msg("coupon request failed")
	api.WriteInternal(w)
}
