package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"couponhub/internal/coupon"
	"couponhub/internal/coupon/coupontest"
	"couponhub/internal/coupon/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	router chi.Router
	store  *coupontest.Store
}

func newEnv(t *testing.T, tx service.TxRunner) *env {
	t.Helper()
	store := coupontest.NewStore()
	users := coupontest.NewUsers(1, 2, 3)
	if tx == nil {
		tx = &coupontest.TxRunner{Store: store}
	}
	issuer := service.NewIssuer(users, store, store.Ledger(), tx,
		service.WithClock(func() time.Time { return now }))

	r := chi.NewRouter()
	NewHandler(service.NewService(users, store, store.Ledger(), issuer)).Register(r)
	return &env{router: r, store: store}
}

func (e *env) seed(t *testing.T, capacity int, start, end time.Time) int64 {
	t.Helper()
	c := &coupon.Coupon{Name: "seed", DiscountAmount: 100, TotalQuantity: capacity, OwnerID: 1, StartDate: start, EndDate: end}
	require.NoError(t, e.store.Create(context.Background(), c))
	return c.ID
}

func (e *env) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestIssueCoupon_StatusMapping(t *testing.T) {
	e := newEnv(t, nil)
	active := e.seed(t, 1, now.Add(-time.Hour), now.Add(time.Hour))
	expired := e.seed(t, 5, now.Add(-2*time.Hour), now)
	issue := func(couponID int64, userID int64) *httptest.ResponseRecorder {
		return e.do(http.MethodPost, fmt.Sprintf("/api/coupons/%d/issue", couponID), fmt.Sprintf(`{"user_id":%d}`, userID))
	}

	rec := issue(active, 2)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var iss coupon.Issuance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &iss))
	assert.Equal(t, coupon.StatusIssued, iss.Status)
	assert.Nil(t, iss.UsedAt)

	tests := []struct {
		name     string
		couponID int64
		userID   int64
		status   int
		code     string
	}{
		{"duplicate", active, 2, http.StatusConflict, "COUPON_ALREADY_ISSUED"},
		{"sold out", active, 3, http.StatusConflict, "COUPON_SOLD_OUT"},
		{"expired", expired, 2, http.StatusGone, "COUPON_EXPIRED"},
		{"unknown coupon", 999, 2, http.StatusNotFound, "COUPON_NOT_FOUND"},
		{"unknown recipient", active, 404, http.StatusNotFound, "USER_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := issue(tt.couponID, tt.userID)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

type rejectAll struct{ store *coupontest.Store }

type rejectingInventory struct{ *coupontest.Store }

func (rejectingInventory) TryReserve(context.Context, int64, time.Time) (bool, error) {
	return false, nil
}

func (r rejectAll) InTx(_ context.Context, fn func(service.Stores) error) error {
	return fn(service.Stores{Coupons: rejectingInventory{r.store}, Issuances: r.store.Ledger()})
}

func TestIssueCoupon_AllocationFailedIs500(t *testing.T) {
	holder := &rejectAll{}
	e := newEnv(t, holder)
	holder.store = e.store
	id := e.seed(t, 5, now.Add(-time.Hour), now.Add(time.Hour))

	rec := e.do(http.MethodPost, fmt.Sprintf("/api/coupons/%d/issue", id), `{"user_id":2}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "COUPON_ALLOCATION_FAILED", errorCode(t, rec))
}

func TestIssueCoupon_StorageFailureIs500(t *testing.T) {
	e := newEnv(t, nil)
	id := e.seed(t, 5, now.Add(-time.Hour), now.Add(time.Hour))
	e.store.FailReserve = fmt.Errorf("connection reset")

	rec := e.do(http.MethodPost, fmt.Sprintf("/api/coupons/%d/issue", id), `{"user_id":2}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
}

func TestIssueCoupon_BadInput(t *testing.T) {
	e := newEnv(t, nil)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"non numeric coupon", "/api/coupons/abc/issue", `{"user_id":2}`},
		{"missing user", "/api/coupons/1/issue", `{}`},
		{"negative user", "/api/coupons/1/issue", `{"user_id":-1}`},
		{"malformed body", "/api/coupons/1/issue", `{"user_id":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateAndReadCoupon(t *testing.T) {
	e := newEnv(t, nil)

	body := `{"name":"Summer","discount_amount":1500,"total_quantity":10,"user_id":1,` +
		`"start_date":"2025-06-01T00:00:00Z","end_date":"2025-07-01T00:00:00Z"}`
	rec := e.do(http.MethodPost, "/api/coupons", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var c coupon.Coupon
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, 0, c.IssuedCount)
	assert.Equal(t, int64(1), c.OwnerID)

	rec = e.do(http.MethodGet, fmt.Sprintf("/api/coupons/%d", c.ID), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodGet, "/api/coupons?ownerId=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []coupon.Coupon
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = e.do(http.MethodGet, "/api/coupons", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodGet, "/api/coupons/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateCoupon_Rejections(t *testing.T) {
	e := newEnv(t, nil)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"zero quantity", `{"name":"x","discount_amount":1,"total_quantity":0,"user_id":1,"start_date":"2025-06-01T00:00:00Z","end_date":"2025-07-01T00:00:00Z"}`, http.StatusBadRequest},
		{"end before start", `{"name":"x","discount_amount":1,"total_quantity":1,"user_id":1,"start_date":"2025-07-01T00:00:00Z","end_date":"2025-06-01T00:00:00Z"}`, http.StatusBadRequest},
		{"unknown owner", `{"name":"x","discount_amount":1,"total_quantity":1,"user_id":77,"start_date":"2025-06-01T00:00:00Z","end_date":"2025-07-01T00:00:00Z"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/api/coupons", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestIssuanceListings(t *testing.T) {
	e := newEnv(t, nil)
	id := e.seed(t, 5, now.Add(-time.Hour), now.Add(time.Hour))

	rec := e.do(http.MethodPost, fmt.Sprintf("/api/coupons/%d/issue", id), `{"user_id":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var iss coupon.Issuance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &iss))

	paths := []string{
		"/api/coupons/issuances",
		fmt.Sprintf("/api/coupons/%d/issuances", id),
		"/api/users/2/coupons",
	}
	for _, p := range paths {
		rec := e.do(http.MethodGet, p, "")
		require.Equal(t, http.StatusOK, rec.Code, p)
		var list []coupon.Issuance
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Len(t, list, 1, p)
	}

	rec = e.do(http.MethodGet, fmt.Sprintf("/api/coupons/issuances/%d", iss.ID), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodGet, "/api/coupons/issuances/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodGet, "/api/users/50/coupons", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserIssuancesRouteCoexistsWithUsersRouter(t *testing.T) {
	e := newEnv(t, nil)
	e.router.Route("/api/users", func(r chi.Router) {
		r.Get("/{userId}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	})

	rec := e.do(http.MethodGet, "/api/users/2/coupons", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodGet, "/api/users/2", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
