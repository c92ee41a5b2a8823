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

	"couponhub/internal/link/linktest"
	"couponhub/internal/link/service"
	"couponhub/pkg/snowflake"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type users map[int64]bool

func (u users) Exists(_ context.Context, id int64) (bool, error) { return u[id], nil }

type linkBody struct {
	ID          int64  `json:"link_id"`
	OriginalURL string `json:"original_url"`
	ShortCode   string `json:"short_code"`
	ShortURL    string `json:"short_url"`
	ClickCount  int64  `json:"click_count"`
}

type env struct {
	router chi.Router
	store  *linktest.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gen, err := snowflake.New(0, 3)
	require.NoError(t, err)
	store := linktest.NewStore()
	svc := service.NewService(store, store.Clicks(), users{1: true}, service.NewCodeGenerator(gen),
		"http://localhost:8080", service.WithClock(func() time.Time { return now }))

	r := chi.NewRouter()
	NewHandler(svc).Register(r)
	return &env{router: r, store: store}
}

func (e *env) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) create(t *testing.T, url string) linkBody {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/v1/links", fmt.Sprintf(`{"url":%q,"user_id":1}`, url))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body linkBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreateLink(t *testing.T) {
	e := newEnv(t)

	l := e.create(t, "example.com/docs")
	assert.NotZero(t, l.ID)
	assert.Equal(t, "http://localhost:8080/r/"+l.ShortCode, l.ShortURL)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"duplicate url", `{"url":"example.com/docs","user_id":1}`, http.StatusConflict},
		{"unknown user", `{"url":"example.com/other","user_id":5}`, http.StatusNotFound},
		{"missing url", `{"user_id":1}`, http.StatusBadRequest},
		{"unknown field", `{"url":"a.com","user_id":1,"x":1}`, http.StatusBadRequest},
		{"bad url", `{"url":"https://","user_id":1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/api/v1/links", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestRedirectRecordsClick(t *testing.T) {
	e := newEnv(t)
	l := e.create(t, "example.com/landing")

	rec := e.do(http.MethodGet, "/r/"+l.ShortCode, "",
		"X-Forwarded-For", "203.0.113.7, 10.0.0.1", "User-Agent", "curl/8", "Referer", "https://ref.test")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/landing", rec.Header().Get("Location"))

	rec = e.do(http.MethodGet, fmt.Sprintf("/api/v1/monitoring/links/%d/clicks", l.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Count  int64 `json:"click_count"`
		Clicks []struct {
			IPAddress string `json:"ip_address"`
			UserAgent string `json:"user_agent"`
			Referer   string `json:"referer"`
		} `json:"clicks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Count)
	require.Len(t, stats.Clicks, 1)
	assert.Equal(t, "203.0.113.7", stats.Clicks[0].IPAddress)
	assert.Equal(t, "curl/8", stats.Clicks[0].UserAgent)
	assert.Equal(t, "https://ref.test", stats.Clicks[0].Referer)

	rec = e.do(http.MethodGet, fmt.Sprintf("/api/v1/links/%d", l.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail linkBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, int64(1), detail.ClickCount)
}

func TestRedirect_Errors(t *testing.T) {
	e := newEnv(t)
	l := e.create(t, "https://example.com/gone")
	e.store.Expire(l.ID, now.Add(-time.Second))

	rec := e.do(http.MethodGet, "/r/"+l.ShortCode, "")
	assert.Equal(t, http.StatusGone, rec.Code)

	rec = e.do(http.MethodGet, "/r/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLinkReadsAndDelete(t *testing.T) {
	e := newEnv(t)
	l := e.create(t, "https://example.com/read")

	rec := e.do(http.MethodGet, "/api/v1/links/short/"+l.ShortCode, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodGet, "/api/v1/monitoring/links", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []linkBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, l.ShortURL, list[0].ShortURL)

	rec = e.do(http.MethodDelete, fmt.Sprintf("/api/v1/links/%d", l.ID), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	for _, path := range []string{
		fmt.Sprintf("/api/v1/links/%d", l.ID),
		"/api/v1/links/short/" + l.ShortCode,
		fmt.Sprintf("/api/v1/monitoring/links/%d/clicks", l.ID),
	} {
		rec = e.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec = e.do(http.MethodDelete, fmt.Sprintf("/api/v1/links/%d", l.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodGet, "/api/v1/links/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
