package middleware

import (
	"net/http"
	"time"

	"couponhub/pkg/logger"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger присваивает запросу id, кладёт логгер в контекст и
// пишет одну строку лога по завершении.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := logger.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		start := time.Now()
		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r)

		l := logger.Ctx(ctx)
		ev := l.Info()
		if rec.Status() >= http.StatusInternalServerError {
			ev = l.Error()
		}
		ev.Str("method", r.Method).
			Str("route", routePattern(r)).
			Str("path", r.URL.Path).
			Int("status", rec.Status()).
			Int("bytes", rec.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
