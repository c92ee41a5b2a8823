package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTP метрики
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "path"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests in flight",
		},
	)
	HTTPRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// Выдача купонов
	CouponIssuanceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_issuance_total",
			Help: "Coupon issuance attempts by outcome",
		},
		[]string{"outcome"},
	)
	CouponReservationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coupon_reservation_duration_seconds",
			Help:    "Duration of the reservation + ledger transaction",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)
	CouponEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_events_published_total",
			Help: "Issuance events handed to the broker",
		},
		[]string{"status"},
	)

	// Короткие ссылки
	LinkRedirectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_redirects_total",
			Help: "Short link resolutions by result",
		},
		[]string{"result"},
	)
	LinkCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_cache_lookups_total",
			Help: "Short code cache lookups",
		},
		[]string{"result"},
	)
	SnowflakeIDsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snowflake_ids_generated_total",
			Help: "Identifiers produced by the snowflake generator",
		},
	)
)

var initOnce sync.Once

func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(HTTPRequestsInFlight)
		prometheus.MustRegister(HTTPRateLimited)

		prometheus.MustRegister(CouponIssuanceTotal)
		prometheus.MustRegister(CouponReservationDuration)
		prometheus.MustRegister(CouponEventsPublished)

		prometheus.MustRegister(LinkRedirectsTotal)
		prometheus.MustRegister(LinkCacheLookups)
		prometheus.MustRegister(SnowflakeIDsGenerated)
	})
}
