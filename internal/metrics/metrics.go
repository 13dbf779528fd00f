package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors
var (
	// CacheRequests counts standings cache lookups by hit or miss
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "standings_cache_requests_total", Help: "Standings cache lookups by result"},
		[]string{"result"},
	)
	// CacheWarmRuns counts warm cycles by outcome
	CacheWarmRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "standings_cache_warm_runs_total", Help: "Cache warm cycles by outcome"},
		[]string{"outcome"},
	)
	// Qualifications counts qualification records created or updated
	Qualifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "qualifications_total", Help: "Qualification records written by action"},
		[]string{"action"},
	)
	// EffectOutcomes counts notification and email attempts by outcome
	EffectOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "qualification_effects_total", Help: "Best-effort side effects by kind and outcome"},
		[]string{"effect", "outcome"},
	)
	// Invitations counts invitations sent and redeemed
	Invitations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "invitations_total", Help: "Invitation lifecycle events"},
		[]string{"event"},
	)
	// HTTPRequests counts requests by route pattern, method and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total number of HTTP requests"},
		[]string{"route", "method", "status"},
	)
	// HTTPDuration observes request latency by route pattern and method
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// Label values
const (
	Hit  = "hit"
	Miss = "miss"

	Success = "success"
	Failure = "failure"
	Skipped = "skipped"

	Created = "created"
	Updated = "updated"

	Sent     = "sent"
	Redeemed = "redeemed"
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CacheRequests,
			CacheWarmRuns,
			Qualifications,
			EffectOutcomes,
			Invitations,
			HTTPRequests,
			HTTPDuration,
		)
	})
}

// Middleware records request counts and durations labelled by chi route
// pattern, keeping path parameters out of the label set.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
