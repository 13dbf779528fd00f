package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abrezinsky/standings/internal/metrics"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Timeout(60 * time.Second))

	// Operations
	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Standings API (public)
	r.Route("/api/standings", func(r chi.Router) {
		r.Get("/leaderboard", h.handleLeaderboard)
		r.Get("/format/{format}", h.handleFormatStandings)
		r.Get("/format/{format}/class/{className}", h.handleClassStandings)
		r.Get("/teams", h.handleTeamStandings)
		r.Get("/formats", h.handleFormatSummaries)
		r.Get("/competitor/{key}", h.handleCompetitorStats)
		r.Get("/classes", h.handleClassCatalog)

		// Cache control (protected)
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.RequireAuthAPI)
			r.Post("/cache/clear", h.handleClearCache)
			r.Post("/cache/warm", h.handleWarmCache)
		})
	})

	// World Finals API
	r.Route("/api/world-finals", func(r chi.Router) {
		// Public
		r.Get("/qualified/{key}", h.handleIsQualified)
		r.Post("/statuses", h.handleQualificationStatuses)
		r.Post("/redeem", h.handleRedeemInvitation)

		// Protected
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.RequireAuthAPI)

			// Qualifications
			r.Post("/evaluate", h.handleEvaluate)
			r.Post("/seasons/{id}/recalculate", h.handleRecalculateSeason)
			r.Get("/seasons/{id}/qualifications", h.handleSeasonQualifications)
			r.Get("/current", h.handleCurrentQualifications)
			r.Get("/stats", h.handleQualificationStats)

			// Invitations
			r.Post("/qualifications/{id}/invite", h.handleSendInvitation)
			r.Get("/qualifications/{id}/qr", h.handleInvitationQR)
			r.Post("/seasons/{id}/invite-pending", h.handleSendAllPending)
		})
	})

	return r
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
			return
		}
	}
	respondOK(w, HealthResponse{Status: "ok"})
}
