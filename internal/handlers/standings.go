package handlers

import (
	"net/http"

	"github.com/abrezinsky/standings/internal/services"
)

// Default page sizes
const (
	DefaultLeaderboardLimit = services.WarmLeaderboardLimit
	DefaultStandingsLimit   = services.WarmStandingsLimit
)

// ==================== Standings ====================

func (h *Handlers) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r, DefaultLeaderboardLimit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	lb, err := h.Standings.SeasonLeaderboard(r.Context(), r.URL.Query().Get("seasonId"), limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, lb)
}

func (h *Handlers) handleFormatStandings(w http.ResponseWriter, r *http.Request) {
	format, err := pathParam(r, "format")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	limit, offset, err := pagination(r, DefaultStandingsLimit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	lb, err := h.Standings.FormatStandings(r.Context(), format, r.URL.Query().Get("seasonId"), limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, lb)
}

func (h *Handlers) handleClassStandings(w http.ResponseWriter, r *http.Request) {
	format, err := pathParam(r, "format")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	class, err := pathParam(r, "className")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	limit, offset, err := pagination(r, DefaultStandingsLimit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	lb, err := h.Standings.ClassStandings(r.Context(), format, class, r.URL.Query().Get("seasonId"), limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, lb)
}

func (h *Handlers) handleTeamStandings(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r, DefaultStandingsLimit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	lb, err := h.Standings.TeamStandings(r.Context(), r.URL.Query().Get("seasonId"), limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, lb)
}

func (h *Handlers) handleFormatSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Standings.FormatSummaries(r.Context(), r.URL.Query().Get("seasonId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, summaries)
}

func (h *Handlers) handleCompetitorStats(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, "key")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	stats, err := h.Standings.CompetitorStats(r.Context(), key, r.URL.Query().Get("seasonId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if stats == nil {
		h.respondError(w, r, NotFound("Competitor not found"))
		return
	}
	respondOK(w, stats)
}

func (h *Handlers) handleClassCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	catalog, err := h.Standings.ClassCatalog(r.Context(), q.Get("format"), q.Get("seasonId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, catalog)
}

// ==================== Cache ====================

func (h *Handlers) handleClearCache(w http.ResponseWriter, r *http.Request) {
	h.Standings.ClearCache()
	respondNoContent(w)
}

func (h *Handlers) handleWarmCache(w http.ResponseWriter, r *http.Request) {
	if err := h.Standings.WarmCache(r.Context()); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondSuccess(w, "Standings cache warmed")
}
