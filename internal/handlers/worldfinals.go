package handlers

import (
	"net/http"

	"github.com/abrezinsky/standings/internal/services"
)

// ==================== Qualification Queries ====================

func (h *Handlers) handleIsQualified(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, "key")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	seasonID, class := q.Get("seasonId"), q.Get("class")

	ok, err := h.Qualifications.IsQualified(r.Context(), key, seasonID, class)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, QualifiedResponse{CompetitorKey: key, SeasonID: seasonID, Class: class, Qualified: ok})
}

func (h *Handlers) handleQualificationStatuses(w http.ResponseWriter, r *http.Request) {
	var req StatusesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	statuses, err := h.Qualifications.QualificationStatuses(r.Context(), req.CompetitorKeys, req.SeasonID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, StatusesResponse{SeasonID: req.SeasonID, Statuses: statuses})
}

func (h *Handlers) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	q, err := h.Qualifications.Evaluate(r.Context(), services.EvaluateRequest{
		CompetitorKey:    req.CompetitorKey,
		CompetitorName:   req.CompetitorName,
		UserID:           req.UserID,
		SeasonID:         req.SeasonID,
		CompetitionClass: req.CompetitionClass,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, EvaluateResponse{Qualified: q != nil, Qualification: q})
}

func (h *Handlers) handleRecalculateSeason(w http.ResponseWriter, r *http.Request) {
	seasonID, err := pathParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.Qualifications.RecalculateSeason(r.Context(), seasonID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, result)
}

func (h *Handlers) handleSeasonQualifications(w http.ResponseWriter, r *http.Request) {
	seasonID, err := pathParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	list, err := h.Qualifications.SeasonQualifications(r.Context(), seasonID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, QualificationsResponse{Qualifications: list, Total: len(list)})
}

func (h *Handlers) handleCurrentQualifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.Qualifications.CurrentSeasonQualifications(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, QualificationsResponse{Qualifications: list, Total: len(list)})
}

func (h *Handlers) handleQualificationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Qualifications.QualificationStats(r.Context(), r.URL.Query().Get("seasonId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, stats)
}

// ==================== Invitations ====================

func (h *Handlers) handleSendInvitation(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	q, err := h.Invitations.SendInvitation(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, q)
}

func (h *Handlers) handleInvitationQR(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	png, err := h.Invitations.InvitationQRCode(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

func (h *Handlers) handleSendAllPending(w http.ResponseWriter, r *http.Request) {
	seasonID, err := pathParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.Invitations.SendAllPending(r.Context(), seasonID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, result)
}

func (h *Handlers) handleRedeemInvitation(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.Token == "" {
		h.respondError(w, r, BadRequest("token is required"))
		return
	}

	q, err := h.Invitations.RedeemInvitation(r.Context(), req.Token)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if q == nil {
		h.respondError(w, r, NotFound("Invitation not found or already used"))
		return
	}
	respondOK(w, q)
}
