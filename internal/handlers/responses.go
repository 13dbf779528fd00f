package handlers

import "github.com/abrezinsky/standings/internal/models"

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// QualifiedResponse answers whether a competitor qualified
type QualifiedResponse struct {
	CompetitorKey string `json:"competitor_key"`
	SeasonID      string `json:"season_id,omitempty"`
	Class         string `json:"class,omitempty"`
	Qualified     bool   `json:"qualified"`
}

// StatusesResponse maps competitor keys to their qualified classes
type StatusesResponse struct {
	SeasonID string              `json:"season_id"`
	Statuses map[string][]string `json:"statuses"`
}

// EvaluateResponse is the outcome of an evaluation. Qualification is nil
// when the competitor did not qualify.
type EvaluateResponse struct {
	Qualified     bool                  `json:"qualified"`
	Qualification *models.Qualification `json:"qualification"`
}

// QualificationsResponse lists qualification records
type QualificationsResponse struct {
	Qualifications []models.Qualification `json:"qualifications"`
	Total          int                    `json:"total"`
}

// HealthResponse reports service health
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
