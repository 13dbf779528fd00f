package handlers

// StatusesRequest asks for the qualified classes of several competitors
type StatusesRequest struct {
	SeasonID       string   `json:"season_id"`
	CompetitorKeys []string `json:"competitor_keys"`
}

// RedeemRequest carries an invitation token
type RedeemRequest struct {
	Token string `json:"token"`
}

// EvaluateRequest asks to evaluate one competitor in one class
type EvaluateRequest struct {
	CompetitorKey    string  `json:"competitor_key"`
	CompetitorName   string  `json:"competitor_name"`
	UserID           *string `json:"user_id"`
	SeasonID         string  `json:"season_id"`
	CompetitionClass string  `json:"competition_class"`
}
