package services

import (
	"context"

	"github.com/abrezinsky/standings/internal/models"
	"github.com/abrezinsky/standings/internal/standings"
)

// StandingsServicer defines the interface for leaderboard reads
type StandingsServicer interface {
	SeasonLeaderboard(ctx context.Context, seasonID string, limit, offset int) (*standings.Leaderboard, error)
	FormatStandings(ctx context.Context, format, seasonID string, limit, offset int) (*standings.Leaderboard, error)
	ClassStandings(ctx context.Context, format, class, seasonID string, limit, offset int) (*standings.Leaderboard, error)
	TeamStandings(ctx context.Context, seasonID string, limit, offset int) (*standings.TeamLeaderboard, error)
	FormatSummaries(ctx context.Context, seasonID string) ([]standings.FormatSummary, error)
	CompetitorStats(ctx context.Context, competitorKey, seasonID string) (*standings.CompetitorStats, error)
	ClassCatalog(ctx context.Context, format, seasonID string) ([]standings.ClassSummary, error)
	ClearCache()
	WarmCache(ctx context.Context) error
}

// QualificationServicer defines the interface for qualification tracking
type QualificationServicer interface {
	Evaluate(ctx context.Context, req EvaluateRequest) (*models.Qualification, error)
	RecalculateSeason(ctx context.Context, seasonID string) (*RecalculateResult, error)
	IsQualified(ctx context.Context, competitorKey, seasonID, class string) (bool, error)
	QualificationStatuses(ctx context.Context, competitorKeys []string, seasonID string) (map[string][]string, error)
	SeasonQualifications(ctx context.Context, seasonID string) ([]models.Qualification, error)
	CurrentSeasonQualifications(ctx context.Context) ([]models.Qualification, error)
	QualificationStats(ctx context.Context, seasonID string) (*QualificationStats, error)
}

// InvitationServicer defines the interface for invitation operations
type InvitationServicer interface {
	SendInvitation(ctx context.Context, qualificationID string) (*models.Qualification, error)
	SendAllPending(ctx context.Context, seasonID string) (*BatchResult, error)
	RedeemInvitation(ctx context.Context, token string) (*models.Qualification, error)
	InvitationQRCode(ctx context.Context, qualificationID string) ([]byte, error)
}

// Ensure concrete types implement interfaces
var (
	_ StandingsServicer     = (*StandingsService)(nil)
	_ QualificationServicer = (*QualificationService)(nil)
	_ InvitationServicer    = (*InvitationService)(nil)
)
