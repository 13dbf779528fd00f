package repository

import (
	"context"
	"time"

	"github.com/abrezinsky/standings/internal/models"
)

// ResultFilter narrows a result query. Empty fields do not filter.
type ResultFilter struct {
	SeasonID         string
	Format           string
	CompetitionClass string
	CompetitorKey    string
}

// QualificationFilter narrows a qualification query. Empty fields do not
// filter.
type QualificationFilter struct {
	SeasonID         string
	CompetitorKeys   []string
	CompetitionClass string
	InvitationSent   *bool
}

// SeasonRepository defines season data operations
type SeasonRepository interface {
	CreateSeason(ctx context.Context, season models.Season) error
	FindSeasonByID(ctx context.Context, id string) (*models.Season, error)
	FindCurrentSeason(ctx context.Context) (*models.Season, error)
	SetQualificationThreshold(ctx context.Context, seasonID string, threshold *int) error
}

// ResultRepository defines competition result data operations
type ResultRepository interface {
	CreateResult(ctx context.Context, row models.ResultRow) (string, error)
	FindResults(ctx context.Context, filter ResultFilter) ([]models.ResultRow, error)
	CreateTeam(ctx context.Context, team models.Team) error
	ListTeams(ctx context.Context) ([]models.Team, error)
	LinkResultTeam(ctx context.Context, link models.ResultTeam) error
	ListResultTeams(ctx context.Context, seasonID string) ([]models.ResultTeam, error)
}

// ProfileRepository defines user profile lookups
type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile models.Profile) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
}

// NotificationRepository stores in-app notifications
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n models.Notification) (int64, error)
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
}

// QualificationRepository defines qualification record operations.
// Delivery flags are only ever set, never cleared.
type QualificationRepository interface {
	CreateQualification(ctx context.Context, q *models.Qualification) error
	GetQualification(ctx context.Context, id string) (*models.Qualification, error)
	FindQualification(ctx context.Context, key models.QualificationKey) (*models.Qualification, error)
	ListQualifications(ctx context.Context, filter QualificationFilter) ([]models.Qualification, error)
	UpdateQualificationPoints(ctx context.Context, id string, totalPoints int) error
	MarkNotificationSent(ctx context.Context, id string, at time.Time) error
	MarkEmailSent(ctx context.Context, id string, at time.Time) error
	IssueInvitation(ctx context.Context, id, token string, at time.Time) error
	RedeemInvitation(ctx context.Context, token string, at time.Time) (*models.Qualification, error)
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	SeasonRepository
	ResultRepository
	ProfileRepository
	NotificationRepository
	QualificationRepository
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
