package mock

import (
	"context"
	"sync"
	"time"

	"github.com/abrezinsky/standings/internal/models"
	"github.com/abrezinsky/standings/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without complex database manipulation.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.FindResultsError = errors.New("database error")
//	svc := services.NewStandingsService(log, mockRepo, c, nil)
//	_, err := svc.SeasonLeaderboard(ctx, "2026", 100, 0)
//	// err will now contain the injected error
type Repository struct {
	repository.FullRepository

	// ===== Season Errors =====
	FindSeasonByIDError    error
	FindCurrentSeasonError error

	// ===== Result Errors =====
	FindResultsError     error
	ListTeamsError       error
	ListResultTeamsError error

	// ===== Profile / Notification Errors =====
	GetProfileError         error
	CreateNotificationError error

	// ===== Qualification Errors =====
	CreateQualificationError       error
	FindQualificationError         error
	GetQualificationError          error
	ListQualificationsError        error
	UpdateQualificationPointsError error
	MarkNotificationSentError      error
	MarkEmailSentError             error
	IssueInvitationError           error
	RedeemInvitationError          error

	// IssueInvitationErrorFor fails IssueInvitation only for the given ids
	IssueInvitationErrorFor map[string]error

	// BeforeCreateQualification runs before the real insert, letting tests
	// simulate another writer winning the race for the same key.
	BeforeCreateQualification func(ctx context.Context, q *models.Qualification)

	mu           sync.Mutex
	findResults  int
	createQuals  int
	pointUpdates int
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// FindResultsCalls returns how many times FindResults reached the store
func (m *Repository) FindResultsCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findResults
}

// CreateQualificationCalls returns how many inserts were attempted
func (m *Repository) CreateQualificationCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createQuals
}

// PointUpdateCalls returns how many point updates were attempted
func (m *Repository) PointUpdateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pointUpdates
}

// ===== Season Methods =====

func (m *Repository) FindSeasonByID(ctx context.Context, id string) (*models.Season, error) {
	if m.FindSeasonByIDError != nil {
		return nil, m.FindSeasonByIDError
	}
	return m.FullRepository.FindSeasonByID(ctx, id)
}

func (m *Repository) FindCurrentSeason(ctx context.Context) (*models.Season, error) {
	if m.FindCurrentSeasonError != nil {
		return nil, m.FindCurrentSeasonError
	}
	return m.FullRepository.FindCurrentSeason(ctx)
}

// ===== Result Methods =====

func (m *Repository) FindResults(ctx context.Context, filter repository.ResultFilter) ([]models.ResultRow, error) {
	m.mu.Lock()
	m.findResults++
	m.mu.Unlock()
	if m.FindResultsError != nil {
		return nil, m.FindResultsError
	}
	return m.FullRepository.FindResults(ctx, filter)
}

func (m *Repository) ListTeams(ctx context.Context) ([]models.Team, error) {
	if m.ListTeamsError != nil {
		return nil, m.ListTeamsError
	}
	return m.FullRepository.ListTeams(ctx)
}

func (m *Repository) ListResultTeams(ctx context.Context, seasonID string) ([]models.ResultTeam, error) {
	if m.ListResultTeamsError != nil {
		return nil, m.ListResultTeamsError
	}
	return m.FullRepository.ListResultTeams(ctx, seasonID)
}

// ===== Profile / Notification Methods =====

func (m *Repository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	if m.GetProfileError != nil {
		return nil, m.GetProfileError
	}
	return m.FullRepository.GetProfile(ctx, id)
}

func (m *Repository) CreateNotification(ctx context.Context, n models.Notification) (int64, error) {
	if m.CreateNotificationError != nil {
		return 0, m.CreateNotificationError
	}
	return m.FullRepository.CreateNotification(ctx, n)
}

// ===== Qualification Methods =====

func (m *Repository) CreateQualification(ctx context.Context, q *models.Qualification) error {
	m.mu.Lock()
	m.createQuals++
	m.mu.Unlock()
	if m.CreateQualificationError != nil {
		return m.CreateQualificationError
	}
	if m.BeforeCreateQualification != nil {
		m.BeforeCreateQualification(ctx, q)
	}
	return m.FullRepository.CreateQualification(ctx, q)
}

func (m *Repository) FindQualification(ctx context.Context, key models.QualificationKey) (*models.Qualification, error) {
	if m.FindQualificationError != nil {
		return nil, m.FindQualificationError
	}
	return m.FullRepository.FindQualification(ctx, key)
}

func (m *Repository) GetQualification(ctx context.Context, id string) (*models.Qualification, error) {
	if m.GetQualificationError != nil {
		return nil, m.GetQualificationError
	}
	return m.FullRepository.GetQualification(ctx, id)
}

func (m *Repository) ListQualifications(ctx context.Context, filter repository.QualificationFilter) ([]models.Qualification, error) {
	if m.ListQualificationsError != nil {
		return nil, m.ListQualificationsError
	}
	return m.FullRepository.ListQualifications(ctx, filter)
}

func (m *Repository) UpdateQualificationPoints(ctx context.Context, id string, totalPoints int) error {
	m.mu.Lock()
	m.pointUpdates++
	m.mu.Unlock()
	if m.UpdateQualificationPointsError != nil {
		return m.UpdateQualificationPointsError
	}
	return m.FullRepository.UpdateQualificationPoints(ctx, id, totalPoints)
}

func (m *Repository) MarkNotificationSent(ctx context.Context, id string, at time.Time) error {
	if m.MarkNotificationSentError != nil {
		return m.MarkNotificationSentError
	}
	return m.FullRepository.MarkNotificationSent(ctx, id, at)
}

func (m *Repository) MarkEmailSent(ctx context.Context, id string, at time.Time) error {
	if m.MarkEmailSentError != nil {
		return m.MarkEmailSentError
	}
	return m.FullRepository.MarkEmailSent(ctx, id, at)
}

func (m *Repository) IssueInvitation(ctx context.Context, id, token string, at time.Time) error {
	if m.IssueInvitationError != nil {
		return m.IssueInvitationError
	}
	if err, ok := m.IssueInvitationErrorFor[id]; ok {
		return err
	}
	return m.FullRepository.IssueInvitation(ctx, id, token, at)
}

func (m *Repository) RedeemInvitation(ctx context.Context, token string, at time.Time) (*models.Qualification, error) {
	if m.RedeemInvitationError != nil {
		return nil, m.RedeemInvitationError
	}
	return m.FullRepository.RedeemInvitation(ctx, token, at)
}
