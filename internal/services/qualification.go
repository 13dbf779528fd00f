package services

import (
	"cmp"
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/jonboulle/clockwork"

	"github.com/abrezinsky/standings/internal/keylock"
	"github.com/abrezinsky/standings/internal/logger"
	"github.com/abrezinsky/standings/internal/metrics"
	"github.com/abrezinsky/standings/internal/models"
	"github.com/abrezinsky/standings/internal/repository"
	"github.com/abrezinsky/standings/pkg/mailer"
)

// QualificationServiceRepository defines the repository methods needed by QualificationService
type QualificationServiceRepository interface {
	repository.SeasonRepository
	repository.ResultRepository
	repository.ProfileRepository
	repository.QualificationRepository
}

// EvaluateRequest identifies the competitor, season and class to evaluate
type EvaluateRequest struct {
	CompetitorKey    string  `json:"competitor_key"`
	CompetitorName   string  `json:"competitor_name"`
	UserID           *string `json:"user_id,omitempty"`
	SeasonID         string  `json:"season_id"`
	CompetitionClass string  `json:"competition_class"`
}

// RecalculateResult counts the records a recalculation touched
type RecalculateResult struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// ClassCount is the number of qualifications in one class
type ClassCount struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

// QualificationStats summarizes a season's qualifications and deliveries
type QualificationStats struct {
	SeasonID                string       `json:"season_id"`
	TotalQualifications     int          `json:"total_qualifications"`
	UniqueCompetitors       int          `json:"unique_competitors"`
	ClassesByQualifications []ClassCount `json:"classes_by_qualifications"`
	NotificationsSent       int          `json:"notifications_sent"`
	EmailsSent              int          `json:"emails_sent"`
	InvitationsSent         int          `json:"invitations_sent"`
	InvitationsRedeemed     int          `json:"invitations_redeemed"`
	QualificationThreshold  *int         `json:"qualification_threshold"`
}

// Links shown to a newly qualified competitor
const (
	qualifiedNotificationLink = "/my-meca?tab=analytics"
	dashboardPath             = "/my-meca"
)

type upsertOutcome int

const (
	outcomeUnchanged upsertOutcome = iota
	outcomeCreated
	outcomeUpdated
)

// QualificationService tracks which competitors reached a season's
// qualification threshold in a class
type QualificationService struct {
	log      logger.Logger
	repo     QualificationServiceRepository
	notifier Notifier
	mail     mailer.Client
	baseURL  string
	locks    *keylock.Locker
	clock    clockwork.Clock
}

// NewQualificationService creates a new QualificationService
func NewQualificationService(log logger.Logger, repo QualificationServiceRepository, notifier Notifier, mail mailer.Client, baseURL string) *QualificationService {
	return &QualificationService{
		log:      log,
		repo:     repo,
		notifier: notifier,
		mail:     mail,
		baseURL:  baseURL,
		locks:    keylock.New(),
		clock:    clockwork.NewRealClock(),
	}
}

// SetClock replaces the clock used for timestamps
func (s *QualificationService) SetClock(c clockwork.Clock) {
	s.clock = c
}

func thresholdOf(season *models.Season) (int, bool) {
	if season == nil || season.QualificationPointsThreshold == nil || *season.QualificationPointsThreshold <= 0 {
		return 0, false
	}
	return *season.QualificationPointsThreshold, true
}

// findSeason returns nil without an error when the season does not exist
func (s *QualificationService) findSeason(ctx context.Context, seasonID string) (*models.Season, error) {
	season, err := s.repo.FindSeasonByID(ctx, seasonID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find season: %w", err)
	}
	return season, nil
}

// qualifiableKey reports whether a competitor key can hold a qualification.
// Guests and keys that are not numeric membership ids never qualify.
func qualifiableKey(key string) bool {
	if models.IsGuestKey(key) {
		return false
	}
	_, err := strconv.Atoi(key)
	return err == nil
}

// currentSeason returns nil without an error when no season is current
func (s *QualificationService) currentSeason(ctx context.Context) (*models.Season, error) {
	season, err := s.repo.FindCurrentSeason(ctx)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find current season: %w", err)
	}
	return season, nil
}

// Evaluate checks one competitor's points in a class against the season
// threshold and records the qualification when it is met. It returns nil
// without an error for guests, non-numeric keys, seasons without a
// threshold, and totals below the threshold.
func (s *QualificationService) Evaluate(ctx context.Context, req EvaluateRequest) (*models.Qualification, error) {
	if !qualifiableKey(req.CompetitorKey) {
		return nil, nil
	}
	if req.SeasonID == "" {
		return nil, ErrSeasonMissing
	}
	if req.CompetitionClass == "" {
		return nil, ErrClassMissing
	}

	season, err := s.findSeason(ctx, req.SeasonID)
	if err != nil {
		return nil, err
	}
	threshold, ok := thresholdOf(season)
	if !ok {
		return nil, nil
	}

	rows, err := s.repo.FindResults(ctx, repository.ResultFilter{
		SeasonID:         req.SeasonID,
		CompetitorKey:    req.CompetitorKey,
		CompetitionClass: req.CompetitionClass,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	total := 0
	for _, row := range rows {
		total += row.Points()
	}
	if total < threshold {
		return nil, nil
	}

	q, outcome, err := s.upsert(ctx, models.Qualification{
		SeasonID:         req.SeasonID,
		CompetitorKey:    req.CompetitorKey,
		CompetitorName:   req.CompetitorName,
		UserID:           req.UserID,
		CompetitionClass: req.CompetitionClass,
		TotalPoints:      total,
	})
	if err != nil {
		return nil, err
	}
	if outcome == outcomeCreated {
		s.deliverQualified(ctx, q, season, threshold)
	}
	return q, nil
}

// upsert creates the record for candidate's key or syncs the points of the
// existing one. Calls for the same key are serialized; a record created by
// another process in between is treated as existing.
func (s *QualificationService) upsert(ctx context.Context, candidate models.Qualification) (*models.Qualification, upsertOutcome, error) {
	key := candidate.Key()
	unlock := s.locks.Lock(key.String())
	defer unlock()

	existing, err := s.repo.FindQualification(ctx, key)
	if err == nil {
		return s.syncPoints(ctx, existing, candidate.TotalPoints)
	}
	if !stderrors.Is(err, repository.ErrNotFound) {
		return nil, outcomeUnchanged, fmt.Errorf("failed to find qualification: %w", err)
	}

	q := candidate
	q.QualifiedAt = s.clock.Now().UTC()
	err = s.repo.CreateQualification(ctx, &q)
	if stderrors.Is(err, repository.ErrDuplicate) {
		s.log.Debug("Qualification created concurrently", "key", key.String())
		winner, findErr := s.repo.FindQualification(ctx, key)
		if findErr != nil {
			return nil, outcomeUnchanged, fmt.Errorf("failed to find qualification: %w", findErr)
		}
		return s.syncPoints(ctx, winner, candidate.TotalPoints)
	}
	if err != nil {
		return nil, outcomeUnchanged, fmt.Errorf("failed to create qualification: %w", err)
	}

	metrics.Qualifications.WithLabelValues(metrics.Created).Inc()
	s.log.Info("Competitor qualified",
		"competitor_key", q.CompetitorKey,
		"season_id", q.SeasonID,
		"class", q.CompetitionClass,
		"points", q.TotalPoints)
	return &q, outcomeCreated, nil
}

func (s *QualificationService) syncPoints(ctx context.Context, q *models.Qualification, points int) (*models.Qualification, upsertOutcome, error) {
	if q.TotalPoints == points {
		return q, outcomeUnchanged, nil
	}
	if err := s.repo.UpdateQualificationPoints(ctx, q.ID, points); err != nil {
		return nil, outcomeUnchanged, fmt.Errorf("failed to update qualification points: %w", err)
	}
	metrics.Qualifications.WithLabelValues(metrics.Updated).Inc()
	s.log.Debug("Qualification points updated", "id", q.ID, "from", q.TotalPoints, "to", points)
	q.TotalPoints = points
	return q, outcomeUpdated, nil
}

// deliverQualified sends the in-app notification and the email for a new
// record. Failures are logged and leave the delivery flags unset.
func (s *QualificationService) deliverQualified(ctx context.Context, q *models.Qualification, season *models.Season, threshold int) {
	log := s.log.With("qualification_id", q.ID, "competitor_key", q.CompetitorKey)

	sent := runEffect(ctx, log, EffectNotification, func(ctx context.Context) error {
		if q.UserID == nil || *q.UserID == "" {
			return errEffectSkipped
		}
		title := fmt.Sprintf("Congratulations! You've Qualified for World Finals in %s!", q.CompetitionClass)
		message := fmt.Sprintf("You have earned %d points in %s during the %s, meeting the %d-point qualification threshold for World Finals! Stay tuned for your exclusive pre-registration invitation.",
			q.TotalPoints, q.CompetitionClass, season.Name, threshold)
		return s.notifier.SendInAppNotification(ctx, *q.UserID, title, message, qualifiedNotificationLink)
	})
	if sent {
		now := s.clock.Now().UTC()
		if err := s.repo.MarkNotificationSent(ctx, q.ID, now); err != nil {
			log.Error("Failed to record notification delivery", "error", err)
		} else {
			q.NotificationSent = true
			q.NotificationSentAt = &now
		}
	}

	sent = runEffect(ctx, log, EffectEmail, func(ctx context.Context) error {
		profile, err := resolveProfile(ctx, s.repo, q)
		if err != nil {
			return err
		}
		html, err := renderEmail("qualified", qualifiedEmail{
			FirstName:    firstName(profile.FirstName, q.CompetitorName),
			Class:        q.CompetitionClass,
			Points:       q.TotalPoints,
			SeasonName:   season.Name,
			Threshold:    threshold,
			DashboardURL: joinURL(s.baseURL, dashboardPath),
		})
		if err != nil {
			return err
		}
		return s.mail.SendEmail(ctx, mailer.Message{
			To:      profile.Email,
			Subject: fmt.Sprintf("You've Qualified for World Finals in %s!", q.CompetitionClass),
			HTML:    html,
		})
	})
	if sent {
		now := s.clock.Now().UTC()
		if err := s.repo.MarkEmailSent(ctx, q.ID, now); err != nil {
			log.Error("Failed to record email delivery", "error", err)
		} else {
			q.EmailSent = true
			q.EmailSentAt = &now
		}
	}
}

// resolveProfile returns the record's contact profile. A record with no
// reachable email address yields errEffectSkipped.
func resolveProfile(ctx context.Context, repo repository.ProfileRepository, q *models.Qualification) (*models.Profile, error) {
	if q.UserID == nil || *q.UserID == "" {
		return nil, errEffectSkipped
	}
	profile, err := repo.GetProfile(ctx, *q.UserID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, errEffectSkipped
	}
	if err != nil {
		return nil, err
	}
	if profile.Email == "" {
		return nil, errEffectSkipped
	}
	return profile, nil
}

type recalcCandidate struct {
	key    models.QualificationKey
	name   string
	userID *string
	points int
}

// RecalculateSeason re-evaluates every registered competitor and class of
// a season in one pass. A failure on one candidate is counted and does not
// stop the rest.
func (s *QualificationService) RecalculateSeason(ctx context.Context, seasonID string) (*RecalculateResult, error) {
	if seasonID == "" {
		return nil, ErrSeasonMissing
	}
	result := &RecalculateResult{}

	season, err := s.findSeason(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	threshold, ok := thresholdOf(season)
	if !ok {
		s.log.Info("Season has no qualification threshold, nothing to recalculate", "season_id", seasonID)
		return result, nil
	}

	rows, err := s.repo.FindResults(ctx, repository.ResultFilter{SeasonID: seasonID})
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	var order []models.QualificationKey
	candidates := make(map[models.QualificationKey]*recalcCandidate)
	for _, row := range rows {
		if row.CompetitionClass == "" || !qualifiableKey(row.CompetitorKey) {
			continue
		}
		key := models.QualificationKey{SeasonID: seasonID, CompetitorKey: row.CompetitorKey, CompetitionClass: row.CompetitionClass}
		c, ok := candidates[key]
		if !ok {
			c = &recalcCandidate{key: key, name: row.CompetitorName}
			candidates[key] = c
			order = append(order, key)
		}
		if c.userID == nil && row.CompetitorUserID != nil {
			c.userID = row.CompetitorUserID
		}
		c.points += row.Points()
	}

	for _, key := range order {
		c := candidates[key]
		if c.points < threshold {
			continue
		}
		q, outcome, err := s.upsert(ctx, models.Qualification{
			SeasonID:         key.SeasonID,
			CompetitorKey:    key.CompetitorKey,
			CompetitorName:   c.name,
			UserID:           c.userID,
			CompetitionClass: key.CompetitionClass,
			TotalPoints:      c.points,
		})
		if err != nil {
			result.Failed++
			s.log.Error("Failed to recalculate qualification", "key", key.String(), "error", err)
			continue
		}
		switch outcome {
		case outcomeCreated:
			result.New++
			s.deliverQualified(ctx, q, season, threshold)
		case outcomeUpdated:
			result.Updated++
		}
	}

	s.log.Info("Season qualifications recalculated",
		"season_id", seasonID, "new", result.New, "updated", result.Updated, "failed", result.Failed)
	return result, nil
}

// IsQualified reports whether the competitor qualified in the season. An
// empty class matches any class; an empty seasonID uses the current season.
func (s *QualificationService) IsQualified(ctx context.Context, competitorKey, seasonID, class string) (bool, error) {
	if competitorKey == "" {
		return false, ErrCompetitorKeyMissing
	}
	if seasonID == "" {
		season, err := s.currentSeason(ctx)
		if err != nil || season == nil {
			return false, err
		}
		seasonID = season.ID
	}

	if class != "" {
		_, err := s.repo.FindQualification(ctx, models.QualificationKey{
			SeasonID: seasonID, CompetitorKey: competitorKey, CompetitionClass: class,
		})
		if stderrors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to find qualification: %w", err)
		}
		return true, nil
	}

	list, err := s.repo.ListQualifications(ctx, repository.QualificationFilter{
		SeasonID:       seasonID,
		CompetitorKeys: []string{competitorKey},
	})
	if err != nil {
		return false, fmt.Errorf("failed to list qualifications: %w", err)
	}
	return len(list) > 0, nil
}

// QualificationStatuses maps every requested key to the classes it
// qualified in. Keys without qualifications map to an empty slice.
func (s *QualificationService) QualificationStatuses(ctx context.Context, competitorKeys []string, seasonID string) (map[string][]string, error) {
	if seasonID == "" {
		return nil, ErrSeasonMissing
	}
	statuses := make(map[string][]string, len(competitorKeys))
	for _, key := range competitorKeys {
		statuses[key] = []string{}
	}
	if len(competitorKeys) == 0 {
		return statuses, nil
	}

	list, err := s.repo.ListQualifications(ctx, repository.QualificationFilter{
		SeasonID:       seasonID,
		CompetitorKeys: competitorKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list qualifications: %w", err)
	}
	for _, q := range list {
		statuses[q.CompetitorKey] = append(statuses[q.CompetitorKey], q.CompetitionClass)
	}
	return statuses, nil
}

// SeasonQualifications lists a season's records by class, highest points first
func (s *QualificationService) SeasonQualifications(ctx context.Context, seasonID string) ([]models.Qualification, error) {
	if seasonID == "" {
		return nil, ErrSeasonMissing
	}
	list, err := s.repo.ListQualifications(ctx, repository.QualificationFilter{SeasonID: seasonID})
	if err != nil {
		return nil, fmt.Errorf("failed to list qualifications: %w", err)
	}
	if list == nil {
		list = []models.Qualification{}
	}
	return list, nil
}

// CurrentSeasonQualifications lists the current season's records, or none
// when no season is current
func (s *QualificationService) CurrentSeasonQualifications(ctx context.Context) ([]models.Qualification, error) {
	season, err := s.currentSeason(ctx)
	if err != nil {
		return nil, err
	}
	if season == nil {
		return []models.Qualification{}, nil
	}
	return s.SeasonQualifications(ctx, season.ID)
}

// QualificationStats summarizes a season. An empty seasonID uses the
// current season; an unknown season yields zero stats.
func (s *QualificationService) QualificationStats(ctx context.Context, seasonID string) (*QualificationStats, error) {
	var (
		season *models.Season
		err    error
	)
	if seasonID == "" {
		season, err = s.currentSeason(ctx)
	} else {
		season, err = s.findSeason(ctx, seasonID)
	}
	if err != nil {
		return nil, err
	}

	stats := &QualificationStats{SeasonID: seasonID, ClassesByQualifications: []ClassCount{}}
	if season == nil {
		return stats, nil
	}
	stats.SeasonID = season.ID
	if threshold, ok := thresholdOf(season); ok {
		stats.QualificationThreshold = &threshold
	}

	list, err := s.repo.ListQualifications(ctx, repository.QualificationFilter{SeasonID: season.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list qualifications: %w", err)
	}

	competitors := make(map[string]struct{})
	classes := make(map[string]int)
	for _, q := range list {
		stats.TotalQualifications++
		competitors[q.CompetitorKey] = struct{}{}
		classes[q.CompetitionClass]++
		if q.NotificationSent {
			stats.NotificationsSent++
		}
		if q.EmailSent {
			stats.EmailsSent++
		}
		if q.InvitationSent {
			stats.InvitationsSent++
		}
		if q.InvitationRedeemed {
			stats.InvitationsRedeemed++
		}
	}
	stats.UniqueCompetitors = len(competitors)
	for class, count := range classes {
		stats.ClassesByQualifications = append(stats.ClassesByQualifications, ClassCount{Class: class, Count: count})
	}
	slices.SortFunc(stats.ClassesByQualifications, func(a, b ClassCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Class, b.Class))
	})
	return stats, nil
}
