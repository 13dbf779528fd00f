package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"html/template"
	"net/url"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/skip2/go-qrcode"

	"github.com/abrezinsky/standings/internal/errors"
	"github.com/abrezinsky/standings/internal/logger"
	"github.com/abrezinsky/standings/internal/metrics"
	"github.com/abrezinsky/standings/internal/models"
	"github.com/abrezinsky/standings/internal/repository"
	"github.com/abrezinsky/standings/pkg/mailer"
)

// InvitationServiceRepository defines the repository methods needed by InvitationService
type InvitationServiceRepository interface {
	repository.SeasonRepository
	repository.ProfileRepository
	repository.QualificationRepository
}

// BatchResult counts the outcome of a bulk invitation send
type BatchResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// InvitationService issues and redeems single-use World Finals
// pre-registration invitations
type InvitationService struct {
	log     logger.Logger
	repo    InvitationServiceRepository
	mail    mailer.Client
	baseURL string
	clock   clockwork.Clock
}

// NewInvitationService creates a new InvitationService
func NewInvitationService(log logger.Logger, repo InvitationServiceRepository, mail mailer.Client, baseURL string) *InvitationService {
	return &InvitationService{
		log:     log,
		repo:    repo,
		mail:    mail,
		baseURL: baseURL,
		clock:   clockwork.NewRealClock(),
	}
}

// SetClock replaces the clock used for timestamps
func (s *InvitationService) SetClock(c clockwork.Clock) {
	s.clock = c
}

// RegistrationURL returns the pre-registration link for a token
func (s *InvitationService) RegistrationURL(token string) string {
	return joinURL(s.baseURL, "/world-finals/register?token="+url.QueryEscape(token))
}

// SendInvitation issues a fresh token for the record and emails the
// registration link. The token is stored before the email is attempted; a
// failed email leaves the invitation issued.
func (s *InvitationService) SendInvitation(ctx context.Context, qualificationID string) (*models.Qualification, error) {
	token := uuid.NewString()
	now := s.clock.Now().UTC()

	err := s.repo.IssueInvitation(ctx, qualificationID, token, now)
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return nil, errors.NotFoundf("qualification %s not found", qualificationID)
	case stderrors.Is(err, repository.ErrAlreadyRedeemed):
		return nil, errors.Conflictf("invitation for qualification %s was already redeemed", qualificationID)
	case err != nil:
		return nil, fmt.Errorf("failed to issue invitation: %w", err)
	}
	metrics.Invitations.WithLabelValues(metrics.Sent).Inc()

	q, err := s.repo.GetQualification(ctx, qualificationID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload qualification: %w", err)
	}
	s.log.Info("Invitation issued", "qualification_id", q.ID, "competitor_key", q.CompetitorKey)

	log := s.log.With("qualification_id", q.ID)
	runEffect(ctx, log, EffectInvitationEmail, func(ctx context.Context) error {
		return s.sendInvitationEmail(ctx, q, token)
	})
	return q, nil
}

func (s *InvitationService) sendInvitationEmail(ctx context.Context, q *models.Qualification, token string) error {
	profile, err := resolveProfile(ctx, s.repo, q)
	if err != nil {
		return err
	}

	seasonName := q.SeasonID
	if season, err := s.repo.FindSeasonByID(ctx, q.SeasonID); err == nil {
		seasonName = season.Name
	}

	link := s.RegistrationURL(token)
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to render QR code: %w", err)
	}

	html, err := renderEmail("invitation", invitationEmail{
		FirstName:       firstName(profile.FirstName, q.CompetitorName),
		Points:          q.TotalPoints,
		Class:           q.CompetitionClass,
		SeasonName:      seasonName,
		RegistrationURL: link,
		QRSrc:           template.URL("cid:" + invitationQRContentID),
	})
	if err != nil {
		return err
	}

	return s.mail.SendEmail(ctx, mailer.Message{
		To:      profile.Email,
		Subject: "Your World Finals Pre-Registration Invitation",
		HTML:    html,
		Attachments: []mailer.Attachment{{
			Filename:    "invitation-qr.png",
			ContentType: "image/png",
			ContentID:   invitationQRContentID,
			Inline:      true,
			Content:     png,
		}},
	})
}

// SendAllPending invites every record of the season that has not been
// invited yet. One failure does not stop the rest.
func (s *InvitationService) SendAllPending(ctx context.Context, seasonID string) (*BatchResult, error) {
	if seasonID == "" {
		return nil, ErrSeasonMissing
	}
	notSent := false
	pending, err := s.repo.ListQualifications(ctx, repository.QualificationFilter{
		SeasonID:       seasonID,
		InvitationSent: &notSent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invitations: %w", err)
	}

	result := &BatchResult{}
	for _, q := range pending {
		if _, err := s.SendInvitation(ctx, q.ID); err != nil {
			result.Failed++
			s.log.Error("Failed to send invitation", "qualification_id", q.ID, "error", err)
			continue
		}
		result.Sent++
	}

	s.log.Info("Pending invitations sent", "season_id", seasonID, "sent", result.Sent, "failed", result.Failed)
	return result, nil
}

// RedeemInvitation consumes a token exactly once. It returns nil without an
// error for unknown or already redeemed tokens.
func (s *InvitationService) RedeemInvitation(ctx context.Context, token string) (*models.Qualification, error) {
	if token == "" {
		return nil, nil
	}
	q, err := s.repo.RedeemInvitation(ctx, token, s.clock.Now().UTC())
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to redeem invitation: %w", err)
	}

	metrics.Invitations.WithLabelValues(metrics.Redeemed).Inc()
	s.log.Info("Invitation redeemed", "qualification_id", q.ID, "competitor_key", q.CompetitorKey)
	return q, nil
}

// InvitationQRCode renders the record's registration link as a PNG
func (s *InvitationService) InvitationQRCode(ctx context.Context, qualificationID string) ([]byte, error) {
	q, err := s.repo.GetQualification(ctx, qualificationID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.NotFoundf("qualification %s not found", qualificationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find qualification: %w", err)
	}
	if q.InvitationToken == nil || *q.InvitationToken == "" {
		return nil, errors.NotFoundf("no invitation issued for qualification %s", qualificationID)
	}

	png, err := qrcode.Encode(s.RegistrationURL(*q.InvitationToken), qrcode.Medium, 256)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return png, nil
}
