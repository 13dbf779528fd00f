package services

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/abrezinsky/standings/internal/errors"
	"github.com/abrezinsky/standings/internal/logger"
	"github.com/abrezinsky/standings/internal/metrics"
	"github.com/abrezinsky/standings/internal/models"
	"github.com/abrezinsky/standings/internal/repository"
)

// Side effect kinds, used as log fields and metric labels
const (
	EffectNotification    = "notification"
	EffectEmail           = "email"
	EffectInvitationEmail = "invitation_email"
)

// errEffectSkipped signals that an effect had nothing to deliver
var errEffectSkipped = stderrors.New("effect skipped")

// runEffect runs fn as a best-effort side effect. Failures and panics are
// logged and counted, never returned. It reports whether fn succeeded.
func runEffect(ctx context.Context, log logger.Logger, kind string, fn func(context.Context) error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Delivery(kind, fmt.Errorf("panic: %v", r))
			log.Error("Side effect panicked", "effect", kind, "error", err)
			metrics.EffectOutcomes.WithLabelValues(kind, metrics.Failure).Inc()
			ok = false
		}
	}()

	err := fn(ctx)
	switch {
	case err == nil:
		metrics.EffectOutcomes.WithLabelValues(kind, metrics.Success).Inc()
		return true
	case stderrors.Is(err, errEffectSkipped):
		log.Debug("Side effect skipped", "effect", kind)
		metrics.EffectOutcomes.WithLabelValues(kind, metrics.Skipped).Inc()
		return false
	default:
		log.Warn("Side effect failed", "effect", kind, "error", errors.Delivery(kind, err))
		metrics.EffectOutcomes.WithLabelValues(kind, metrics.Failure).Inc()
		return false
	}
}

// Notifier delivers in-app notifications
type Notifier interface {
	SendInAppNotification(ctx context.Context, userID, title, message, link string) error
}

// RepositoryNotifier stores notifications as rows for the in-app inbox
type RepositoryNotifier struct {
	repo repository.NotificationRepository
}

// NewRepositoryNotifier creates a Notifier backed by the notifications table
func NewRepositoryNotifier(repo repository.NotificationRepository) *RepositoryNotifier {
	return &RepositoryNotifier{repo: repo}
}

// SendInAppNotification stores a system notification for userID
func (n *RepositoryNotifier) SendInAppNotification(ctx context.Context, userID, title, message, link string) error {
	_, err := n.repo.CreateNotification(ctx, models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Link:    link,
		Type:    "system",
	})
	return err
}
