package handlers

import (
	"context"

	"github.com/abrezinsky/standings/internal/auth"
	"github.com/abrezinsky/standings/internal/logger"
	"github.com/abrezinsky/standings/internal/services"
)

// Pinger checks that the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Standings      services.StandingsServicer
	Qualifications services.QualificationServicer
	Invitations    services.InvitationServicer
	Auth           *auth.Auth
	Health         Pinger
	Log            logger.Logger
}

// New creates a new Handlers instance with all dependencies
func New(
	standings services.StandingsServicer,
	qualifications services.QualificationServicer,
	invitations services.InvitationServicer,
	adminAuth *auth.Auth,
	health Pinger,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Standings:      standings,
		Qualifications: qualifications,
		Invitations:    invitations,
		Auth:           adminAuth,
		Health:         health,
		Log:            log,
	}
}
