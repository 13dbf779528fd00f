package services

import (
	"github.com/abrezinsky/standings/internal/errors"
)

// Service errors
var (
	ErrWarmInProgress       = errors.Conflict("cache warm already in progress")
	ErrNoCurrentSeason      = errors.NotFound("no current season")
	ErrCompetitorKeyMissing = &ServiceError{Message: "competitor key is required"}
	ErrSeasonMissing        = &ServiceError{Message: "season id is required"}
	ErrClassMissing         = &ServiceError{Message: "competition class is required"}
)

// ServiceError represents a service-level validation error
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}
