package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/abrezinsky/standings/internal/errors"
	"github.com/abrezinsky/standings/internal/handlers"
	"github.com/abrezinsky/standings/internal/services"
)

func TestAPIError_Error(t *testing.T) {
	err := handlers.NewAPIError(http.StatusBadRequest, "BAD_REQUEST", "test message")

	if err.Error() != "test message" {
		t.Errorf("expected 'test message', got %q", err.Error())
	}
	if err.Code != "BAD_REQUEST" {
		t.Errorf("expected code 'BAD_REQUEST', got %q", err.Code)
	}
}

func TestBadRequest(t *testing.T) {
	tests := []struct {
		message string
		code    string
	}{
		{"something odd", handlers.ErrCodeBadRequest},
		{"invalid limit", handlers.ErrCodeValidation},
		{"token is required", handlers.ErrCodeValidation},
	}
	for _, tt := range tests {
		err := handlers.BadRequest(tt.message)
		if err.Status != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", err.Status)
		}
		if err.Code != tt.code {
			t.Errorf("BadRequest(%q) code = %q, want %q", tt.message, err.Code, tt.code)
		}
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *handlers.APIError
		status int
		code   string
	}{
		{"Unauthorized", handlers.Unauthorized("login required"), http.StatusUnauthorized, handlers.ErrCodeUnauthorized},
		{"NotFound", handlers.NotFound("missing"), http.StatusNotFound, handlers.ErrCodeNotFound},
		{"Conflict", handlers.Conflict("taken"), http.StatusConflict, handlers.ErrCodeConflict},
		{"InternalError", handlers.InternalError(fmt.Errorf("db down")), http.StatusInternalServerError, handlers.ErrCodeInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Status != tt.status || tt.err.Code != tt.code {
				t.Errorf("got %d/%s, want %d/%s", tt.err.Status, tt.err.Code, tt.status, tt.code)
			}
		})
	}
}

func TestInternalError_HidesDetails(t *testing.T) {
	err := handlers.InternalError(fmt.Errorf("secret connection string"))
	if err.Message != "Internal server error" {
		t.Errorf("expected generic message, got %q", err.Message)
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    *handlers.APIError
		status int
	}{
		{"ErrBadRequest", handlers.ErrBadRequest, http.StatusBadRequest},
		{"ErrUnauthorized", handlers.ErrUnauthorized, http.StatusUnauthorized},
		{"ErrNotFound", handlers.ErrNotFound, http.StatusNotFound},
		{"ErrInternalServer", handlers.ErrInternalServer, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.Status)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", errors.NotFound("qualification missing"), http.StatusNotFound, handlers.ErrCodeNotFound},
		{"validation", errors.Validation("bad"), http.StatusBadRequest, handlers.ErrCodeValidation},
		{"invalid input", errors.InvalidInput("bad"), http.StatusBadRequest, handlers.ErrCodeValidation},
		{"conflict", errors.Conflict("redeemed"), http.StatusConflict, handlers.ErrCodeConflict},
		{"internal kind", errors.Internal(fmt.Errorf("boom")), http.StatusInternalServerError, handlers.ErrCodeInternalServer},
		{"delivery kind", errors.Delivery("email", fmt.Errorf("boom")), http.StatusInternalServerError, handlers.ErrCodeInternalServer},
		{"wrapped not found", fmt.Errorf("outer: %w", errors.NotFound("inner")), http.StatusNotFound, handlers.ErrCodeNotFound},
		{"service error", services.ErrSeasonMissing, http.StatusBadRequest, handlers.ErrCodeValidation},
		{"warm in progress", services.ErrWarmInProgress, http.StatusConflict, handlers.ErrCodeConflict},
		{"no current season", services.ErrNoCurrentSeason, http.StatusNotFound, handlers.ErrCodeNotFound},
		{"plain error", fmt.Errorf("plain"), http.StatusInternalServerError, handlers.ErrCodeInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := handlers.ToAPIError(tt.err)
			if apiErr.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, apiErr.Status)
			}
			if apiErr.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, apiErr.Code)
			}
		})
	}
}
