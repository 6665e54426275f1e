package api

import (
	"errors"
	"net/http"

	"github.com/okian/vitalsync/internal/adapters/fitness"
	"github.com/okian/vitalsync/internal/adapters/repository"
	service "github.com/okian/vitalsync/internal/app"
	"github.com/okian/vitalsync/internal/domain/scoring"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrUnknownMetric = errors.New("unknown metric")
)

// errorStatus maps domain errors to an HTTP status and a stable code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrUnknownMetric),
		errors.Is(err, service.ErrInvalidDate), errors.Is(err, service.ErrFallbackTooLarge),
		errors.Is(err, repository.ErrInvalidRange):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrUserBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, service.ErrNoToken):
		return http.StatusUnprocessableEntity, "no_token"
	case errors.Is(err, scoring.ErrInsufficientWindows):
		return http.StatusUnprocessableEntity, "insufficient_windows"
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, fitness.ErrUnauthorized):
		return http.StatusBadGateway, "provider_unauthorized"
	case errors.Is(err, fitness.ErrRemoteStatus), errors.Is(err, fitness.ErrTransport):
		return http.StatusBadGateway, "provider_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
