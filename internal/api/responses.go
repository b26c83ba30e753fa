// Package api provides HTTP handlers and routing for the burst service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/robert-malhotra/s1bursts/internal/backend"
	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/fetch"
	"github.com/robert-malhotra/s1bursts/internal/layout"
	"github.com/robert-malhotra/s1bursts/internal/safe"
)

// APIError is the body of every error response.
type APIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	RequestID   string `json:"request_id,omitempty"`
}

const (
	ErrCodeBadRequest       = "BadRequest"
	ErrCodeNotFound         = "NotFound"
	ErrCodeInvalidParameter = "InvalidParameterValue"
	ErrCodeUnauthorized     = "Unauthorized"
	ErrCodeNotImplemented   = "NotImplemented"
	ErrCodeServerError      = "ServerError"
	ErrCodeUpstreamError    = "UpstreamServiceError"
	ErrCodeTimeout          = "UpstreamTimeout"
)

// WriteJSON writes v as an application/json response.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return writeBody(w, status, "application/json", v)
}

// WriteGeoJSON writes v as an application/geo+json response. STAC items and
// item collections go out this way.
func WriteGeoJSON(w http.ResponseWriter, status int, v any) error {
	return writeBody(w, status, "application/geo+json", v)
}

func writeBody(w http.ResponseWriter, status int, contentType string, v any) error {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response",
			slog.String("content_type", contentType),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// WriteError writes an error response without a request ID.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, APIError{Code: code, Description: message})
}

func writeError(w http.ResponseWriter, status int, e APIError) {
	writeBody(w, status, "application/json", e)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func WriteInvalidParameter(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeInvalidParameter, message)
}

// ErrorStatus maps a pipeline error to a status code and error code.
// Errors no sentinel accounts for map to fallback.
func ErrorStatus(err error, fallback int) (int, string) {
	var se *fetch.StatusError
	switch {
	case errors.Is(err, backend.ErrGranuleNotFound),
		errors.Is(err, burst.ErrBurstNotFound),
		errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, backend.ErrInvalidGranuleName),
		errors.Is(err, safe.ErrMalformedMetadata),
		errors.Is(err, safe.ErrUnsupportedPolarization),
		errors.Is(err, safe.ErrSwathNotFound):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, fetch.ErrAuthentication):
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case errors.Is(err, backend.ErrSearchUnsupported):
		return http.StatusNotImplemented, ErrCodeNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeTimeout
	case errors.Is(err, fetch.ErrRemoteRange),
		errors.Is(err, fetch.ErrRetriesExhausted),
		errors.Is(err, layout.ErrRangeResolution),
		errors.Is(err, burst.ErrGeometryResolution),
		se != nil:
		return http.StatusBadGateway, ErrCodeUpstreamError
	}
	if fallback == http.StatusBadGateway {
		return fallback, ErrCodeUpstreamError
	}
	return http.StatusInternalServerError, ErrCodeServerError
}
