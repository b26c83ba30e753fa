package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

var (
	// ErrAuthentication is returned for 401 and 403 responses. It is never
	// retried; the caller must refresh its credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrRemoteRange is returned when a server answers a ranged request with
	// anything but the requested partial content. The resolved range cannot
	// be trusted and the caller must fall back to a full download.
	ErrRemoteRange = errors.New("remote did not honor range request")

	// ErrRetriesExhausted wraps the last transient error once the retry
	// policy gives up.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// StatusError is an unexpected HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Transient reports whether err is worth retrying: 5xx and 429 responses,
// connection resets, truncated bodies and timeouts.
func Transient(err error) bool {
	if err == nil || errors.Is(err, ErrAuthentication) || errors.Is(err, ErrRemoteRange) || errors.Is(err, context.Canceled) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError || se.StatusCode == http.StatusTooManyRequests
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
