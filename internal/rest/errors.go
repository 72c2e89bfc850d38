package rest

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound maps 404-class replies (e.g. editing an already-deleted
	// message). Not retried; surfaced to the caller.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized maps 401/403 replies on authenticated calls.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-success envelope from the server that does not map to a
// sentinel.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error (status %d)", e.Status)
}

func statusError(status int, message string) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status >= 400:
		return &APIError{Status: status, Message: message}
	}
	return nil
}
