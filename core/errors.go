package core

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrTokenExpired       = errors.New("token has expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNoSession          = errors.New("no session")
	ErrSessionExpired     = errors.New("session has expired")
	ErrWalletNotConnected = errors.New("wallet is not connected")
	ErrConnectTimeout     = errors.New("wallet connection was not completed")
	ErrNoPendingWallet    = errors.New("no pending wallet address")
)

// APIError is a non-2xx response from the backend, carrying the HTTP status
// and the server-provided message when one was decodable.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("backend returned HTTP %d: %s", e.Status, e.Message)
}

// Unauthorized reports whether the error is a 401-class rejection, which the
// session manager treats as session death rather than a transient failure.
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// IsUnauthorized reports whether err wraps a 401-class APIError.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

// ValidationError is a field-level rejection of a setup submission. The field
// map is surfaced to the caller verbatim so each message can render inline
// next to its form field.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

// FieldError returns the first message recorded for a field, or "" if the
// field passed validation.
func (e *ValidationError) FieldError(field string) string {
	if msgs := e.Fields[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}
