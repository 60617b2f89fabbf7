// Package sekkei provides a Go client for the Sekkei design generation API.
package sekkei

import (
	"errors"
	"fmt"
)

// Error represents an error from the Sekkei API with the HTTP status code
// and the server's error message.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("sekkei: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 404
	}
	return false
}

// IsConflict returns true if the error is a 409.
func IsConflict(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 409
	}
	return false
}

// IsRateLimited returns true if the error is a 429 (Too Many Requests).
func IsRateLimited(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 429
	}
	return false
}

// IsSaveFailed returns true if the error is a 502, which the server uses
// to signal that a transcript save failed and can be retried.
func IsSaveFailed(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 502
	}
	return false
}
