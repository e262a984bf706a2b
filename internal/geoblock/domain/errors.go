package domain

import (
	"errors"
	"net/http"
)

// Error kinds. Callers wrap them with detail, e.g.
// fmt.Errorf("%w: country code is required", ErrValidation), and classify
// with errors.Is.
var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a request contradicting the current block state.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks an operation targeting absent data.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable marks a collaborator that produced no result.
	ErrUnavailable = errors.New("collaborator unavailable")
)

// StatusOf maps an error to the HTTP-style status of its kind.
// A nil error is 200; an unclassified error is 500.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnavailable):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
