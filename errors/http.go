package errors

import (
	"errors"
	"net/http"
)

// MapToHTTPStatus converts a domain error into the status code the REST
// layer should answer with. Anything unrecognized is a 500: storage and
// infrastructure failures are reported to the immediate caller, never
// silently swallowed on the send path.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrEmptyContent),
		errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrTooFewParticipants),
		errors.Is(err, ErrUserAlreadyExists):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotAMember):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateConnection):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
