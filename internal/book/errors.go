package book

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation is returned when a required field is missing.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidIdentifier is returned when an id does not have the store's id shape.
	ErrInvalidIdentifier = errors.New("invalid book id")
	// ErrNotFound is returned when a well-formed id does not resolve to a live book.
	ErrNotFound = errors.New("book not found")
	// ErrStoreUnavailable wraps any failure of the underlying record store.
	ErrStoreUnavailable = errors.New("book store unavailable")
)

// Wire codes used in error envelopes.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeInvalidID        = "INVALID_ID"
	CodeNotFound         = "NOT_FOUND"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
)

// Code maps err to its wire code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrInvalidIdentifier):
		return CodeInvalidID
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	default:
		return CodeInternal
	}
}

// FromCode returns the sentinel for a wire code, or nil for unknown codes.
func FromCode(code string) error {
	switch code {
	case CodeValidation:
		return ErrValidation
	case CodeInvalidID:
		return ErrInvalidIdentifier
	case CodeNotFound:
		return ErrNotFound
	case CodeStoreUnavailable:
		return ErrStoreUnavailable
	default:
		return nil
	}
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch Code(err) {
	case CodeValidation, CodeInvalidID:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a read that failed with err may be retried.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
