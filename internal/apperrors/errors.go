package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the service layer. Handlers translate these to HTTP
// status codes with HTTPStatus; repositories and builders wrap them with
// fmt.Errorf("%w: ...") so errors.Is keeps working through the chain.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrStorage      = errors.New("storage failure")
)

// InvalidInput wraps ErrInvalidInput with a caller-facing detail message.
func InvalidInput(detail string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, detail)
}

// NotFound wraps ErrNotFound with the missing entity's name.
func NotFound(entity string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, entity)
}

// Conflict wraps ErrConflict with a detail message.
func Conflict(detail string) error {
	return fmt.Errorf("%w: %s", ErrConflict, detail)
}

// Storage wraps an underlying persistence error as a server-side failure.
func Storage(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

// HTTPStatus maps an error from the service layer to an HTTP status code.
// Unknown errors are treated as server faults.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
