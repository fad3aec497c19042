package workflow

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a case or notification does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a status transition is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrCaseTerminal is returned when a case is COMPLETED or CANCELLED
	ErrCaseTerminal = errors.New("case is in a terminal stage")

	// ErrConcurrentModification is returned when a versioned write loses the race
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrStorageFailure wraps errors from the backing store
	ErrStorageFailure = errors.New("storage failure")

	// ErrInvalidStatus is returned when a status string is not a known status
	ErrInvalidStatus = errors.New("invalid status")

	// ErrValidation is returned when a request is malformed
	ErrValidation = errors.New("validation failed")
)

// Kind is the closed set of error categories surfaced to callers
type Kind string

const (
	KindNone                   Kind = ""
	KindNotFound               Kind = "NOT_FOUND"
	KindInvalidTransition      Kind = "INVALID_TRANSITION"
	KindCaseTerminal           Kind = "CASE_TERMINAL"
	KindConcurrentModification Kind = "CONCURRENT_MODIFICATION"
	KindValidation             Kind = "VALIDATION"
	KindStorageFailure         Kind = "STORAGE_FAILURE"
)

// Classify maps an error onto its Kind. Unrecognised errors are storage failures.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrCaseTerminal):
		return KindCaseTerminal
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrConcurrentModification):
		return KindConcurrentModification
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidStatus):
		return KindValidation
	default:
		return KindStorageFailure
	}
}

// IsClientError returns true for kinds caused by the request rather than the system
func (k Kind) IsClientError() bool {
	return k != KindNone && k != KindStorageFailure
}

// HTTPStatus returns the response code used for the kind
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNone:
		return http.StatusOK
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition:
		return http.StatusForbidden
	case KindCaseTerminal, KindConcurrentModification:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// AsStorageFailure wraps errors that Classify does not recognise in ErrStorageFailure
// so callers see one of the closed set of kinds. Known kinds pass through unchanged.
func AsStorageFailure(err error) error {
	if err == nil || Classify(err) != KindStorageFailure || errors.Is(err, ErrStorageFailure) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageFailure, err)
}
