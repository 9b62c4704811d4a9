package booking

import (
	"errors"
	"fmt"
)

type MatchError struct {
	Code    string
	Message string
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewMatchError(msg string) error {
	return &MatchError{
		Code:    "matchError",
		Message: msg,
	}
}

// ValidationError is a field-level wizard error.
type ValidationError struct {
	Stage   Stage
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// GeocodingError means an address could not be resolved to coordinates.
type GeocodingError struct {
	Address string
	Err     error
}

func (e *GeocodingError) Error() string {
	return fmt.Sprintf("could not find a location for %q", e.Address)
}

func (e *GeocodingError) Unwrap() error { return e.Err }

// GenericSubmitMessage is shown when the server gives no reason.
const GenericSubmitMessage = "Failed to create booking. Please check required fields."

// SubmitError is a failed booking creation. Message is the server's reason
// verbatim, or GenericSubmitMessage.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	return e.Message
}

func (e *SubmitError) Unwrap() error { return e.Err }

// SearchError is a failed provider search.
type SearchError struct {
	Err error
}

func (e *SearchError) Error() string {
	return "Failed to find available workers"
}

func (e *SearchError) Unwrap() error { return e.Err }

// TransitionError rejects a booking status change the lifecycle does not allow.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move booking from %q to %q", e.From, e.To)
}

var (
	ErrWizardClosed     = errors.New("booking wizard is closed")
	ErrSubmitInProgress = errors.New("booking submission already in progress")
	ErrPaymentNotDue    = errors.New("payment can only be accepted once for a completed booking")
)
