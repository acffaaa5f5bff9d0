package fleet

import (
	"errors"
	"fmt"
)

// Reason is a stable machine-checkable error code surfaced to API clients.
type Reason string

const (
	ReasonNotFound          Reason = "not_found"
	ReasonInvalidTransition Reason = "invalid_transition"
	ReasonCrossDepotDenied  Reason = "cross_depot_denied"
	ReasonValidation        Reason = "validation_error"
	ReasonRouteMismatch     Reason = "route_mismatch"
)

// Error is a business-rule failure. These are expected outcomes, mapped to
// 4xx responses; anything else that bubbles out of the services is a 500.
type Error struct {
	Reason  Reason
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func NotFound(format string, args ...any) error {
	return &Error{Reason: ReasonNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransition(format string, args ...any) error {
	return &Error{Reason: ReasonInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func CrossDepotDenied(format string, args ...any) error {
	return &Error{Reason: ReasonCrossDepotDenied, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(format string, args ...any) error {
	return &Error{Reason: ReasonValidation, Message: fmt.Sprintf(format, args...)}
}

func RouteMismatch(format string, args ...any) error {
	return &Error{Reason: ReasonRouteMismatch, Message: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the business reason from err, or "" if err is not a
// business error.
func ReasonOf(err error) Reason {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ""
}

// IsReason reports whether err carries the given reason.
func IsReason(err error, r Reason) bool {
	return ReasonOf(err) == r
}
