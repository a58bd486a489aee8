package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a device, service, plan, user or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for malformed or missing request fields.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownAction is returned when a task does not support the requested action.
	ErrUnknownAction = errors.New("unknown action")

	// ErrUnknownAlgorithm is returned for an algorithm key the builder does not know.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")

	// ErrDeviceTimeout is returned by device transports when a call exceeds its deadline.
	ErrDeviceTimeout = errors.New("device request timed out")

	// ErrUnavailable marks a failure of an external dependency such as the SDN controller.
	ErrUnavailable = errors.New("dependency unavailable")
)

// FieldError names the request field that is missing or invalid.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidArgument }

// MissingField returns a FieldError for a required field.
func MissingField(field string) error {
	return &FieldError{Field: field}
}

// InvalidField returns a FieldError with a reason.
func InvalidField(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// NotFound formats a not-found error such as "device esp32-001 not found".
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s %w", kind, id, ErrNotFound)
}

// UnknownAction formats an unknown action error naming the action.
func UnknownAction(action string) error {
	return fmt.Errorf("%w: %s", ErrUnknownAction, action)
}

// Unavailable wraps an error returned by an external dependency during op.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// IsClientError reports whether err is caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrUnknownAction) ||
		errors.Is(err, ErrUnknownAlgorithm) ||
		errors.Is(err, ErrNotFound)
}
