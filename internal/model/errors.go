package model

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes domain errors. Codes are stable and appear in CLI
// JSON output.
type ErrorCode string

const (
	// CodeInvalidDuration: duration is not a positive multiple of the
	// granularity or exceeds the maximum.
	CodeInvalidDuration ErrorCode = "INVALID_DURATION"

	// CodeWindowInPast: the requested window does not start strictly
	// after now.
	CodeWindowInPast ErrorCode = "WINDOW_IN_PAST"

	CodeResourceNotFound    ErrorCode = "RESOURCE_NOT_FOUND"
	CodeResourceUnavailable ErrorCode = "RESOURCE_UNAVAILABLE"

	// CodeSlotConflict: another scheduled or active reservation overlaps.
	CodeSlotConflict ErrorCode = "SLOT_CONFLICT"

	// CodeStoreUnavailable is the only retryable code.
	CodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	CodeHasActiveOrFutureReservation ErrorCode = "HAS_ACTIVE_OR_FUTURE_RESERVATION"
	CodeInMaintenance                ErrorCode = "IN_MAINTENANCE"

	CodeReservationNotFound ErrorCode = "RESERVATION_NOT_FOUND"
	CodeAlreadyFinalized    ErrorCode = "ALREADY_FINALIZED"
	CodeForbidden           ErrorCode = "FORBIDDEN"
	CodeInvalidStatus       ErrorCode = "INVALID_STATUS"
	CodeInvalidResource     ErrorCode = "INVALID_RESOURCE"

	// CodeDirectReserveRejected: reservations only start through Book and
	// the reconciler, never through a raw status change.
	CodeDirectReserveRejected ErrorCode = "DIRECT_RESERVE_REJECTED"
)

// Error is a domain error with a stable code.
//
// errors.Is matches two *Error values by Code alone, so callers compare
// against the sentinels below while the returned value keeps its details.
type Error struct {
	Code    ErrorCode
	Message string

	// Details carries identifiers useful for diagnostics (resource id,
	// conflicting reservation id, ...).
	Details map[string]string

	// Err is the underlying cause, set for CodeStoreUnavailable.
	Err error
}

// Sentinels for errors.Is.
var (
	ErrInvalidDuration              = &Error{Code: CodeInvalidDuration, Message: "invalid duration"}
	ErrWindowInPast                 = &Error{Code: CodeWindowInPast, Message: "window starts in the past"}
	ErrResourceNotFound             = &Error{Code: CodeResourceNotFound, Message: "resource not found"}
	ErrResourceUnavailable          = &Error{Code: CodeResourceUnavailable, Message: "resource unavailable"}
	ErrSlotConflict                 = &Error{Code: CodeSlotConflict, Message: "slot conflict"}
	ErrStoreUnavailable             = &Error{Code: CodeStoreUnavailable, Message: "store unavailable"}
	ErrHasActiveOrFutureReservation = &Error{Code: CodeHasActiveOrFutureReservation, Message: "resource has active or future reservations"}
	ErrInMaintenance                = &Error{Code: CodeInMaintenance, Message: "resource is in maintenance"}
	ErrReservationNotFound          = &Error{Code: CodeReservationNotFound, Message: "reservation not found"}
	ErrAlreadyFinalized             = &Error{Code: CodeAlreadyFinalized, Message: "reservation already finalized"}
	ErrForbidden                    = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrInvalidStatus                = &Error{Code: CodeInvalidStatus, Message: "invalid status"}
	ErrInvalidResource              = &Error{Code: CodeInvalidResource, Message: "invalid resource"}
	ErrDirectReserveRejected        = &Error{Code: CodeDirectReserveRejected, Message: "resources cannot be reserved by status change"}
)

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// With returns a copy of e carrying an extra detail.
func (e *Error) With(key, value string) *Error {
	out := *e
	out.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		out.Details[k] = v
	}
	out.Details[key] = value
	return &out
}

// StoreUnavailable wraps an infrastructure failure.
func StoreUnavailable(op string, err error) *Error {
	return &Error{Code: CodeStoreUnavailable, Message: op, Err: err}
}

// CodeOf extracts the code of a domain error. Returns "" for other errors.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether the caller may retry the operation.
func IsRetryable(err error) bool {
	return CodeOf(err) == CodeStoreUnavailable
}

// IsUserError reports whether err is a user-correctable domain error.
func IsUserError(err error) bool {
	code := CodeOf(err)
	return code != "" && code != CodeStoreUnavailable
}
