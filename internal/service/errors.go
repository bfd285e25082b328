package service

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ValidationError rejects malformed input before anything is written.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// StateConflictError means the operation does not fit the current status.
type StateConflictError struct {
	Msg string
}

func (e *StateConflictError) Error() string { return e.Msg }

// AuthorizationError is returned when the caller lacks rights. Unauthenticated
// is set when no credential was presented at all.
type AuthorizationError struct {
	Msg             string
	Unauthenticated bool
}

func (e *AuthorizationError) Error() string { return e.Msg }

// RaceLostError is returned by create-if-absent steps that lost to a
// concurrent writer; the caller should retry as an update.
type RaceLostError struct {
	Msg string
}

func (e *RaceLostError) Error() string { return e.Msg }

// NoDataError means a prerequisite data set is empty.
type NoDataError struct {
	Msg string
}

func (e *NoDataError) Error() string { return e.Msg }

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return "too many requests, retry later"
}

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) error {
	return &StateConflictError{Msg: fmt.Sprintf(format, args...)}
}

func forbidden(msg string) error {
	return &AuthorizationError{Msg: msg}
}

func notFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

// notFoundOr turns sql.ErrNoRows into a NotFoundError and wraps anything else.
func notFoundOr(err error, resource string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(resource)
	}
	return fmt.Errorf("failed to get %s: %w", resource, err)
}
