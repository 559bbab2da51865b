//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package common provides shared types and utilities used across the
// sentinel packages.
//
// # Error Handling
//
// The [SentinelError] type carries a machine-readable [Code] together with a
// human-readable reason.  Codes map onto HTTP statuses at the API boundary and onto
// per-user denials inside the decision pipeline; no error is fatal to the process.
package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code classifies a [SentinelError].
type Code string

// Error codes surfaced by the sentinel.
const (
	// InvalidRequest marks a request missing required fields.  It is raised before any
	// state is mutated.
	InvalidRequest Code = "INVALID_REQUEST"
	// UserNotFound is scoped to a single user within a multi-user request.
	UserNotFound Code = "USER_NOT_FOUND"
	// InvalidTrapType is raised by trap injection for an unrecognized type.
	InvalidTrapType Code = "INVALID_TRAP_TYPE"
	// LockFailed means the per-partner ledger lock could not be acquired, usually because
	// the request context ended first.  The affected user's check may be retried.
	LockFailed Code = "LOCK_FAILED"
	// Unauthorized means the shared API secret did not match.
	Unauthorized Code = "UNAUTHORIZED"
	// WatermarkNotFound means a traced watermark was never issued to any partner.
	WatermarkNotFound Code = "WATERMARK_NOT_FOUND"
)

// SentinelError is a structured error with a classification code.
type SentinelError struct {
	Code   Code
	Reason string
}

// Error implements the error interface.
func (e *SentinelError) Error() string {
	return fmt.Sprintf("%s(code-%s)", e.Reason, e.Code)
}

// NewError creates a [SentinelError].
func NewError(code Code, format string, args ...interface{}) *SentinelError {
	return &SentinelError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err, or any error it wraps, is a [SentinelError] with the given code.
func IsCode(err error, code Code) bool {
	var se *SentinelError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
