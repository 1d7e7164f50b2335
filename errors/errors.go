// Package errors provides error handling for the foundation engine.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrUnknownSource) {
//	    // handle missing contract
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint        = crdb.WithHint
	WithHintf       = crdb.WithHintf
	WithDetail      = crdb.WithDetail
	WithDetailf     = crdb.WithDetailf
	WithSafeDetails = crdb.WithSafeDetails
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
)

// Sentinel errors for use across the engine.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrUnknownSource indicates a source_id with no registered contract.
	// This is a configuration error: every tracked source must be
	// registered before the first Execute call.
	ErrUnknownSource = New("unknown source")

	// ErrDuplicateContract indicates a second registration for a source_id
	ErrDuplicateContract = New("duplicate contract")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrServiceUnavailable indicates a required service is not available
	ErrServiceUnavailable = New("service unavailable")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")
)

// IsUnknownSourceError checks if an error is or wraps ErrUnknownSource
func IsUnknownSourceError(err error) bool {
	return err != nil && Is(err, ErrUnknownSource)
}

// IsDuplicateContractError checks if an error is or wraps ErrDuplicateContract
func IsDuplicateContractError(err error) bool {
	return err != nil && Is(err, ErrDuplicateContract)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// NewUnknownSourceError creates an unknown-source error naming the source
func NewUnknownSourceError(sourceID string) error {
	return Wrapf(ErrUnknownSource, "no contract registered for source %q", sourceID)
}

// NewDuplicateContractError creates a duplicate-contract error naming the source
func NewDuplicateContractError(sourceID string) error {
	return Wrapf(ErrDuplicateContract, "contract already registered for source %q", sourceID)
}
