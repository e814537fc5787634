// Package services holds the storefront business logic: account validation,
// the checkout state machine, the checkout registry and purchase history.
// This file centralizes the service-level errors so callers can match them
// with errors.Is / errors.As. Mapping to HTTP statuses happens in handlers.
package services

import (
	"errors"
	"fmt"
)

// Precondition and state errors.
var (
	// ErrPackageRequired is returned when a checkout starts without a valid
	// package. The checkout is aborted and the caller should go back to the
	// storefront root.
	ErrPackageRequired = errors.New("package required")

	// ErrIdentityRequired is returned when no authenticated user is present.
	ErrIdentityRequired = errors.New("authenticated user required")

	// ErrInputsLocked is returned when account fields are edited after
	// confirmation started.
	ErrInputsLocked = errors.New("account fields are locked")

	// ErrConfirmationInFlight rejects a confirmation while another one is
	// still persisting.
	ErrConfirmationInFlight = errors.New("confirmation already in progress")

	// ErrAlreadyConfirmed rejects a confirmation on a finished checkout.
	ErrAlreadyConfirmed = errors.New("checkout already confirmed")

	// ErrCheckoutAborted rejects any operation on an aborted checkout.
	ErrCheckoutAborted = errors.New("checkout aborted")

	// ErrCheckoutNotFound indicates an unknown or evicted checkout id.
	ErrCheckoutNotFound = errors.New("checkout not found")

	// ErrPurchaseNotFound indicates the purchase is missing from the remote
	// store or belongs to another user.
	ErrPurchaseNotFound = errors.New("purchase not found")
)

// ValidationError carries the first failing account rule as a
// human-readable reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// PersistenceError reports a failed store write during confirmation.
// Store is "remote" or "local".
type PersistenceError struct {
	Store string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist purchase to %s store: %v", e.Store, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
