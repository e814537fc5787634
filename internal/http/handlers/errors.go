// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them. Generic
// codes mirror HTTP status semantics; storefront codes name the checkout or
// purchase condition that status alone cannot convey.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "invalid_account",
//	  "message": "tag must be 3–5 characters"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Storefront:
	ErrCodePackageRequired  = "package_required"
	ErrCodeInvalidAccount   = "invalid_account"
	ErrCodeInputsLocked     = "inputs_locked"
	ErrCodeConfirmInFlight  = "confirmation_in_flight"
	ErrCodeAlreadyConfirmed = "already_confirmed"
	ErrCodeCheckoutAborted  = "checkout_aborted"
	ErrCodePersistFailed    = "persist_failed"
)
