package services

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Account tag length bounds, in runes, after normalization.
const (
	MinTagLen = 3
	MaxTagLen = 5
)

// Reasons returned in ValidationError, in rule order.
const (
	ReasonIdentifierRequired = "identifier required"
	ReasonTagRequired        = "tag required"
	ReasonTagLength          = "tag must be 3–5 characters"
)

// NormalizeTag uppercases tag and strips one leading '#'. A tag that still
// starts with '#' afterwards ("##ab" -> "#AB") keeps it, so normalizing is
// idempotent only for input with at most one leading '#'.
func NormalizeTag(tag string) string {
	// Casers keep state and must not be shared between goroutines.
	return strings.TrimPrefix(cases.Upper(language.Und).String(tag), "#")
}

// NormalizeRiotID trims surrounding whitespace from the account name.
func NormalizeRiotID(riotID string) string {
	return strings.TrimSpace(riotID)
}

// ValidateAccount checks raw account input and returns nil or a
// *ValidationError for the first failing rule. Both fields are normalized
// before they are checked.
func ValidateAccount(riotID, riotTag string) error {
	return validateNormalized(NormalizeRiotID(riotID), NormalizeTag(riotTag))
}

// validateNormalized checks fields that were already normalized on input.
// A blank name is rejected.
func validateNormalized(riotID, tag string) error {
	if riotID == "" {
		return &ValidationError{Reason: ReasonIdentifierRequired}
	}
	if tag == "" {
		return &ValidationError{Reason: ReasonTagRequired}
	}
	if n := utf8.RuneCountInString(tag); n < MinTagLen || n > MaxTagLen {
		return &ValidationError{Reason: ReasonTagLength}
	}
	return nil
}
