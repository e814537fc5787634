// Package utils provides small, generic helpers for parsing request
// parameters. They carry no domain knowledge.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// LimitParam parses an optional page limit. Missing, malformed or
// non-positive values yield 0 (no limit); values above max are clamped.
func LimitParam(s string, max int) int {
	n := AtoiDefault(s, 0)
	if n <= 0 {
		return 0
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
