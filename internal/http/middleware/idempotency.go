// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotency support for purchase confirmation. It
// validates an Idempotency-Key request header, optionally asks a lookup
// whether the same (user, checkout, key) already produced a purchase, and
// annotates the request context so downstream handlers can:
//   - read the normalized key (GetIdempotencyKey)
//   - detect replayed confirmations (IsReplay) and read what they produced
//     (ReplayRef)
//   - bypass rate limiting when a replay is served
//
// Persistence stays behind the IdempotencyLookup function type; the handler
// decides how a replay is answered.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key for
// a confirmation attempt. Retries of the same attempt reuse the key.
const HeaderIdempotencyKey = "Idempotency-Key"

// anonymousUser keys idempotency records of requests without an identity.
const anonymousUser = "anonymous"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: a stored result exists
	ctxKeyIdemRef    = "idem.ref"    // string: what the stored result points at
	ctxKeyRateBypass = "rate.bypass" // bool: skip rate limiting
)

// GetIdempotencyKey returns the validated key stored by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the lookup found a completed confirmation for this
// user, checkout and key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// ReplayRef returns the reference the lookup stored for a replayed request
// (the purchase id of the first confirmation), or "".
func ReplayRef(c *gin.Context) string {
	if !IsReplay(c) {
		return ""
	}
	return c.GetString(ctxKeyIdemRef)
}

// IdempotencyOptions configures header validation. Record expiry is the
// lookup's concern.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. Defaults to ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

// IdempotencyLookup returns the reference recorded for (userID, checkoutID,
// key) if it is still valid at now. Errors are logged and treated as a miss.
type IdempotencyLookup func(ctx context.Context, userID, checkoutID, key string, now time.Time) (ref string, found bool, err error)

// IdempotencyValidator validates the Idempotency-Key header when present and
// stashes it in the context. With a lookup, a hit marks the request as a
// replay and lets it skip the rate limiter.
//
// An absent header is a no-op; a malformed one is answered with 400
// bad_idempotency_key. The checkout id is read from the ":id" route param.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			uid := UserIDFrom(c)
			checkoutID := c.Param("id")
			ref, found, err := lookup(c.Request.Context(), uid, checkoutID, key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Str("checkout_id", checkoutID).Msg("idempotency lookup failed")
			}
			if found && err == nil {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyIdemRef, ref)
				c.Set(ctxKeyRateBypass, true)
				idemReplays.Inc()
			}
		}

		c.Next()
	}
}

// UserIDFrom returns the uid set by Authenticate, or "anonymous".
func UserIDFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return anonymousUser
}
