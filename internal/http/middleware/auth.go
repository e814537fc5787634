// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file establishes the caller identity. A bearer token verified by
// auth.Verifier wins; when header identities are allowed (local development)
// X-User-ID and X-User-Name are trusted as-is. Requests without either carry
// no identity and are handled by the services as anonymous.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/vp-storefront/internal/auth"
	"github.com/tbourn/vp-storefront/internal/sysutil"
)

const (
	// HeaderUserID carries the caller uid when header identities are allowed.
	HeaderUserID = "X-User-ID"
	// HeaderUserName carries the caller display name alongside HeaderUserID.
	HeaderUserName = "X-User-Name"

	ctxKeyUserID = "userID"
)

// Authenticate resolves the request identity and stores it on both the Gin
// context ("userID") and the request context (auth.FromContext).
//
// A present but invalid bearer token is rejected with 401. A nil verifier
// ignores bearer tokens.
func Authenticate(verifier *auth.Verifier, allowHeader bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var id auth.Identity

		if raw, ok := bearerToken(c.GetHeader("Authorization")); ok && verifier != nil {
			parsed, err := verifier.Parse(raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"request_id": c.Writer.Header().Get(requestIDHeader),
					"code":       "unauthorized",
					"message":    "invalid bearer token",
				})
				return
			}
			id = parsed
		} else if allowHeader {
			uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
			if uid != "" {
				id = auth.Identity{
					UID:         uid,
					DisplayName: sysutil.FirstNonEmpty(strings.TrimSpace(c.GetHeader(HeaderUserName)), uid),
				}
			}
		}

		if id.Authenticated() {
			c.Set(ctxKeyUserID, id.UID)
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		}
		c.Next()
	}
}

// IdentityFrom returns the identity attached by Authenticate.
func IdentityFrom(c *gin.Context) auth.Identity {
	id, _ := auth.FromContext(c.Request.Context())
	return id
}

func bearerToken(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}
