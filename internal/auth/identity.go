// Package auth carries the authenticated-user identity through request
// contexts and verifies bearer tokens issued by the identity provider.
package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when a bearer token cannot be verified.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the authenticated user as supplied by the identity provider.
// The zero value means "no authenticated user".
type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName,omitempty"`
}

// Authenticated reports whether the identity names a user.
func (i Identity) Authenticated() bool { return i.UID != "" }

type identityContextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || !id.Authenticated() {
		return Identity{}, false
	}
	return id, true
}
