package auth

import (
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Verifier signs and parses HS256 identity tokens. The subject claim carries
// the user id and the "name" claim the display name.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

type identityClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// NewVerifier returns a Verifier for the shared secret. An empty secret
// yields a Verifier that rejects every token.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for id valid for ttl.
func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("jwt secret is empty")
	}
	if strings.TrimSpace(id.UID) == "" {
		return "", fmt.Errorf("identity uid is empty")
	}
	now := v.now().UTC()
	claims := identityClaims{
		Name: id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign identity token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns the identity it carries.
func (v *Verifier) Parse(raw string) (Identity, error) {
	if len(v.secret) == 0 || strings.TrimSpace(raw) == "" {
		return Identity{}, ErrUnauthorized
	}
	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || token == nil || !token.Valid {
		return Identity{}, ErrUnauthorized
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, ErrUnauthorized
	}
	return Identity{UID: claims.Subject, DisplayName: claims.Name}, nil
}
