// Package auth verifies identity tokens issued by the external identity
// provider and exposes the caller's user id and role to handlers.
//
// The platform does not mint or manage credentials itself; it only checks
// the HMAC signature and standard claims of incoming bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles known to the platform.
const (
	RoleClient    = "client"
	RoleCompanion = "companion"
	RoleAdmin     = "admin"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrMissingRole  = errors.New("auth: token has no role claim")
)

// Identity is the authenticated caller extracted from a token.
type Identity struct {
	UserID string
	Role   string
}

// Claims is the JWT claim set issued by the identity provider.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a token verifier with the shared HMAC secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a token string, returning the caller identity.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithLeeway(30*time.Second))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	switch claims.Role {
	case RoleClient, RoleCompanion, RoleAdmin:
	default:
		return nil, ErrMissingRole
	}

	return &Identity{UserID: claims.Subject, Role: claims.Role}, nil
}

// Sign mints a token for the given identity. Used by tests and local tooling;
// production tokens come from the identity provider.
func (v *Verifier) Sign(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
