package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Actor is the authenticated identity attached to a wizard session. A nil
// Actor means the session is anonymous (device-scoped only).
type Actor struct {
	ID         string
	Subscribed bool
}

// Anonymous reports whether the actor has no identity.
func (a *Actor) Anonymous() bool {
	return a == nil || a.ID == ""
}

type sessionClaims struct {
	Subscribed bool `json:"subscribed"`
	jwt.RegisteredClaims
}

// ParseSessionToken validates an externally-issued session token and extracts
// the actor it describes. Token issuance lives with the auth collaborator;
// this side only consumes it.
func ParseSessionToken(token, secret string) (*Actor, error) {
	if secret == "" {
		return nil, fmt.Errorf("no session token secret configured")
	}

	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || claims.Subject == "" {
		return nil, fmt.Errorf("session token has no subject")
	}

	return &Actor{ID: claims.Subject, Subscribed: claims.Subscribed}, nil
}

// MintSessionToken signs a short-lived session token. The production issuer
// is external; this exists for local runs and tests.
func MintSessionToken(identityID string, subscribed bool, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Subscribed: subscribed,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}
