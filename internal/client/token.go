package client

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenProvider is the authenticated-session provider.
type TokenProvider interface {
	HasValidToken() bool
	Token() string
}

// StaticToken is a fixed bearer token. Opaque tokens are valid when present;
// JWTs are additionally checked for expiry. Signatures are the relay's concern.
type StaticToken string

func (t StaticToken) Token() string {
	return string(t)
}

func (t StaticToken) HasValidToken() bool {
	if t == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(string(t), claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.After(time.Now())
}
