package client

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestStaticTokenValidity(t *testing.T) {
	assert.False(t, StaticToken("").HasValidToken())
	assert.True(t, StaticToken("opaque-session-token").HasValidToken())
	assert.True(t, StaticToken(signedToken(t, time.Now().Add(time.Hour))).HasValidToken())
	assert.False(t, StaticToken(signedToken(t, time.Now().Add(-time.Hour))).HasValidToken())
}
