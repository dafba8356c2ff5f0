package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/auth"
	"github.com/Icerzack/codecollab/internal/cache/inmemory"
)

func TestJWTValidator(t *testing.T) {
	v := auth.NewJWTValidator("secret")
	ctx := context.Background()

	token, err := v.Sign("42", "alice", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)

	id, err := v.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{Subject: "42", Username: "alice"}, id)

	_, err = v.Validate(ctx, "")
	assert.ErrorIs(t, err, auth.ErrMissingToken)

	expired, err := v.Sign("42", "alice", jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	require.NoError(t, err)
	_, err = v.Validate(ctx, expired)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	forged, err := auth.NewJWTValidator("other").Sign("42", "alice", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)
	_, err = v.Validate(ctx, forged)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	noExpiry, err := v.Sign("42", "alice", nil)
	require.NoError(t, err)
	_, err = v.Validate(ctx, noExpiry)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRemoteValidator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("X-Token") {
		case "good":
			_, _ = w.Write([]byte(`{"id": 7, "username": "bob"}`))
		case "forbidden":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	v := auth.NewRemoteValidator(srv.URL, "X-Token", zap.NewNop())
	ctx := context.Background()

	id, err := v.Validate(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{Subject: "7", Username: "bob"}, id)

	_, err = v.Validate(ctx, "bad")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = v.Validate(ctx, "forbidden")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

type countingValidator struct {
	calls atomic.Int32
}

func (v *countingValidator) Validate(_ context.Context, token string) (auth.Identity, error) {
	v.calls.Add(1)
	if token != "good" {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return auth.Identity{Subject: "1"}, nil
}

func TestCachedValidatorRemembersSuccess(t *testing.T) {
	next := &countingValidator{}
	v := auth.NewCachedValidator(next, inmemory.NewCache(zap.NewNop()), time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := v.Validate(ctx, "good")
		require.NoError(t, err)
		assert.Equal(t, "1", id.Subject)
	}
	for i := 0; i < 2; i++ {
		_, err := v.Validate(ctx, "bad")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	}

	assert.Equal(t, int32(3), next.calls.Load())
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)
	assert.Equal(t, "abc", auth.TokenFromRequest(r, ""))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", auth.TokenFromRequest(r, ""))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("X-Token", "raw")
	assert.Equal(t, "raw", auth.TokenFromRequest(r, "X-Token"))
}
