// Package auth validates the bearer tokens presented to the relay and the REST API.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is who a valid token belongs to.
type Identity struct {
	Subject  string
	Username string
}

type Validator interface {
	Validate(ctx context.Context, token string) (Identity, error)
}

// TokenFromRequest reads the token from the "token" query parameter, falling
// back to the named header. A "Bearer " prefix is stripped.
func TokenFromRequest(r *http.Request, headerName string) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if headerName == "" {
		headerName = "Authorization"
	}
	value := strings.TrimSpace(r.Header.Get(headerName))
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return value
}
