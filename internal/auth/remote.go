package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RemoteValidator asks an external service who a token belongs to. The
// service answers 200 with {"id": ..., "username": ...} for valid tokens.
type RemoteValidator struct {
	// validationURL is queried with the token in headerName
	validationURL string

	headerName string

	client *http.Client
	logger *zap.Logger
}

type validationResponse struct {
	ID       json.RawMessage `json:"id"`
	Username string          `json:"username"`
}

func NewRemoteValidator(validationURL, headerName string, logger *zap.Logger) *RemoteValidator {
	if headerName == "" {
		headerName = "Authorization"
	}
	return &RemoteValidator{
		validationURL: validationURL,
		headerName:    headerName,
		client:        &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
	}
}

func (v *RemoteValidator) Validate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.validationURL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to build validation request: %w", err)
	}
	if v.headerName == "Authorization" {
		req.Header.Set(v.headerName, "Bearer "+token)
	} else {
		req.Header.Set(v.headerName, token)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Error("Failed to send validation request", zap.Error(err))
		return Identity{}, fmt.Errorf("failed to send validation request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return Identity{}, fmt.Errorf("unauthorized: %w", ErrInvalidToken)
	case http.StatusForbidden:
		return Identity{}, fmt.Errorf("forbidden: %w", ErrInvalidToken)
	default:
		return Identity{}, fmt.Errorf("validation service returned %d", resp.StatusCode)
	}

	var body validationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		v.logger.Error("Failed to decode validation response", zap.Error(err))
		return Identity{}, fmt.Errorf("failed to decode validation response: %w", err)
	}

	// The id may be numeric or a string.
	subject := strings.Trim(string(body.ID), `"`)
	if subject == "null" {
		subject = ""
	}
	if subject == "" {
		subject = body.Username
	}
	if subject == "" {
		return Identity{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return Identity{Subject: subject, Username: body.Username}, nil
}
