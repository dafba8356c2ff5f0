package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Icerzack/codecollab/internal/models"
)

// ErrRoomNotFound is returned by a RoomStore for unknown rooms.
var ErrRoomNotFound = errors.New("room not found")

// RoomStore is the REST room store consumed by a session.
type RoomStore interface {
	GetRoom(ctx context.Context, roomID string) (models.RoomView, error)
	CreateRoom(ctx context.Context) (string, error)
	ListProblems(ctx context.Context) ([]models.ProblemSummary, error)
}

// HTTPRoomStore talks to the relay's /api endpoints.
type HTTPRoomStore struct {
	baseURL string
	tokens  TokenProvider
	client  *http.Client
}

func NewHTTPRoomStore(baseURL string, tokens TokenProvider) *HTTPRoomStore {
	return &HTTPRoomStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPRoomStore) GetRoom(ctx context.Context, roomID string) (models.RoomView, error) {
	var view models.RoomView
	err := s.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID), &view)
	return view, err
}

func (s *HTTPRoomStore) CreateRoom(ctx context.Context) (string, error) {
	var resp struct {
		RoomID string `json:"roomId"`
	}
	if err := s.do(ctx, http.MethodPost, "/api/rooms", &resp); err != nil {
		return "", err
	}
	return resp.RoomID, nil
}

func (s *HTTPRoomStore) ListProblems(ctx context.Context) ([]models.ProblemSummary, error) {
	var problems []models.ProblemSummary
	err := s.do(ctx, http.MethodGet, "/api/problems", &problems)
	return problems, err
}

func (s *HTTPRoomStore) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if s.tokens != nil && s.tokens.Token() != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens.Token())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrRoomNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthenticated
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("room store returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
