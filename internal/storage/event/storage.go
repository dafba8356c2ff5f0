package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Icerzack/codecollab/internal/models"
)

const (
	InMemoryStorageType = "in-memory"
	PostgresStorageType = "postgres"
)

// Storage records the timeline of each room session.
type Storage interface {
	Record(ctx context.Context, e *models.SessionEvent) error
	// List returns the events of roomID, oldest first.
	List(ctx context.Context, roomID string) ([]models.SessionEvent, error)
}

// NewEvent builds an event with payload encoded as JSON.
func NewEvent(roomID, eventType string, payload interface{}) (*models.SessionEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error encoding %s payload: %w", eventType, err)
	}
	return &models.SessionEvent{
		RoomID:    roomID,
		Type:      eventType,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}
