package room

import (
	"context"
	"errors"

	"github.com/Icerzack/codecollab/internal/models"
)

const (
	InMemoryStorageType = "in-memory"
	RedisStorageType    = "redis"
	PostgresStorageType = "postgres"
	BoltStorageType     = "bolt"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

// Storage persists rooms: the buffer, language, loaded problem and roster.
type Storage interface {
	Create(ctx context.Context, room *models.Room) error
	Get(ctx context.Context, id string) (*models.Room, error)
	Delete(ctx context.Context, id string) error

	SetContent(ctx context.Context, id, content string) error
	SetLanguage(ctx context.Context, id, language string) error
	// SetProblem links problemID (nil for the lobby) and replaces the buffer with content.
	SetProblem(ctx context.Context, id string, problemID *int64, content string) error

	// AddMember is idempotent per username.
	AddMember(ctx context.Context, id string, member models.Member) error
	RemoveMember(ctx context.Context, id, username string) error
	Members(ctx context.Context, id string) ([]models.Member, error)
}
