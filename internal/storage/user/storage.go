package user

import (
	"errors"

	"github.com/Icerzack/codecollab/internal/models"
)

const (
	InMemoryStorageType = "in-memory"
)

var ErrUserNotFound = errors.New("user not found")

// Storage is the relay's registry of live connections, keyed by connection id.
type Storage interface {
	Set(key string, value *models.User) error
	Delete(key string) error
	Count() int
}
