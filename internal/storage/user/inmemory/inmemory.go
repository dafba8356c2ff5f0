package inmemory

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/storage/user"
)

type Storage struct {
	data   map[string]*models.User
	logger *zap.Logger

	mtx *sync.RWMutex
}

func NewStorage(logger *zap.Logger) *Storage {
	return &Storage{
		data:   make(map[string]*models.User),
		logger: logger,
		mtx:    &sync.RWMutex{},
	}
}

func (s *Storage) Set(key string, value *models.User) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.data[key] = value
	s.logger.Debug("Connection registered", zap.String("connID", key), zap.String("roomID", value.RoomID))
	return nil
}

func (s *Storage) Delete(key string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, ok := s.data[key]; !ok {
		return user.ErrUserNotFound
	}
	delete(s.data, key)
	s.logger.Debug("Connection unregistered", zap.String("connID", key))
	return nil
}

func (s *Storage) Count() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.data)
}
