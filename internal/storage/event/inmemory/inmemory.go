package inmemory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/models"
)

type Storage struct {
	data   map[string][]models.SessionEvent
	nextID int64
	logger *zap.Logger

	mtx *sync.RWMutex
}

func NewStorage(logger *zap.Logger) *Storage {
	return &Storage{
		data:   make(map[string][]models.SessionEvent),
		logger: logger,
		mtx:    &sync.RWMutex{},
	}
}

func (s *Storage) Record(_ context.Context, e *models.SessionEvent) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.nextID++
	e.ID = s.nextID
	s.data[e.RoomID] = append(s.data[e.RoomID], *e)
	s.logger.Debug("Session event recorded", zap.String("roomID", e.RoomID), zap.String("type", e.Type))
	return nil
}

func (s *Storage) List(_ context.Context, roomID string) ([]models.SessionEvent, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	out := make([]models.SessionEvent, len(s.data[roomID]))
	copy(out, s.data[roomID])
	return out, nil
}
