package inmemory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/storage/room"
)

type entry struct {
	room    models.Room
	members []models.Member
}

type Storage struct {
	data   map[string]*entry
	logger *zap.Logger

	mtx *sync.Mutex
}

func NewStorage(logger *zap.Logger) *Storage {
	return &Storage{
		data:   make(map[string]*entry),
		logger: logger,
		mtx:    &sync.Mutex{},
	}
}

func (s *Storage) Create(_ context.Context, value *models.Room) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, ok := s.data[value.ID]; ok {
		return room.ErrRoomExists
	}
	s.data[value.ID] = &entry{room: *value}
	s.logger.Debug("Room added to storage", zap.String("roomID", value.ID))
	return nil
}

func (s *Storage) Get(_ context.Context, id string) (*models.Room, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	e, ok := s.data[id]
	if !ok {
		return nil, room.ErrRoomNotFound
	}
	r := e.room
	return &r, nil
}

func (s *Storage) Delete(_ context.Context, id string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	delete(s.data, id)
	s.logger.Debug("Room deleted from storage", zap.String("roomID", id))
	return nil
}

func (s *Storage) SetContent(_ context.Context, id, content string) error {
	return s.update(id, func(e *entry) {
		e.room.Content = content
	})
}

func (s *Storage) SetLanguage(_ context.Context, id, language string) error {
	return s.update(id, func(e *entry) {
		e.room.Language = language
	})
}

func (s *Storage) SetProblem(_ context.Context, id string, problemID *int64, content string) error {
	return s.update(id, func(e *entry) {
		if problemID == nil {
			e.room.ProblemID = nil
		} else {
			pid := *problemID
			e.room.ProblemID = &pid
		}
		e.room.Content = content
	})
}

func (s *Storage) AddMember(_ context.Context, id string, member models.Member) error {
	return s.update(id, func(e *entry) {
		for _, m := range e.members {
			if m.Username == member.Username {
				return
			}
		}
		e.members = append(e.members, member)
	})
}

func (s *Storage) RemoveMember(_ context.Context, id, username string) error {
	return s.update(id, func(e *entry) {
		for i, m := range e.members {
			if m.Username == username {
				e.members = append(e.members[:i], e.members[i+1:]...)
				return
			}
		}
	})
}

func (s *Storage) Members(_ context.Context, id string) ([]models.Member, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	e, ok := s.data[id]
	if !ok {
		return nil, room.ErrRoomNotFound
	}
	out := make([]models.Member, len(e.members))
	copy(out, e.members)
	return out, nil
}

func (s *Storage) update(id string, fn func(e *entry)) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	e, ok := s.data[id]
	if !ok {
		return room.ErrRoomNotFound
	}
	fn(e)
	e.room.UpdatedAt = time.Now().UTC()
	return nil
}
