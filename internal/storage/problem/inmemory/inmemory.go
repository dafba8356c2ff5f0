package inmemory

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/storage/problem"
)

type Storage struct {
	data   map[int64]models.Problem
	nextID int64
	nextTC int64
	logger *zap.Logger

	mtx *sync.RWMutex
}

func NewStorage(logger *zap.Logger) *Storage {
	return &Storage{
		data:   make(map[int64]models.Problem),
		logger: logger,
		mtx:    &sync.RWMutex{},
	}
}

func (s *Storage) List(_ context.Context) ([]models.ProblemSummary, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	out := make([]models.ProblemSummary, 0, len(s.data))
	for _, p := range s.data {
		out = append(out, models.ProblemSummary{ID: p.ID, Title: p.Title})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Storage) Get(_ context.Context, id int64) (*models.Problem, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	p, ok := s.data[id]
	if !ok {
		return nil, problem.ErrProblemNotFound
	}
	p.TestCases = append([]models.TestCase(nil), p.TestCases...)
	return &p, nil
}

func (s *Storage) Create(_ context.Context, p *models.Problem) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if p.ID == 0 {
		s.nextID++
		p.ID = s.nextID
	} else if p.ID > s.nextID {
		s.nextID = p.ID
	}
	cases := make([]models.TestCase, len(p.TestCases))
	for i, tc := range p.TestCases {
		if tc.ID == 0 {
			s.nextTC++
			tc.ID = s.nextTC
		}
		tc.ProblemID = p.ID
		cases[i] = tc
	}
	p.TestCases = cases

	stored := *p
	stored.TestCases = append([]models.TestCase(nil), cases...)
	s.data[p.ID] = stored
	s.logger.Debug("Problem added to storage", zap.Int64("problemID", p.ID))
	return nil
}
