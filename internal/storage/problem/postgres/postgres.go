package postgres

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/storage/problem"
)

type Storage struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStorage(db *gorm.DB, logger *zap.Logger) (*Storage, error) {
	if err := db.AutoMigrate(&models.Problem{}, &models.TestCase{}); err != nil {
		return nil, fmt.Errorf("error migrating problem tables: %w", err)
	}
	return &Storage{db: db, logger: logger}, nil
}

func (s *Storage) List(ctx context.Context) ([]models.ProblemSummary, error) {
	var out []models.ProblemSummary
	err := s.db.WithContext(ctx).
		Model(&models.Problem{}).
		Select("id", "title").
		Order("id").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("error listing problems: %w", err)
	}
	if out == nil {
		out = make([]models.ProblemSummary, 0)
	}
	return out, nil
}

func (s *Storage) Get(ctx context.Context, id int64) (*models.Problem, error) {
	var p models.Problem
	err := s.db.WithContext(ctx).Preload("TestCases", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, problem.ErrProblemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading problem: %w", err)
	}
	return &p, nil
}

func (s *Storage) Create(ctx context.Context, p *models.Problem) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("error creating problem: %w", err)
	}
	return nil
}
