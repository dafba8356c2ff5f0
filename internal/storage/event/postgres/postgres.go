package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Icerzack/codecollab/internal/models"
)

type Storage struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStorage(db *gorm.DB, logger *zap.Logger) (*Storage, error) {
	if err := db.AutoMigrate(&models.SessionEvent{}); err != nil {
		return nil, fmt.Errorf("error migrating session event table: %w", err)
	}
	return &Storage{db: db, logger: logger}, nil
}

func (s *Storage) Record(ctx context.Context, e *models.SessionEvent) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("error recording session event: %w", err)
	}
	return nil
}

func (s *Storage) List(ctx context.Context, roomID string) ([]models.SessionEvent, error) {
	events := make([]models.SessionEvent, 0)
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at, id").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("error listing session events: %w", err)
	}
	return events, nil
}
