package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/storage/room"
)

type Storage struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to dsn with errors translated to gorm's portable ones.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("error connecting to postgres: %w", err)
	}
	return db, nil
}

// NewStorage migrates the room tables on db.
func NewStorage(db *gorm.DB, logger *zap.Logger) (*Storage, error) {
	if err := db.AutoMigrate(&models.Room{}, &models.RoomMember{}); err != nil {
		return nil, fmt.Errorf("error migrating room tables: %w", err)
	}
	return &Storage{db: db, logger: logger}, nil
}

func (s *Storage) Create(ctx context.Context, value *models.Room) error {
	err := s.db.WithContext(ctx).Create(value).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return room.ErrRoomExists
	}
	if err != nil {
		return fmt.Errorf("error creating room: %w", err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, id string) (*models.Room, error) {
	var r models.Room
	err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, room.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading room: %w", err)
	}
	return &r, nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&models.RoomMember{}).Error; err != nil {
			return fmt.Errorf("error deleting members: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Room{}).Error; err != nil {
			return fmt.Errorf("error deleting room: %w", err)
		}
		return nil
	})
}

func (s *Storage) SetContent(ctx context.Context, id, content string) error {
	return s.update(ctx, id, map[string]interface{}{"content": content})
}

func (s *Storage) SetLanguage(ctx context.Context, id, language string) error {
	return s.update(ctx, id, map[string]interface{}{"language": language})
}

func (s *Storage) SetProblem(ctx context.Context, id string, problemID *int64, content string) error {
	return s.update(ctx, id, map[string]interface{}{"problem_id": problemID, "content": content})
}

func (s *Storage) AddMember(ctx context.Context, id string, member models.Member) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	row := models.RoomMember{
		RoomID:   id,
		Username: member.Username,
		Color:    member.Color,
		JoinedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("error adding member: %w", err)
	}
	return nil
}

func (s *Storage) RemoveMember(ctx context.Context, id, username string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND username = ?", id, username).
		Delete(&models.RoomMember{}).Error
	if err != nil {
		return fmt.Errorf("error removing member: %w", err)
	}
	return nil
}

func (s *Storage) Members(ctx context.Context, id string) ([]models.Member, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	var rows []models.RoomMember
	err := s.db.WithContext(ctx).
		Where("room_id = ?", id).
		Order("joined_at, username").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error reading members: %w", err)
	}
	members := make([]models.Member, 0, len(rows))
	for _, r := range rows {
		members = append(members, models.Member{Username: r.Username, Color: r.Color})
	}
	return members, nil
}

func (s *Storage) update(ctx context.Context, id string, values map[string]interface{}) error {
	values["updated_at"] = time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.Room{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("error updating room: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return room.ErrRoomNotFound
	}
	return nil
}
