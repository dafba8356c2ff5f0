package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/storage/room"
)

const keyPrefix = "codecollab:room:"

// Storage keeps each room as a hash and its roster as a second hash of
// username -> member record.
type Storage struct {
	client *redis.Client
	logger *zap.Logger
}

type memberRecord struct {
	Color    string    `json:"color"`
	JoinedAt time.Time `json:"joinedAt"`
}

func NewStorage(client *redis.Client, logger *zap.Logger) *Storage {
	return &Storage{
		client: client,
		logger: logger,
	}
}

func roomKey(id string) string {
	return keyPrefix + id
}

func membersKey(id string) string {
	return keyPrefix + id + ":members"
}

func (s *Storage) Create(ctx context.Context, value *models.Room) error {
	key := roomKey(value.ID)
	created, err := s.client.HSetNX(ctx, key, "id", value.ID).Result()
	if err != nil {
		return fmt.Errorf("error creating room: %w", err)
	}
	if !created {
		return room.ErrRoomExists
	}

	fields := map[string]interface{}{
		"content":    value.Content,
		"language":   value.Language,
		"created_by": value.CreatedBy,
		"created_at": value.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": value.UpdatedAt.Format(time.RFC3339Nano),
	}
	if value.ProblemID != nil {
		fields["problem_id"] = strconv.FormatInt(*value.ProblemID, 10)
	}
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("error creating room: %w", err)
	}
	s.logger.Debug("Room added to redis", zap.String("roomID", value.ID))
	return nil
}

func (s *Storage) Get(ctx context.Context, id string) (*models.Room, error) {
	fields, err := s.client.HGetAll(ctx, roomKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading room: %w", err)
	}
	if len(fields) == 0 {
		return nil, room.ErrRoomNotFound
	}

	r := &models.Room{
		ID:        fields["id"],
		Content:   fields["content"],
		Language:  fields["language"],
		CreatedBy: fields["created_by"],
	}
	if raw, ok := fields["problem_id"]; ok && raw != "" {
		pid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("error parsing problem id of %s: %w", id, err)
		}
		r.ProblemID = &pid
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return r, nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, roomKey(id), membersKey(id)).Err(); err != nil {
		return fmt.Errorf("error deleting room: %w", err)
	}
	return nil
}

func (s *Storage) SetContent(ctx context.Context, id, content string) error {
	return s.update(ctx, id, "content", content)
}

func (s *Storage) SetLanguage(ctx context.Context, id, language string) error {
	return s.update(ctx, id, "language", language)
}

func (s *Storage) SetProblem(ctx context.Context, id string, problemID *int64, content string) error {
	pid := ""
	if problemID != nil {
		pid = strconv.FormatInt(*problemID, 10)
	}
	return s.update(ctx, id, "problem_id", pid, "content", content)
}

func (s *Storage) AddMember(ctx context.Context, id string, member models.Member) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	raw, err := json.Marshal(memberRecord{Color: member.Color, JoinedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := s.client.HSetNX(ctx, membersKey(id), member.Username, raw).Err(); err != nil {
		return fmt.Errorf("error adding member: %w", err)
	}
	return nil
}

func (s *Storage) RemoveMember(ctx context.Context, id, username string) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	if err := s.client.HDel(ctx, membersKey(id), username).Err(); err != nil {
		return fmt.Errorf("error removing member: %w", err)
	}
	return nil
}

func (s *Storage) Members(ctx context.Context, id string) ([]models.Member, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	fields, err := s.client.HGetAll(ctx, membersKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading members: %w", err)
	}

	type joined struct {
		member models.Member
		at     time.Time
	}
	all := make([]joined, 0, len(fields))
	for username, raw := range fields {
		var rec memberRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.logger.Warn("Skipping undecodable member", zap.String("roomID", id), zap.Error(err))
			continue
		}
		all = append(all, joined{member: models.Member{Username: username, Color: rec.Color}, at: rec.JoinedAt})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].at.Equal(all[j].at) {
			return all[i].member.Username < all[j].member.Username
		}
		return all[i].at.Before(all[j].at)
	})

	members := make([]models.Member, 0, len(all))
	for _, j := range all {
		members = append(members, j.member)
	}
	return members, nil
}

func (s *Storage) exists(ctx context.Context, id string) error {
	n, err := s.client.Exists(ctx, roomKey(id)).Result()
	if err != nil {
		return fmt.Errorf("error reading room: %w", err)
	}
	if n == 0 {
		return room.ErrRoomNotFound
	}
	return nil
}

func (s *Storage) update(ctx context.Context, id string, pairs ...string) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	values := make([]interface{}, 0, len(pairs)+2)
	for _, p := range pairs {
		values = append(values, p)
	}
	values = append(values, "updated_at", time.Now().UTC().Format(time.RFC3339Nano))

	err := s.client.HSet(ctx, roomKey(id), values...).Err()
	if errors.Is(err, redis.Nil) {
		return room.ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("error updating room: %w", err)
	}
	return nil
}
