package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/storage/room"
)

var (
	roomsBucket   = []byte("rooms")
	membersBucket = []byte("members")
)

// Storage keeps rooms in an embedded bbolt file, JSON encoded.
type Storage struct {
	db     *bolt.DB
	logger *zap.Logger
}

func NewStorage(path string, logger *zap.Logger) (*Storage, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("error opening bolt file %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{roomsBucket, membersBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error creating bolt buckets: %w", err)
	}
	logger.Info("Opened bolt room storage", zap.String("path", path))
	return &Storage{db: db, logger: logger}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) Create(_ context.Context, value *models.Room) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rooms := tx.Bucket(roomsBucket)
		if rooms.Get([]byte(value.ID)) != nil {
			return room.ErrRoomExists
		}
		return put(rooms, value.ID, value)
	})
}

func (s *Storage) Get(_ context.Context, id string) (*models.Room, error) {
	var r models.Room
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx.Bucket(roomsBucket), id, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Storage) Delete(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(roomsBucket).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(membersBucket).Delete([]byte(id))
	})
}

func (s *Storage) SetContent(_ context.Context, id, content string) error {
	return s.updateRoom(id, func(r *models.Room) {
		r.Content = content
	})
}

func (s *Storage) SetLanguage(_ context.Context, id, language string) error {
	return s.updateRoom(id, func(r *models.Room) {
		r.Language = language
	})
}

func (s *Storage) SetProblem(_ context.Context, id string, problemID *int64, content string) error {
	return s.updateRoom(id, func(r *models.Room) {
		r.ProblemID = problemID
		r.Content = content
	})
}

func (s *Storage) AddMember(_ context.Context, id string, member models.Member) error {
	return s.updateMembers(id, func(members []models.Member) []models.Member {
		for _, m := range members {
			if m.Username == member.Username {
				return members
			}
		}
		return append(members, member)
	})
}

func (s *Storage) RemoveMember(_ context.Context, id, username string) error {
	return s.updateMembers(id, func(members []models.Member) []models.Member {
		for i, m := range members {
			if m.Username == username {
				return append(members[:i], members[i+1:]...)
			}
		}
		return members
	})
}

func (s *Storage) Members(_ context.Context, id string) ([]models.Member, error) {
	members := make([]models.Member, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(roomsBucket).Get([]byte(id)) == nil {
			return room.ErrRoomNotFound
		}
		raw := tx.Bucket(membersBucket).Get([]byte(id))
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &members)
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Storage) updateRoom(id string, fn func(r *models.Room)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rooms := tx.Bucket(roomsBucket)
		var r models.Room
		if err := get(rooms, id, &r); err != nil {
			return err
		}
		fn(&r)
		r.UpdatedAt = time.Now().UTC()
		return put(rooms, id, &r)
	})
}

func (s *Storage) updateMembers(id string, fn func([]models.Member) []models.Member) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(roomsBucket).Get([]byte(id)) == nil {
			return room.ErrRoomNotFound
		}
		bucket := tx.Bucket(membersBucket)
		members := make([]models.Member, 0)
		if raw := bucket.Get([]byte(id)); raw != nil {
			if err := json.Unmarshal(raw, &members); err != nil {
				return fmt.Errorf("error decoding members of %s: %w", id, err)
			}
		}
		return put(bucket, id, fn(members))
	})
}

func get(bucket *bolt.Bucket, key string, v interface{}) error {
	raw := bucket.Get([]byte(key))
	if raw == nil {
		return room.ErrRoomNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("error decoding %s: %w", key, err)
	}
	return nil
}

func put(bucket *bolt.Bucket, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error encoding %s: %w", key, err)
	}
	return bucket.Put([]byte(key), raw)
}
