package cache

import (
	"errors"
	"time"
)

const (
	InMemoryCacheType = "in-memory"
)

// ErrMiss is returned for absent or expired keys.
var ErrMiss = errors.New("cache miss")

type Cache interface {
	Set(key string, value interface{}) error
	Get(key string) (interface{}, error)
	SetWithTTL(key string, value interface{}, ttl time.Duration) error
	Delete(key string) error
}
