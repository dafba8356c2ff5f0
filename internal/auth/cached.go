package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/cache"
)

// CachedValidator remembers successful validations for ttl.
type CachedValidator struct {
	next   Validator
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedValidator(next Validator, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedValidator {
	return &CachedValidator{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

func (v *CachedValidator) Validate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	key := "token:" + token
	cached, err := v.cache.Get(key)
	if err == nil {
		if id, ok := cached.(Identity); ok {
			return id, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		v.logger.Warn("Failed to read token cache", zap.Error(err))
	}

	id, err := v.next.Validate(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	if err := v.cache.SetWithTTL(key, id, v.ttl); err != nil {
		v.logger.Warn("Failed to cache token", zap.Error(err))
	}
	return id, nil
}
