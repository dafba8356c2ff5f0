package rest

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Icerzack/codecollab/internal/auth"
	"github.com/Icerzack/codecollab/internal/broker"
	localBroker "github.com/Icerzack/codecollab/internal/broker/local"
	redisBroker "github.com/Icerzack/codecollab/internal/broker/redis"
	"github.com/Icerzack/codecollab/internal/cache"
	"github.com/Icerzack/codecollab/internal/cache/inmemory"
	"github.com/Icerzack/codecollab/internal/judge"
	"github.com/Icerzack/codecollab/internal/storage/event"
	inmemEvent "github.com/Icerzack/codecollab/internal/storage/event/inmemory"
	pgEvent "github.com/Icerzack/codecollab/internal/storage/event/postgres"
	"github.com/Icerzack/codecollab/internal/storage/problem"
	inmemProblem "github.com/Icerzack/codecollab/internal/storage/problem/inmemory"
	pgProblem "github.com/Icerzack/codecollab/internal/storage/problem/postgres"
	"github.com/Icerzack/codecollab/internal/storage/room"
	boltRoom "github.com/Icerzack/codecollab/internal/storage/room/bolt"
	inmemRoom "github.com/Icerzack/codecollab/internal/storage/room/inmemory"
	pgRoom "github.com/Icerzack/codecollab/internal/storage/room/postgres"
	redisRoom "github.com/Icerzack/codecollab/internal/storage/room/redis"
	"github.com/Icerzack/codecollab/internal/storage/user"
	inmemUser "github.com/Icerzack/codecollab/internal/storage/user/inmemory"
)

const seedTimeout = 30 * time.Second

func (rest *Rest) defineUserStorage() user.Storage {
	switch rest.config.UsersStorageType {
	case user.InMemoryStorageType:
		rest.config.Logger.Info("Using in-memory storage for users")
	default:
		rest.config.Logger.Warn("Unknown users storage type, using in-memory", zap.String("type", rest.config.UsersStorageType))
	}
	return inmemUser.NewStorage(rest.config.Logger)
}

func (rest *Rest) defineRoomStorage() (room.Storage, error) {
	cfg := rest.config.RoomsStorage

	switch cfg.Type {
	case room.RedisStorageType:
		rest.config.Logger.Info("Using redis storage for rooms", zap.String("address", cfg.RedisAddress))
		return redisRoom.NewStorage(rest.redisClient(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB), rest.config.Logger), nil
	case room.PostgresStorageType:
		rest.config.Logger.Info("Using postgres storage for rooms")
		db, err := rest.postgres(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return pgRoom.NewStorage(db, rest.config.Logger)
	case room.BoltStorageType:
		rest.config.Logger.Info("Using bolt storage for rooms", zap.String("path", cfg.BoltPath))
		s, err := boltRoom.NewStorage(cfg.BoltPath, rest.config.Logger)
		if err != nil {
			return nil, err
		}
		rest.closers = append(rest.closers, s.Close)
		return s, nil
	case room.InMemoryStorageType:
		rest.config.Logger.Info("Using in-memory storage for rooms")
		return inmemRoom.NewStorage(rest.config.Logger), nil
	default:
		rest.config.Logger.Info("Using in-memory storage for rooms")
		return inmemRoom.NewStorage(rest.config.Logger), nil
	}
}

func (rest *Rest) defineProblemStorage() (problem.Storage, error) {
	cfg := rest.config.ProblemsStorage

	var s problem.Storage
	switch cfg.Type {
	case problem.PostgresStorageType:
		rest.config.Logger.Info("Using postgres storage for problems")
		db, err := rest.postgres(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if s, err = pgProblem.NewStorage(db, rest.config.Logger); err != nil {
			return nil, err
		}
	default:
		rest.config.Logger.Info("Using in-memory storage for problems")
		s = inmemProblem.NewStorage(rest.config.Logger)
	}

	problems := problem.DefaultProblems()
	if cfg.SeedFile != "" {
		loaded, err := problem.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		problems = loaded
	}
	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()
	if err := problem.Seed(ctx, s, problems, rest.config.Logger); err != nil {
		return nil, err
	}
	return s, nil
}

func (rest *Rest) defineEventStorage() (event.Storage, error) {
	cfg := rest.config.EventsStorage

	switch cfg.Type {
	case event.PostgresStorageType:
		rest.config.Logger.Info("Using postgres storage for session events")
		db, err := rest.postgres(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return pgEvent.NewStorage(db, rest.config.Logger)
	default:
		rest.config.Logger.Info("Using in-memory storage for session events")
		return inmemEvent.NewStorage(rest.config.Logger), nil
	}
}

func (rest *Rest) defineBroker() (broker.Broker, error) {
	cfg := rest.config.Broker

	var b broker.Broker
	switch cfg.Type {
	case broker.RedisBrokerType:
		rest.config.Logger.Info("Using redis broker", zap.String("address", cfg.RedisAddress))
		client := rest.redisClient(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("error connecting to redis broker: %w", err)
		}
		b = redisBroker.NewBroker(client, rest.config.Logger)
	default:
		rest.config.Logger.Info("Using in-memory broker")
		b = localBroker.NewBroker(rest.config.Logger)
	}
	rest.closers = append(rest.closers, b.Close)
	return b, nil
}

func (rest *Rest) defineCache() cache.Cache {
	var c cache.Cache

	switch rest.config.CacheType {
	case cache.InMemoryCacheType:
		rest.config.Logger.Info("Using in-memory cache")
		c = inmemory.NewCache(rest.config.Logger)
	default:
		rest.config.Logger.Warn("Unknown cache type, using in-memory", zap.String("type", rest.config.CacheType))
		c = inmemory.NewCache(rest.config.Logger)
	}

	return c
}

// defineValidator prefers local validation with the shared secret over the
// remote validation URL. It returns nil when neither is configured.
func (rest *Rest) defineValidator() auth.Validator {
	var v auth.Validator
	switch {
	case rest.config.JwtSecret != "":
		rest.config.Logger.Info("Validating tokens locally")
		v = auth.NewJWTValidator(rest.config.JwtSecret)
	case rest.config.JwtValidationURL != "":
		rest.config.Logger.Info("Validating tokens remotely", zap.String("url", rest.config.JwtValidationURL))
		v = auth.NewRemoteValidator(rest.config.JwtValidationURL, rest.config.JwtHeaderName, rest.config.Logger)
	default:
		rest.config.Logger.Warn("No token validation configured, accepting anonymous participants")
		return nil
	}

	if rest.config.CacheTTL > 0 {
		v = auth.NewCachedValidator(v, rest.defineCache(), rest.config.CacheTTL, rest.config.Logger)
	}
	return v
}

func (rest *Rest) defineJudge() *judge.Judge {
	var executor judge.Executor
	switch rest.config.ExecutorType {
	case judge.ProcessExecutorType:
		rest.config.Logger.Info("Running room code in local processes")
		executor = judge.NewProcessExecutor(rest.config.ExecutionTimeout, rest.config.Logger)
	default:
		rest.config.Logger.Info("Code execution is disabled")
		executor = judge.Unavailable{}
	}
	return judge.NewJudge(executor, rest.config.Logger)
}

func (rest *Rest) redisClient(address, password string, db int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	rest.closers = append(rest.closers, client.Close)
	return client
}

// postgres opens one connection pool per dsn and shares it between stores.
func (rest *Rest) postgres(dsn string) (*gorm.DB, error) {
	if rest.pools == nil {
		rest.pools = make(map[string]*gorm.DB)
	}
	if db, ok := rest.pools[dsn]; ok {
		return db, nil
	}

	db, err := pgRoom.Open(dsn)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error getting postgres pool: %w", err)
	}
	rest.closers = append(rest.closers, sqlDB.Close)
	rest.pools[dsn] = db
	return db, nil
}
