package rest

import (
	"time"

	"go.uber.org/zap"
)

type StorageConfig struct {
	// Type selects the backend, one of the storage packages' *StorageType constants
	Type string

	RedisAddress  string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string
	BoltPath      string

	// SeedFile is an optional YAML problem catalogue, used by problem storage only
	SeedFile string
}

type BrokerConfig struct {
	Type          string
	RedisAddress  string
	RedisPassword string
	RedisDB       int
}

type Config struct {
	// Port is the port where the server will listen
	Port int

	// JwtSecret enables local HS256 validation of tokens
	JwtSecret string

	// JwtValidationURL is the URL which returns user id based on the JWT.
	// It is used when no secret is configured.
	JwtValidationURL string

	// JwtHeaderName is the header carrying the token when the query has none
	JwtHeaderName string

	// JwtRequired rejects requests without a valid token
	JwtRequired bool

	// CacheTTL is how long a validated token is remembered
	CacheTTL time.Duration
	CacheType string

	UsersStorageType string
	RoomsStorage     StorageConfig
	ProblemsStorage  StorageConfig
	EventsStorage    StorageConfig

	Broker BrokerConfig

	// ExecutorType selects how room code is run, see the judge package
	ExecutorType     string
	ExecutionTimeout time.Duration

	Logger *zap.Logger
}
