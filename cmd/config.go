package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Icerzack/codecollab/internal/rest"
)

const (
	DefaultConfigPath = "config.yml"
	defaultPort       = 8080
)

// Environment overrides, also read from a .env file in the working directory.
const (
	EnvConfigPath    = "CODECOLLAB_CONFIG"
	EnvJWTSecret     = "CODECOLLAB_JWT_SECRET"
	EnvPort          = "CODECOLLAB_PORT"
	EnvRedisPassword = "CODECOLLAB_REDIS_PASSWORD"
	EnvPostgresDSN   = "CODECOLLAB_POSTGRES_DSN"
)

type StorageConfig struct {
	Type          string `yaml:"type"`
	RedisAddress  string `yaml:"redis_address"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	BoltPath      string `yaml:"bolt_path"`
	SeedFile      string `yaml:"seed_file"`
}

type Config struct {
	Apps struct {
		LogLevel   string `yaml:"log_level"`
		LogToFiles bool   `yaml:"log_to_files"`
		Rest       struct {
			Port int `yaml:"port"`
			JWT  struct {
				Secret        string        `yaml:"secret"`
				ValidationURL string        `yaml:"validation_url"`
				HeaderName    string        `yaml:"header_name"`
				Required      bool          `yaml:"required"`
				CacheTTL      time.Duration `yaml:"cache_ttl"`
			} `yaml:"jwt"`
		} `yaml:"rest"`
	} `yaml:"apps"`
	Storage struct {
		Users struct {
			Type string `yaml:"type"`
		} `yaml:"users"`
		Rooms    StorageConfig `yaml:"rooms"`
		Problems StorageConfig `yaml:"problems"`
		Events   StorageConfig `yaml:"events"`
	} `yaml:"storage"`
	Broker struct {
		Type          string `yaml:"type"`
		RedisAddress  string `yaml:"redis_address"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
	} `yaml:"broker"`
	Judge struct {
		Executor string        `yaml:"executor"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"judge"`
}

func ParseConfig(path string, logger *zap.Logger) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		logger.Error("Failed to open config file", zap.Error(err))
		return nil, fmt.Errorf("error opening file %w", err)
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		logger.Error("Failed to decode config file", zap.Error(err))
		return nil, fmt.Errorf("error decoding file %w", err)
	}

	return &config, nil
}

// LoadConfig reads .env, then the YAML file named by CODECOLLAB_CONFIG (or
// path), then applies environment overrides and defaults. A missing file
// yields a default configuration.
func LoadConfig(path string, logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env %w", err)
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		path = p
	}

	config := &Config{}
	if _, err := os.Stat(path); err == nil {
		if config, err = ParseConfig(path, logger); err != nil {
			return nil, err
		}
	} else {
		logger.Info("No config file, using defaults", zap.String("path", path))
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	config.applyDefaults()
	return config, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.Apps.Rest.JWT.Secret = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Apps.Rest.Port = port
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		c.Storage.Rooms.RedisPassword = v
		c.Broker.RedisPassword = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Storage.Rooms.PostgresDSN = v
		c.Storage.Problems.PostgresDSN = v
		c.Storage.Events.PostgresDSN = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Apps.LogLevel == "" {
		c.Apps.LogLevel = "info"
	}
	if c.Apps.Rest.Port == 0 {
		c.Apps.Rest.Port = defaultPort
	}
	if c.Apps.Rest.JWT.HeaderName == "" {
		c.Apps.Rest.JWT.HeaderName = "Authorization"
	}
	for _, s := range []*StorageConfig{&c.Storage.Rooms, &c.Storage.Problems, &c.Storage.Events} {
		if s.Type == "" {
			s.Type = "in-memory"
		}
	}
	if c.Storage.Users.Type == "" {
		c.Storage.Users.Type = "in-memory"
	}
	if c.Broker.Type == "" {
		c.Broker.Type = "in-memory"
	}
	if c.Judge.Executor == "" {
		c.Judge.Executor = "none"
	}
	if c.Judge.Timeout <= 0 {
		c.Judge.Timeout = 10 * time.Second
	}
}

// RestConfig maps the file layout onto the REST app configuration.
func (c *Config) RestConfig(logger *zap.Logger) *rest.Config {
	storage := func(s StorageConfig) rest.StorageConfig {
		return rest.StorageConfig{
			Type:          s.Type,
			RedisAddress:  s.RedisAddress,
			RedisPassword: s.RedisPassword,
			RedisDB:       s.RedisDB,
			PostgresDSN:   s.PostgresDSN,
			BoltPath:      s.BoltPath,
			SeedFile:      s.SeedFile,
		}
	}

	return &rest.Config{
		Port:             c.Apps.Rest.Port,
		JwtSecret:        c.Apps.Rest.JWT.Secret,
		JwtValidationURL: c.Apps.Rest.JWT.ValidationURL,
		JwtHeaderName:    c.Apps.Rest.JWT.HeaderName,
		JwtRequired:      c.Apps.Rest.JWT.Required,
		CacheTTL:         c.Apps.Rest.JWT.CacheTTL,
		UsersStorageType: c.Storage.Users.Type,
		RoomsStorage:     storage(c.Storage.Rooms),
		ProblemsStorage:  storage(c.Storage.Problems),
		EventsStorage:    storage(c.Storage.Events),
		Broker: rest.BrokerConfig{
			Type:          c.Broker.Type,
			RedisAddress:  c.Broker.RedisAddress,
			RedisPassword: c.Broker.RedisPassword,
			RedisDB:       c.Broker.RedisDB,
		},
		ExecutorType:     c.Judge.Executor,
		ExecutionTimeout: c.Judge.Timeout,
		Logger:           logger,
	}
}
