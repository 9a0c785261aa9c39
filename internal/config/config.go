// Package config loads the fleetstore YAML configuration.
//
// Values come from three layers, later ones winning:
//
//  1. Default()
//  2. the YAML file (configs/default.yaml unless --config says otherwise)
//  3. FLEETSTORE_* environment variables, optionally read from a .env file
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendMongo  = "mongodb"
	BackendMemory = "memory"

	CounterStore = "store"
	CounterRedis = "redis"
)

// Config is the complete fleetstore configuration.
type Config struct {
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`

	Context struct {
		// Timeout bounds job reads. Zero disables the bound.
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"context"`

	Database struct {
		Backend string `yaml:"backend"`
		Name    string `yaml:"name"`
	} `yaml:"database"`

	MongoDB struct {
		URI             string        `yaml:"uri"`
		Timeout         time.Duration `yaml:"timeout"`
		MaxPoolSize     uint64        `yaml:"max_pool_size"`
		ConnectAttempts int           `yaml:"connect_attempts"`
		ConnectDelay    time.Duration `yaml:"connect_delay"`
	} `yaml:"mongodb"`

	Memory struct {
		SnapshotPath string `yaml:"snapshot_path"`
	} `yaml:"memory"`

	Sequence struct {
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"sequence"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns a configuration that runs standalone on the memory backend.
func Default() *Config {
	var c Config
	c.Server.Address = ":50051"
	c.Context.Timeout = 10 * time.Second
	c.Database.Backend = BackendMemory
	c.Database.Name = "fleet"
	c.MongoDB.URI = "mongodb://localhost:27017"
	c.MongoDB.Timeout = 120 * time.Second
	c.MongoDB.MaxPoolSize = 100
	c.MongoDB.ConnectAttempts = 5
	c.MongoDB.ConnectDelay = 5 * time.Second
	c.Sequence.Backend = CounterStore
	c.Sequence.Redis.Addr = "localhost:6379"
	c.Sequence.Redis.Prefix = "fleetstore:"
	c.Metrics.Enabled = true
	c.Metrics.Port = 9090
	c.Log.Level = "info"
	c.Log.Format = "text"
	return &c
}

// Load reads path over Default, applies environment overrides and validates
// the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Address, "FLEETSTORE_SERVER_ADDRESS")
	setString(&c.Database.Backend, "FLEETSTORE_DATABASE_BACKEND")
	setString(&c.Database.Name, "FLEETSTORE_DATABASE_NAME")
	setString(&c.MongoDB.URI, "FLEETSTORE_MONGODB_URI")
	setString(&c.Memory.SnapshotPath, "FLEETSTORE_SNAPSHOT_PATH")
	setString(&c.Sequence.Backend, "FLEETSTORE_SEQUENCE_BACKEND")
	setString(&c.Sequence.Redis.Addr, "FLEETSTORE_REDIS_ADDR")
	setString(&c.Sequence.Redis.Password, "FLEETSTORE_REDIS_PASSWORD")
	setString(&c.Log.Level, "FLEETSTORE_LOG_LEVEL")
	setString(&c.Log.Format, "FLEETSTORE_LOG_FORMAT")

	if v := os.Getenv("FLEETSTORE_CONTEXT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: FLEETSTORE_CONTEXT_TIMEOUT: %w", err)
		}
		c.Context.Timeout = d
	}
	if v := os.Getenv("FLEETSTORE_METRICS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: FLEETSTORE_METRICS_PORT: %w", err)
		}
		c.Metrics.Port = port
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var problems []error

	if c.Server.Address == "" {
		problems = append(problems, errors.New("server.address is required"))
	}
	if c.Context.Timeout < 0 {
		problems = append(problems, errors.New("context.timeout must not be negative"))
	}
	if c.Database.Name == "" {
		problems = append(problems, errors.New("database.name is required"))
	}

	switch c.Database.Backend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoDB.URI == "" {
			problems = append(problems, errors.New("mongodb.uri is required for the mongodb backend"))
		}
		if c.MongoDB.ConnectAttempts < 1 {
			problems = append(problems, errors.New("mongodb.connect_attempts must be at least 1"))
		}
	default:
		problems = append(problems, fmt.Errorf("database.backend %q is not one of %s, %s", c.Database.Backend, BackendMongo, BackendMemory))
	}

	switch c.Sequence.Backend {
	case CounterStore:
	case CounterRedis:
		if c.Sequence.Redis.Addr == "" {
			problems = append(problems, errors.New("sequence.redis.addr is required for the redis backend"))
		}
	default:
		problems = append(problems, fmt.Errorf("sequence.backend %q is not one of %s, %s", c.Sequence.Backend, CounterStore, CounterRedis))
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		problems = append(problems, fmt.Errorf("metrics.port %d out of range", c.Metrics.Port))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(problems...))
	}
	return nil
}
