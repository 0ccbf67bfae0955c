package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Relay kinds selectable via config.
const (
	RelayNATS = "nats"
	RelayWS   = "ws"
)

// Config is the client configuration, loaded from an optional YAML file with
// environment overrides on top.
type Config struct {
	Relay struct {
		Kind string `yaml:"kind"`
		NATS struct {
			URL             string `yaml:"url"`
			PresenceTTLSecs int    `yaml:"presence_ttl_seconds"`
			HeartbeatSecs   int    `yaml:"heartbeat_seconds"`
		} `yaml:"nats"`
		WS struct {
			URL string `yaml:"url"`
		} `yaml:"ws"`
	} `yaml:"relay"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// DefaultConfig returns the configuration used when no file and no environment
// overrides are present.
func DefaultConfig() Config {
	var cfg Config
	cfg.Relay.Kind = RelayNATS
	cfg.Relay.NATS.URL = "nats://localhost:4222"
	cfg.Relay.NATS.PresenceTTLSecs = 60
	cfg.Relay.NATS.HeartbeatSecs = 20
	cfg.Store.Path = defaultStorePath()
	cfg.Log.Level = "info"
	return cfg
}

// defaultStorePath places the database under the user config dir, falling back
// to the working directory when none can be resolved.
func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "scrumpo.db"
	}
	return filepath.Join(dir, "scrumpo", "scrumpo.db")
}

// LoadConfig builds the effective configuration: defaults, then the YAML file
// at path (skipped when absent), then environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// No file is fine; defaults + env carry the day.
		case err != nil:
			return cfg, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.Relay.Kind = getEnv("SCRUMPO_RELAY", cfg.Relay.Kind)
	cfg.Relay.NATS.URL = getEnv("SCRUMPO_NATS_URL", cfg.Relay.NATS.URL)
	cfg.Relay.NATS.PresenceTTLSecs = getEnvAsInt("SCRUMPO_PRESENCE_TTL_SECONDS", cfg.Relay.NATS.PresenceTTLSecs)
	cfg.Relay.NATS.HeartbeatSecs = getEnvAsInt("SCRUMPO_HEARTBEAT_SECONDS", cfg.Relay.NATS.HeartbeatSecs)
	cfg.Relay.WS.URL = getEnv("SCRUMPO_WS_URL", cfg.Relay.WS.URL)
	cfg.Store.Path = getEnv("SCRUMPO_STORE_PATH", cfg.Store.Path)
	cfg.Log.Level = getEnv("SCRUMPO_LOG_LEVEL", cfg.Log.Level)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Relay.Kind {
	case RelayNATS:
		if c.Relay.NATS.URL == "" {
			return fmt.Errorf("relay.nats.url is required for the nats relay")
		}
	case RelayWS:
		if c.Relay.WS.URL == "" {
			return fmt.Errorf("relay.ws.url is required for the ws relay")
		}
	default:
		return fmt.Errorf("unknown relay kind %q", c.Relay.Kind)
	}
	if c.Relay.NATS.PresenceTTLSecs <= 0 || c.Relay.NATS.HeartbeatSecs <= 0 {
		return fmt.Errorf("presence ttl and heartbeat must be positive")
	}
	return nil
}

func (c Config) presenceTTL() time.Duration {
	return time.Duration(c.Relay.NATS.PresenceTTLSecs) * time.Second
}

func (c Config) heartbeat() time.Duration {
	return time.Duration(c.Relay.NATS.HeartbeatSecs) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
