package bot

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	coredatabase "github.com/m3rciful/relaybot/core/database"
	"github.com/m3rciful/relaybot/relay"
)

// Storage backends accepted by storage.backend.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

const (
	defaultStorageDir  = "data"
	defaultRedisPrefix = "relay"
	defaultSuspendDays = 7
)

// RelayConfig describes the admin surface and the admission limits.
type RelayConfig struct {
	AdminGroupID  int64   `yaml:"admin_group_id" envconfig:"RELAY_ADMIN_GROUP_ID"`
	AdminThreadID int     `yaml:"admin_thread_id" envconfig:"RELAY_ADMIN_THREAD_ID"`
	MainGroupID   int64   `yaml:"main_group_id" envconfig:"RELAY_MAIN_GROUP_ID"`
	ModeratorIDs  []int64 `yaml:"moderator_ids" envconfig:"RELAY_MODERATOR_IDS"`
	MaxChars      int     `yaml:"max_chars" envconfig:"RELAY_MAX_CHARS"`
	SuspendDays   int     `yaml:"suspend_days" envconfig:"RELAY_SUSPEND_DAYS"`
	Timezone      string  `yaml:"timezone" envconfig:"RELAY_TIMEZONE"`

	Texts relay.Texts `yaml:"texts" ignored:"true"`
}

// SuspendFor converts SuspendDays to a duration.
func (c RelayConfig) SuspendFor() time.Duration {
	return time.Duration(c.SuspendDays) * 24 * time.Hour
}

// RedisConfig holds connection settings for the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Prefix   string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
}

// StorageConfig selects where suspensions and daily quota records live.
type StorageConfig struct {
	Backend string      `yaml:"backend" envconfig:"STORAGE_BACKEND"`
	Dir     string      `yaml:"dir" envconfig:"STORAGE_DIR"`
	Redis   RedisConfig `yaml:"redis"`
}

// HTTPConfig configures the health and metrics listener. An empty Listen
// disables it.
type HTTPConfig struct {
	Listen string `yaml:"listen" envconfig:"HTTP_LISTEN"`
}

// Config is the relay bot configuration. The core sections sit at the top
// level of the YAML document.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Relay    RelayConfig         `yaml:"relay"`
	Storage  StorageConfig       `yaml:"storage"`
	Database coredatabase.Config `yaml:"database"`
	HTTP     HTTPConfig          `yaml:"http"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// LoadConfig reads path, overlays the environment and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the relay sections and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	r := &cfg.Relay
	if r.AdminGroupID == 0 {
		return fmt.Errorf("relay.admin_group_id is required")
	}
	if r.AdminThreadID < 0 {
		return fmt.Errorf("relay.admin_thread_id must not be negative")
	}
	if r.MaxChars < 0 {
		return fmt.Errorf("relay.max_chars must not be negative")
	}
	if r.MaxChars == 0 {
		r.MaxChars = relay.DefaultMaxChars
	}
	if r.SuspendDays < 0 {
		return fmt.Errorf("relay.suspend_days must not be negative")
	}
	if r.SuspendDays == 0 {
		r.SuspendDays = defaultSuspendDays
	}
	r.Timezone = strings.TrimSpace(r.Timezone)
	if r.Timezone == "" {
		r.Timezone = "UTC"
	}
	if _, err := relay.LoadCalendar(r.Timezone); err != nil {
		return fmt.Errorf("invalid relay.timezone: %w", err)
	}

	s := &cfg.Storage
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	if s.Backend == "" {
		s.Backend = BackendFile
	}
	switch s.Backend {
	case BackendMemory, BackendPostgres:
	case BackendFile:
		if strings.TrimSpace(s.Dir) == "" {
			s.Dir = defaultStorageDir
		}
	case BackendRedis:
		if strings.TrimSpace(s.Redis.Addr) == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis backend")
		}
		if s.Redis.Prefix == "" {
			s.Redis.Prefix = defaultRedisPrefix
		}
	default:
		return fmt.Errorf("invalid storage.backend: %q (allowed: memory, file, postgres, redis)", s.Backend)
	}
	return nil
}
