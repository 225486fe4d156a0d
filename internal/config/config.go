package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all strata configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Memory   MemoryConfig   `yaml:"memory"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type MemoryConfig struct {
	PagingEnabled   bool   `yaml:"paging_enabled"`
	PagingThreshold uint64 `yaml:"paging_threshold"` // bytes of working memory

	ExpiryAge            uint64  `yaml:"expiry_age"`            // iterations
	AggressiveExpiryAge  uint64  `yaml:"aggressive_expiry_age"` // iterations
	DuplicateSimilarity  float64 `yaml:"duplicate_similarity"`
	AggressiveSimilarity float64 `yaml:"aggressive_similarity"`

	SweepInterval     time.Duration `yaml:"sweep_interval"`
	SearchTiers       []string      `yaml:"search_tiers"`
	MaxEntriesPerTier int           `yaml:"max_entries_per_tier"` // 0 = unbounded
	MaxValueBytes     int           `yaml:"max_value_bytes"`      // 0 = unbounded
	LayoutPath        string        `yaml:"layout_path"`          // JSON mirror, empty disables
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37788,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Memory: MemoryConfig{
			PagingEnabled:        true,
			PagingThreshold:      1024,
			ExpiryAge:            30,
			AggressiveExpiryAge:  7,
			DuplicateSimilarity:  0.95,
			AggressiveSimilarity: 0.8,
			SweepInterval:        time.Hour,
			SearchTiers:          []string{"disk", "archived"},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults, applies environment overrides,
// and validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if p := os.Getenv("STRATA_DB"); p != "" {
		c.Database.Path = p
	}
	if v := os.Getenv("STRATA_PAGING_THRESHOLD"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("STRATA_PAGING_THRESHOLD: %w", err)
		}
		c.Memory.PagingThreshold = n
	}
	return nil
}

// Validate checks ranges that would make the memory engine misbehave.
func (c *Config) Validate() error {
	m := &c.Memory
	if m.PagingEnabled && m.PagingThreshold == 0 {
		return errors.New("memory.paging_threshold must be > 0 when paging is enabled")
	}
	for _, s := range []float64{m.DuplicateSimilarity, m.AggressiveSimilarity} {
		if s <= 0 || s > 1 {
			return fmt.Errorf("similarity %v out of range (0,1]", s)
		}
	}
	if m.MaxEntriesPerTier < 0 || m.MaxValueBytes < 0 {
		return errors.New("memory entry limits must be >= 0")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
