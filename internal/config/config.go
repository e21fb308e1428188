package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/instantgraph/internal/logging"
	"github.com/danmuck/instantgraph/internal/serialization"
)

var ErrInvalidConfig = errors.New("config: invalid")

type CacheConfig struct {
	Dir           string
	InMemory      bool
	BufferSize    int
	MaxEntryBytes int64
}

type LogConfig struct {
	Level     string
	File      string
	Timestamp bool
	NoColor   bool
}

// Config is the instantctl process configuration.
type Config struct {
	Cache CacheConfig
	Log   LogConfig
}

type fileConfig struct {
	Cache struct {
		Dir           string `toml:"dir"`
		InMemory      bool   `toml:"in_memory"`
		BufferSize    int    `toml:"buffer_size"`
		MaxEntryBytes int64  `toml:"max_entry_bytes"`
	} `toml:"cache"`
	Log struct {
		Level     string `toml:"level"`
		File      string `toml:"file"`
		Timestamp bool   `toml:"timestamp"`
		NoColor   bool   `toml:"no_color"`
	} `toml:"log"`
}

func Default() Config {
	return Config{
		Cache: CacheConfig{
			Dir:           filepath.Join("local", "instant"),
			BufferSize:    serialization.DefaultBufferSize,
			MaxEntryBytes: 64 << 20,
		},
		Log: LogConfig{
			Level:     "info",
			Timestamp: true,
		},
	}
}

// Load reads path and applies the keys it defines on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalidConfig, undecoded[0].String(), path)
	}

	if meta.IsDefined("cache", "dir") {
		cfg.Cache.Dir = strings.TrimSpace(raw.Cache.Dir)
	}
	if meta.IsDefined("cache", "in_memory") {
		cfg.Cache.InMemory = raw.Cache.InMemory
	}
	if meta.IsDefined("cache", "buffer_size") {
		cfg.Cache.BufferSize = raw.Cache.BufferSize
	}
	if meta.IsDefined("cache", "max_entry_bytes") {
		cfg.Cache.MaxEntryBytes = raw.Cache.MaxEntryBytes
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "file") {
		cfg.Log.File = strings.TrimSpace(raw.Log.File)
	}
	if meta.IsDefined("log", "timestamp") {
		cfg.Log.Timestamp = raw.Log.Timestamp
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if !cfg.Cache.InMemory && strings.TrimSpace(cfg.Cache.Dir) == "" {
		return fmt.Errorf("%w: cache.dir is required unless cache.in_memory is set", ErrInvalidConfig)
	}
	if cfg.Cache.BufferSize <= 0 {
		return fmt.Errorf("%w: cache.buffer_size must be positive", ErrInvalidConfig)
	}
	if cfg.Cache.MaxEntryBytes <= 0 {
		return fmt.Errorf("%w: cache.max_entry_bytes must be positive", ErrInvalidConfig)
	}
	if _, ok := logging.ParseLevel(cfg.Log.Level); !ok {
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, cfg.Log.Level)
	}
	return nil
}
