package config

import (
	"github.com/danmuck/instantgraph/internal/logging"
	"github.com/danmuck/instantgraph/internal/store"
)

func (c LogConfig) Logging() logging.Config {
	cfg := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(c.Level); ok {
		cfg.Level = lvl
	}
	cfg.File = c.File
	cfg.Timestamp = c.Timestamp
	cfg.NoColor = c.NoColor
	return cfg
}

func (c CacheConfig) Store() store.Config {
	return store.Config{
		Dir:           c.Dir,
		InMemory:      c.InMemory,
		MaxEntryBytes: c.MaxEntryBytes,
	}
}
