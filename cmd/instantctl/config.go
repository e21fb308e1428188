package main

import (
	"strings"

	"github.com/danmuck/instantgraph/internal/config"
)

func loadConfig(path string) (config.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
