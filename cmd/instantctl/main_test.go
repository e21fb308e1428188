package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/instantgraph/internal/config"
	"github.com/danmuck/instantgraph/internal/instant"
	"github.com/danmuck/instantgraph/internal/testutil/testlog"
	"github.com/danmuck/instantgraph/internal/workspace"
)

func TestLoadConfigExample(t *testing.T) {
	cfg, err := loadConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.Cache.InMemory {
		t.Fatalf("expected in-memory cache")
	}
	if cfg.Cache.BufferSize != 1024 {
		t.Fatalf("unexpected buffer size: %d", cfg.Cache.BufferSize)
	}
	if cfg.Cache.MaxEntryBytes != 1<<20 {
		t.Fatalf("unexpected max entry bytes: %d", cfg.Cache.MaxEntryBytes)
	}
	if cfg.Log.Level != "warn" || cfg.Log.Timestamp || !cfg.Log.NoColor {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
}

func TestLoadConfigDefaultsWhenEmpty(t *testing.T) {
	cfg, err := loadConfig("  ")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg != config.Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestRunRoundTrip(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-config", "ex.config.toml", "-mode", "roundtrip", "-input", "main"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	for _, want := range []string{
		"saved demo: entry=",
		"roots=4",
		"root 0: chain action compile in scope app:lib -> expression",
		"[main.compile.o.a main.compile.o.so]",
		"root 1: chain expression",
		"[main.a Strip(main.so,--strip-debug)]",
		"root 3: string demo graph",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunPrintsMetrics(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-config", "ex.config.toml", "-mode", "roundtrip", "-metrics"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	for _, want := range []string{
		"# TYPE instantgraph_session_total counter",
		`instantgraph_session_total{direction="write",outcome="ok"}`,
		`instantgraph_cache_lookups_total{result="hit"}`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunRejectsUnknownMode(t *testing.T) {
	testlog.Start(t)
	err := run(context.Background(), []string{"-config", "ex.config.toml", "-mode", "teleport"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("expected unknown mode error, got %v", err)
	}
}

func TestExportWritesReadableStream(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "demo.bin")
	if err := run(context.Background(), []string{"-config", "ex.config.toml", "-mode", "export", "-out", path}, &bytes.Buffer{}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat export: %v", err)
	}

	ws, err := workspace.New(demoScopes...)
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	roots, err := instant.New(config.Default().Cache, nil, ws.Codecs).ReadFile(path, ws.Scopes, ws.Globals)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(roots) != 4 {
		t.Fatalf("unexpected root count %d", len(roots))
	}
}
