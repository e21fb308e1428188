package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/instantgraph/internal/artifact"
	"github.com/danmuck/instantgraph/internal/config"
	"github.com/danmuck/instantgraph/internal/instant"
	"github.com/danmuck/instantgraph/internal/logging"
	"github.com/danmuck/instantgraph/internal/observability"
	"github.com/danmuck/instantgraph/internal/store"
	"github.com/danmuck/instantgraph/internal/workspace"
)

type options struct {
	configPath string
	mode       string
	key        string
	input      string
	out        string
	metrics    bool
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "instantctl: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("instantctl", flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.configPath, "config", "", "config path (defaults when empty)")
	fs.StringVar(&opts.mode, "mode", "roundtrip", "mode: save|load|roundtrip|keys|invalidate|export")
	fs.StringVar(&opts.key, "key", "demo", "cache key")
	fs.StringVar(&opts.input, "input", "main", "input artifact for loaded steps")
	fs.StringVar(&opts.out, "out", "", "output file for export")
	fs.BoolVar(&opts.metrics, "metrics", false, "print metrics in text exposition format after the run")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.mode = strings.ToLower(strings.TrimSpace(opts.mode))
	return opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logging.ConfigureWith(cfg.Log.Logging())
	observability.RegisterMetrics()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if err := runMode(ctx, opts, cfg, stdout); err != nil {
		return err
	}
	if opts.metrics {
		return observability.WriteText(stdout, prometheus.DefaultGatherer)
	}
	return nil
}

func runMode(ctx context.Context, opts options, cfg config.Config, stdout io.Writer) error {
	if opts.mode == "export" {
		return export(opts, cfg.Cache)
	}

	st, err := store.Open(cfg.Cache.Store())
	if err != nil {
		return err
	}
	defer st.Close()

	ws, err := workspace.New(demoScopes...)
	if err != nil {
		return err
	}
	cache := instant.New(cfg.Cache, st, ws.Codecs)
	log.Info().Str("mode", opts.mode).Str("key", opts.key).Bool("in_memory", cfg.Cache.InMemory).Msg("instantctl started")

	switch opts.mode {
	case "save":
		return save(ctx, cache, ws, opts.key, stdout)
	case "load":
		return load(ctx, cache, opts, stdout)
	case "roundtrip":
		if err := save(ctx, cache, ws, opts.key, stdout); err != nil {
			return err
		}
		return load(ctx, cache, opts, stdout)
	case "keys":
		keys, err := cache.Keys()
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Fprintln(stdout, key)
		}
		return nil
	case "invalidate":
		return cache.Invalidate(ctx, opts.key)
	default:
		return fmt.Errorf("unknown mode: %s", opts.mode)
	}
}

func save(ctx context.Context, cache *instant.Cache, ws *workspace.Workspace, key string, stdout io.Writer) error {
	roots, err := demoGraph(ws)
	if err != nil {
		return err
	}
	entry, err := cache.Save(ctx, key, roots...)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "saved %s: entry=%d roots=%d bytes=%d\n", key, entry.ID, entry.Roots, len(entry.Payload))
	return nil
}

// load decodes into a fresh workspace so every step binds to new scope
// instances, as a later run would.
func load(ctx context.Context, cache *instant.Cache, opts options, stdout io.Writer) error {
	ws, err := workspace.New(demoScopes...)
	if err != nil {
		return err
	}
	roots, err := cache.Load(ctx, opts.key, ws.Scopes, ws.Globals)
	if err != nil {
		return err
	}
	for i, root := range roots {
		line, err := describe(ctx, root, opts.input)
		if err != nil {
			return fmt.Errorf("root %d: %w", i, err)
		}
		fmt.Fprintf(stdout, "root %d: %s\n", i, line)
	}
	return nil
}

func export(opts options, cfg config.CacheConfig) error {
	if opts.out == "" {
		return fmt.Errorf("export requires -out")
	}
	ws, err := workspace.New(demoScopes...)
	if err != nil {
		return err
	}
	roots, err := demoGraph(ws)
	if err != nil {
		return err
	}
	cache := instant.New(cfg, nil, ws.Codecs)
	if err := cache.WriteFile(opts.out, roots...); err != nil {
		return err
	}
	log.Info().Str("path", opts.out).Int("roots", len(roots)).Msg("graph exported")
	return nil
}

func describe(ctx context.Context, root any, input string) (string, error) {
	switch v := root.(type) {
	case *artifact.Chain:
		out, err := v.Run(ctx, input)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("chain %s -> %s = %v", v.First.DisplayName(), v.Second.DisplayName(), out), nil
	case *artifact.Step:
		out, err := v.Run(ctx, input)
		if err != nil {
			return "", err
		}
		fp, err := v.Fingerprint(out)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("step %s = %v fingerprint=%s", v.DisplayName(), out, fp[:12]), nil
	default:
		return fmt.Sprintf("%T %v", v, v), nil
	}
}
