// Package instant saves and restores object graphs between runs.
//
// Ownership boundary:
// - Cache owns session setup, commit-on-success and cache metrics.
// - Codecs and the stream format belong to internal/serialization.
// - Persistence belongs to internal/store.
package instant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/instantgraph/internal/config"
	"github.com/danmuck/instantgraph/internal/observability"
	"github.com/danmuck/instantgraph/internal/serialization"
	"github.com/danmuck/instantgraph/internal/store"
)

var (
	ErrNoStore      = errors.New("instant: cache has no store")
	ErrRootMismatch = errors.New("instant: stored root count mismatch")
)

// Preallocation cap for decoded root slices.
const maxRootPrealloc = 1024

// Cache encodes roots into a store. A nil store limits it to the stream forms.
type Cache struct {
	cfg      config.CacheConfig
	store    *store.Store
	registry *serialization.Registry
	log      zerolog.Logger
}

func New(cfg config.CacheConfig, st *store.Store, registry *serialization.Registry) *Cache {
	return &Cache{
		cfg:      cfg,
		store:    st,
		registry: registry,
		log:      log.Logger.With().Str("component", "instant").Logger(),
	}
}

// Save encodes roots and commits them under key. Nothing is stored unless
// the whole session succeeds.
func (c *Cache) Save(ctx context.Context, key string, roots ...any) (store.Entry, error) {
	if err := ctx.Err(); err != nil {
		return store.Entry{}, err
	}
	if c.store == nil {
		return store.Entry{}, ErrNoStore
	}
	start := time.Now()
	var buf bytes.Buffer
	nodes, n, err := c.encode(&buf, roots)
	observability.LogSession(c.log, observability.DirectionWrite, key, nodes, n, time.Since(start), err)
	if err != nil {
		return store.Entry{}, err
	}
	entry, err := c.store.Put(key, buf.Bytes(), len(roots))
	if err != nil {
		return store.Entry{}, err
	}
	c.log.Info().Str("key", key).Uint64("entry", entry.ID).Int("roots", entry.Roots).Msg("graph saved")
	return entry, nil
}

// Load decodes the roots stored under key, resolving scopes against the
// live registry.
func (c *Cache) Load(ctx context.Context, key string, scopes serialization.ScopeRegistry, globals serialization.ServiceProvider) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.store == nil {
		return nil, ErrNoStore
	}
	entry, err := c.store.Get(key)
	if err != nil {
		observability.RecordCacheLookup(false)
		return nil, err
	}
	observability.RecordCacheLookup(true)

	start := time.Now()
	roots, nodes, err := c.decode(bytes.NewReader(entry.Payload), scopes, globals)
	if err == nil && len(roots) != entry.Roots {
		err = fmt.Errorf("%w: entry %d has %d, stream has %d", ErrRootMismatch, entry.ID, entry.Roots, len(roots))
	}
	observability.LogSession(c.log, observability.DirectionRead, key, nodes, int64(len(entry.Payload)), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return roots, nil
}

// Invalidate drops the entry stored under key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.store == nil {
		return ErrNoStore
	}
	if err := c.store.Delete(key); err != nil {
		return err
	}
	c.log.Info().Str("key", key).Msg("graph invalidated")
	return nil
}

// Keys lists stored graph keys.
func (c *Cache) Keys() ([]string, error) {
	if c.store == nil {
		return nil, ErrNoStore
	}
	return c.store.Keys()
}

// Encode writes roots as one stream to w and returns the bytes written.
func (c *Cache) Encode(w io.Writer, roots ...any) (int64, error) {
	_, n, err := c.encode(w, roots)
	return n, err
}

// Decode reads one stream of roots from r.
func (c *Cache) Decode(r io.Reader, scopes serialization.ScopeRegistry, globals serialization.ServiceProvider) ([]any, error) {
	roots, _, err := c.decode(r, scopes, globals)
	return roots, err
}

// WriteFile encodes roots into path through a temp file in the same
// directory, so path holds either the old content or a complete stream.
func (c *Cache) WriteFile(path string, roots ...any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".instant-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := c.Encode(tmp, roots...); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// ReadFile decodes a stream written by WriteFile.
func (c *Cache) ReadFile(path string, scopes serialization.ScopeRegistry, globals serialization.ServiceProvider) ([]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.Decode(f, scopes, globals)
}

func (c *Cache) encode(out io.Writer, roots []any) (int, int64, error) {
	w := serialization.NewWriteContext(out, c.registry,
		serialization.WithWriteBufferSize(c.cfg.BufferSize),
		serialization.WithWriteLogger(c.log),
	)
	if err := w.WriteLen(len(roots)); err != nil {
		return w.Nodes(), w.Offset(), err
	}
	for i, root := range roots {
		if err := w.Write(root); err != nil {
			return w.Nodes(), w.Offset(), fmt.Errorf("root %d: %w", i, err)
		}
	}
	if err := w.Close(); err != nil {
		return w.Nodes(), w.Offset(), err
	}
	return w.Nodes(), w.Offset(), nil
}

func (c *Cache) decode(in io.Reader, scopes serialization.ScopeRegistry, globals serialization.ServiceProvider) ([]any, int, error) {
	r := serialization.NewReadContext(in, c.registry, scopes,
		serialization.WithReadBufferSize(c.cfg.BufferSize),
		serialization.WithReadLogger(c.log),
		serialization.WithGlobals(globals),
		serialization.WithMaxPayload(c.cfg.MaxEntryBytes),
	)
	n, err := r.ReadLen()
	if err != nil {
		return nil, r.Nodes(), err
	}
	roots := make([]any, 0, min(n, maxRootPrealloc))
	for i := 0; i < n; i++ {
		v, err := r.Read()
		if err != nil {
			return nil, r.Nodes(), fmt.Errorf("root %d: %w", i, err)
		}
		roots = append(roots, v)
	}
	if err := r.Close(); err != nil {
		return nil, r.Nodes(), err
	}
	return roots, r.Nodes(), nil
}
