// Package store persists serialized graphs in a badger database.
package store

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v2"
	cbor "github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/sonyflake"
)

var (
	ErrNotFound      = errors.New("store: entry doesn't exist")
	ErrEntryTooLarge = errors.New("store: entry exceeds max_entry_bytes")
	ErrInvalidKey    = errors.New("store: invalid key")
	ErrMissingDir    = errors.New("store: dir is required unless in-memory")
)

// Prefix of every graph entry key in badger.
var graphPrefix = []byte("graph/")

type Config struct {
	Dir           string
	InMemory      bool
	MaxEntryBytes int64
}

// Entry is one stored graph.
type Entry struct {
	ID        uint64    `cbor:"1,keyasint"`
	Key       string    `cbor:"2,keyasint"`
	CreatedAt time.Time `cbor:"3,keyasint"`
	Roots     int       `cbor:"4,keyasint"`
	Payload   []byte    `cbor:"5,keyasint"`
}

// Store is an opened graph store. It is safe for concurrent use.
type Store struct {
	db  *badger.DB
	cfg Config
	ids *sonyflake.Sonyflake
	enc cbor.EncMode
	dec cbor.DecMode
}

// Open opens the store described by cfg. Make sure to call Close.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	switch {
	case cfg.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	case strings.TrimSpace(cfg.Dir) == "":
		return nil, ErrMissingDir
	default:
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithLogger(badgerLogger{log: log.Logger.With().Str("component", "badger").Logger()})

	encOpts := cbor.CanonicalEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano
	enc, err := encOpts.EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}

	ids := sonyflake.NewSonyflake(sonyflake.Settings{
		MachineID: func() (uint16, error) {
			// Single-process store; random bytes only add entropy.
			return uint16(rand.Uint32() & (1<<16 - 1)), nil
		},
	})
	if ids == nil {
		return nil, errors.New("store: id generator unavailable")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	return &Store{db: db, cfg: cfg, ids: ids, enc: enc, dec: dec}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores payload under key, replacing any previous entry.
func (s *Store) Put(key string, payload []byte, roots int) (Entry, error) {
	k, err := entryKey(key)
	if err != nil {
		return Entry{}, err
	}
	if s.cfg.MaxEntryBytes > 0 && int64(len(payload)) > s.cfg.MaxEntryBytes {
		return Entry{}, fmt.Errorf("%w: %d > %d", ErrEntryTooLarge, len(payload), s.cfg.MaxEntryBytes)
	}
	id, err := s.ids.NextID()
	if err != nil {
		return Entry{}, fmt.Errorf("store: next id: %w", err)
	}
	entry := Entry{
		ID:        id,
		Key:       key,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Roots:     roots,
		Payload:   payload,
	}
	value, err := s.enc.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("store: encode entry: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, value)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("store: put %s: %w", key, err)
	}
	return entry, nil
}

// Get returns the entry stored under key.
func (s *Store) Get(key string) (Entry, error) {
	k, err := entryKey(key)
	if err != nil {
		return Entry{}, err
	}
	var value []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("store: get %s: %w", key, err)
	}
	var entry Entry
	if err := s.dec.Unmarshal(value, &entry); err != nil {
		return Entry{}, fmt.Errorf("store: decode entry %s: %w", key, err)
	}
	return entry, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	k, err := entryKey(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
}

// Keys lists stored keys in badger order, which is sorted.
func (s *Store) Keys() ([]string, error) {
	keys := make([]string, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(graphPrefix); it.ValidForPrefix(graphPrefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			keys = append(keys, string(k[len(graphPrefix):]))
		}
		return nil
	})
	return keys, err
}

func entryKey(key string) ([]byte, error) {
	if strings.TrimSpace(key) == "" || strings.ContainsAny(key, "\x00\n") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return append(append([]byte{}, graphPrefix...), key...), nil
}
