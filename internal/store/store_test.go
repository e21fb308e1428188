package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/danmuck/instantgraph/internal/testutil/testlog"
)

func openMemory(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true, MaxEntryBytes: maxBytes})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	testlog.Start(t)
	s := openMemory(t, 0)

	put, err := s.Put("build:app", []byte{1, 2, 3}, 2)
	require.NoError(t, err)
	require.NotZero(t, put.ID)

	got, err := s.Get("build:app")
	require.NoError(t, err)
	require.Equal(t, put.ID, got.ID)
	require.Equal(t, "build:app", got.Key)
	require.Equal(t, 2, got.Roots)
	require.Equal(t, []byte{1, 2, 3}, got.Payload)
	require.True(t, put.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, s.Delete("build:app"))
	_, err = s.Get("build:app")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Delete("build:app"))
}

func TestPutReplacesAndAssignsNewID(t *testing.T) {
	testlog.Start(t)
	s := openMemory(t, 0)

	first, err := s.Put("k", []byte("a"), 1)
	require.NoError(t, err)
	second, err := s.Put("k", []byte("b"), 1)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	got, err := s.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("b"), got.Payload)
}

func TestKeysSorted(t *testing.T) {
	testlog.Start(t)
	s := openMemory(t, 0)
	for _, k := range []string{"z", "a", "m"} {
		_, err := s.Put(k, []byte(k), 1)
		require.NoError(t, err)
	}
	keys, err := s.Keys()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "m", "z"}, keys)
}

func TestPutRejectsOversizedAndInvalidKeys(t *testing.T) {
	testlog.Start(t)
	s := openMemory(t, 4)

	_, err := s.Put("big", []byte("12345"), 1)
	require.ErrorIs(t, err, ErrEntryTooLarge)
	_, err = s.Get("big")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Put("  ", []byte("1"), 1)
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestOpenRequiresDir(t *testing.T) {
	testlog.Start(t)
	_, err := Open(Config{})
	require.ErrorIs(t, err, ErrMissingDir)
}

func TestOpenOnDiskPersists(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()

	s, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	_, err = s.Put("graph", []byte("payload"), 3)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get("graph")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got.Payload)
	require.Equal(t, 3, got.Roots)
}
