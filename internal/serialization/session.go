package serialization

import (
	"errors"
	"io"
	"reflect"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tinylib/msgp/msgp"
)

// DefaultBufferSize is the session buffer; I/O happens only when it fills or drains.
const DefaultBufferSize = 4096

// maxLen bounds collection lengths and payload sizes read from a stream.
const maxLen = 1 << 31

// readChunk is the first allocation for a string or byte payload; larger
// payloads grow only as their bytes arrive.
const readChunk = 64 << 10

// Lengths come from the stream, so slice preallocation is capped.
const maxPrealloc = 1024

// Value tags.
const (
	kindNull  uint64 = 0
	kindRef   uint64 = 1
	kindValue uint64 = 2
	kindEnd   uint64 = 3
)

// State is the lifecycle position of a session.
type State int

const (
	StateCreated State = iota
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type sessionSettings struct {
	bufferSize int
	logger     zerolog.Logger
	globals    ServiceProvider
	maxPayload int64
}

func defaultSettings() sessionSettings {
	return sessionSettings{bufferSize: DefaultBufferSize, logger: log.Logger, maxPayload: maxLen}
}

type identityKey struct {
	typ reflect.Type
	ptr uintptr
}

func identityOf(v any) identityKey {
	rv := reflect.ValueOf(v)
	return identityKey{typ: rv.Type(), ptr: rv.Pointer()}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// isStreamError reports errors caused by stream content rather than the
// underlying reader.
func isStreamError(err error) bool {
	var me msgp.Error
	return errors.As(err, &me) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteSlice writes a length followed by each item through the codec dispatch.
func WriteSlice[T any](w *WriteContext, items []T) error {
	if err := w.WriteLen(len(items)); err != nil {
		return err
	}
	for _, item := range items {
		if err := w.Write(item); err != nil {
			return err
		}
	}
	return nil
}

// ReadSlice mirrors WriteSlice; every item must be non-null.
func ReadSlice[T any](r *ReadContext) ([]T, error) {
	n, err := r.ReadLen()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		item, err := ReadNonNull[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
