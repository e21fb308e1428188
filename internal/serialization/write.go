package serialization

import (
	"fmt"
	"io"
	"reflect"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tinylib/msgp/msgp"
)

// WriteOption configures a write session.
type WriteOption func(*sessionSettings)

func WithWriteBufferSize(n int) WriteOption {
	return func(s *sessionSettings) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

func WithWriteLogger(l zerolog.Logger) WriteOption {
	return func(s *sessionSettings) {
		s.logger = l
	}
}

// WriteContext is one encode pass over a stream. It is not safe for
// concurrent use.
type WriteContext struct {
	id       uuid.UUID
	registry *Registry
	out      *countingWriter
	w        *msgp.Writer
	log      zerolog.Logger

	state State
	err   error
	nodes int

	identities map[identityKey]uint64
	pending    map[identityKey]struct{}
	types      map[reflect.Type]uint64
}

// NewWriteContext creates a session writing to out. The header is written
// with the first value.
func NewWriteContext(out io.Writer, registry *Registry, opts ...WriteOption) *WriteContext {
	settings := defaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	id := uuid.New()
	cw := &countingWriter{w: out}
	return &WriteContext{
		id:         id,
		registry:   registry,
		out:        cw,
		w:          msgp.NewWriterSize(cw, settings.bufferSize),
		log:        settings.logger.With().Str("session", id.String()).Str("direction", "write").Logger(),
		identities: make(map[identityKey]uint64),
		pending:    make(map[identityKey]struct{}),
		types:      make(map[reflect.Type]uint64),
	}
}

func (w *WriteContext) ID() string   { return w.id.String() }
func (w *WriteContext) State() State { return w.state }
func (w *WriteContext) Err() error   { return w.err }

// Nodes returns the number of values encoded through a codec.
func (w *WriteContext) Nodes() int { return w.nodes }

// Offset returns the bytes emitted so far. An open session is flushed first;
// a failed one only counts what it holds so nothing more reaches the output.
func (w *WriteContext) Offset() int64 {
	switch w.state {
	case StateOpen:
		if err := w.w.Flush(); err != nil {
			w.fail(err)
		}
	case StateFailed:
		return w.out.n + int64(w.w.Buffered())
	}
	return w.out.n
}

func (w *WriteContext) WriteString(s string) error {
	if err := w.begin(); err != nil {
		return err
	}
	return w.check(w.w.WriteString(s))
}

func (w *WriteContext) WriteInt(v int64) error {
	if err := w.begin(); err != nil {
		return err
	}
	return w.check(w.w.WriteInt64(v))
}

func (w *WriteContext) WriteUint(v uint64) error {
	if err := w.begin(); err != nil {
		return err
	}
	return w.check(w.w.WriteUint64(v))
}

func (w *WriteContext) WriteBool(v bool) error {
	if err := w.begin(); err != nil {
		return err
	}
	return w.check(w.w.WriteBool(v))
}

func (w *WriteContext) WriteFloat(v float64) error {
	if err := w.begin(); err != nil {
		return err
	}
	return w.check(w.w.WriteFloat64(v))
}

func (w *WriteContext) WriteBytes(b []byte) error {
	if err := w.begin(); err != nil {
		return err
	}
	return w.check(w.w.WriteBytes(b))
}

// WriteLen writes a collection length.
func (w *WriteContext) WriteLen(n int) error {
	if n < 0 {
		return w.fail(fmt.Errorf("serialization: negative length %d", n))
	}
	return w.WriteUint(uint64(n))
}

// Write encodes v through the codec registered for its concrete type. A value
// already written in this session is emitted as a back-reference.
func (w *WriteContext) Write(v any) error {
	if err := w.begin(); err != nil {
		return err
	}
	if isNil(v) {
		return w.check(w.w.WriteUint64(kindNull))
	}

	b, err := w.registry.bindingFor(reflect.TypeOf(v))
	if err != nil {
		return w.fail(err)
	}

	var key identityKey
	if b.identity {
		key = identityOf(v)
		if id, ok := w.identities[key]; ok {
			if err := w.w.WriteUint64(kindRef); err != nil {
				return w.fail(err)
			}
			return w.check(w.w.WriteUint64(id))
		}
		if _, ok := w.pending[key]; ok {
			return w.fail(fmt.Errorf("%w: %s", ErrCyclicReference, b.name))
		}
	}

	if pre, ok := b.codec.(Precondition); ok {
		if err := pre.Check(v); err != nil {
			w.fail(err)
			return fmt.Errorf("encode %s: %w", b.name, err)
		}
	}

	if b.identity {
		w.pending[key] = struct{}{}
	}
	if err := w.w.WriteUint64(kindValue); err != nil {
		return w.fail(err)
	}
	if err := w.writeType(b); err != nil {
		return err
	}
	if err := b.codec.Encode(w, v); err != nil {
		w.fail(err)
		return fmt.Errorf("encode %s: %w", b.name, err)
	}
	if w.state == StateFailed {
		return w.err
	}
	if b.identity {
		delete(w.pending, key)
		w.identities[key] = uint64(len(w.identities))
	}
	w.nodes++
	return nil
}

// Close writes the end marker and flushes. A failed session returns its error.
func (w *WriteContext) Close() error {
	switch w.state {
	case StateClosed:
		return nil
	case StateFailed:
		return w.err
	}
	if err := w.begin(); err != nil {
		return err
	}
	if err := w.w.WriteUint64(kindEnd); err != nil {
		return w.fail(err)
	}
	if err := w.w.Flush(); err != nil {
		return w.fail(err)
	}
	w.state = StateClosed
	w.log.Debug().Int("nodes", w.nodes).Int64("bytes", w.out.n).Msg("write session closed")
	return nil
}

func (w *WriteContext) begin() error {
	switch w.state {
	case StateOpen:
		return nil
	case StateCreated:
		if _, err := w.w.Write(EncodeHeader(DefaultHeader())); err != nil {
			return w.fail(err)
		}
		w.state = StateOpen
		return nil
	case StateFailed:
		return w.err
	default:
		return ErrSessionClosed
	}
}

func (w *WriteContext) writeType(b *binding) error {
	if idx, ok := w.types[b.typ]; ok {
		return w.check(w.w.WriteUint64(idx))
	}
	idx := uint64(len(w.types))
	w.types[b.typ] = idx
	if err := w.w.WriteUint64(idx); err != nil {
		return w.fail(err)
	}
	return w.check(w.w.WriteString(b.name))
}

func (w *WriteContext) check(err error) error {
	if err != nil {
		return w.fail(err)
	}
	return nil
}

func (w *WriteContext) fail(err error) error {
	if w.state != StateFailed {
		w.state = StateFailed
		w.err = err
		w.log.Debug().Err(err).Int("nodes", w.nodes).Msg("write session failed")
	}
	return err
}
