package serialization

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tinylib/msgp/msgp"
)

// ReadOption configures a read session.
type ReadOption func(*sessionSettings)

func WithReadBufferSize(n int) ReadOption {
	return func(s *sessionSettings) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

func WithReadLogger(l zerolog.Logger) ReadOption {
	return func(s *sessionSettings) {
		s.logger = l
	}
}

// WithMaxPayload bounds every length read from the stream: strings, byte
// payloads, type names and collection lengths. Larger claims fail the session
// as malformed before anything is allocated for them.
func WithMaxPayload(n int64) ReadOption {
	return func(s *sessionSettings) {
		if n > 0 && n < maxLen {
			s.maxPayload = n
		}
	}
}

// WithGlobals injects process-wide services that codecs reach through
// GlobalService instead of a scope.
func WithGlobals(p ServiceProvider) ReadOption {
	return func(s *sessionSettings) {
		s.globals = p
	}
}

// ReadContext is one decode pass over a stream. It is not safe for
// concurrent use.
type ReadContext struct {
	id       uuid.UUID
	registry *Registry
	scopes   ScopeRegistry
	globals  ServiceProvider
	r        *msgp.Reader
	log      zerolog.Logger

	maxPayload int64

	state  State
	err    error
	values int

	objects []any
	types   []*binding
}

// NewReadContext creates a session reading from in. Scopes are resolved
// against the live registry passed here.
func NewReadContext(in io.Reader, registry *Registry, scopes ScopeRegistry, opts ...ReadOption) *ReadContext {
	settings := defaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	id := uuid.New()
	return &ReadContext{
		id:       id,
		registry: registry,
		scopes:   scopes,
		globals:  settings.globals,
		r:        msgp.NewReaderSize(in, settings.bufferSize),
		log:      settings.logger.With().Str("session", id.String()).Str("direction", "read").Logger(),

		maxPayload: settings.maxPayload,
	}
}

func (r *ReadContext) ID() string   { return r.id.String() }
func (r *ReadContext) State() State { return r.state }
func (r *ReadContext) Err() error   { return r.err }

// Nodes returns the number of values decoded through a codec.
func (r *ReadContext) Nodes() int { return r.values }

// Globals returns the process-wide services injected at construction.
func (r *ReadContext) Globals() ServiceProvider { return r.globals }

func (r *ReadContext) ReadString() (string, error) {
	if err := r.begin(); err != nil {
		return "", err
	}
	return r.readString("string")
}

func (r *ReadContext) ReadInt() (int64, error) {
	if err := r.begin(); err != nil {
		return 0, err
	}
	v, err := r.r.ReadInt64()
	if err != nil {
		return 0, r.streamErr("int", err)
	}
	return v, nil
}

func (r *ReadContext) ReadUint() (uint64, error) {
	if err := r.begin(); err != nil {
		return 0, err
	}
	v, err := r.r.ReadUint64()
	if err != nil {
		return 0, r.streamErr("uint", err)
	}
	return v, nil
}

func (r *ReadContext) ReadBool() (bool, error) {
	if err := r.begin(); err != nil {
		return false, err
	}
	v, err := r.r.ReadBool()
	if err != nil {
		return false, r.streamErr("bool", err)
	}
	return v, nil
}

func (r *ReadContext) ReadFloat() (float64, error) {
	if err := r.begin(); err != nil {
		return 0, err
	}
	v, err := r.r.ReadFloat64()
	if err != nil {
		return 0, r.streamErr("float", err)
	}
	return v, nil
}

func (r *ReadContext) ReadBytes() ([]byte, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	sz, err := r.r.ReadBytesHeader()
	if err != nil {
		return nil, r.streamErr("bytes", err)
	}
	return r.readPayload("bytes", sz)
}

// ReadLen reads a collection length written by WriteLen.
func (r *ReadContext) ReadLen() (int, error) {
	n, err := r.ReadUint()
	if err != nil {
		return 0, err
	}
	if n >= maxLen || n > uint64(r.maxPayload) {
		return 0, r.fail(r.malformed(fmt.Sprintf("length %d out of range", n), nil))
	}
	return int(n), nil
}

// Read decodes the next value. Back-references yield the instance decoded
// earlier in this session.
func (r *ReadContext) Read() (any, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	kind, err := r.r.ReadUint64()
	if err != nil {
		return nil, r.streamErr("value tag", err)
	}

	switch kind {
	case kindNull:
		return nil, nil
	case kindRef:
		id, err := r.r.ReadUint64()
		if err != nil {
			return nil, r.streamErr("back-reference", err)
		}
		if id >= uint64(len(r.objects)) {
			return nil, r.fail(r.malformed(fmt.Sprintf("back-reference %d precedes its definition", id), nil))
		}
		return r.objects[id], nil
	case kindValue:
		b, err := r.readType()
		if err != nil {
			return nil, err
		}
		v, err := b.codec.Decode(r)
		if err != nil {
			r.fail(err)
			return nil, fmt.Errorf("decode %s: %w", b.name, err)
		}
		if r.state == StateFailed {
			return nil, r.err
		}
		if got := reflect.TypeOf(v); got != b.typ {
			return nil, r.fail(fmt.Errorf("serialization: codec %s decoded %v, want %s", b.name, got, b.typ))
		}
		if b.identity {
			r.objects = append(r.objects, v)
		}
		r.values++
		return v, nil
	case kindEnd:
		return nil, r.fail(r.malformed("unexpected end marker", nil))
	default:
		return nil, r.fail(r.malformed(fmt.Sprintf("unknown value tag %d", kind), nil))
	}
}

// ReadNonNull decodes the next value and requires it to be a non-null T.
func ReadNonNull[T any](r *ReadContext) (T, error) {
	var zero T
	v, err := r.Read()
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, r.fail(r.malformed(fmt.Sprintf("unexpected null, want %s", typeName[T]()), nil))
	}
	t, ok := v.(T)
	if !ok {
		return zero, r.fail(r.malformed(fmt.Sprintf("decoded %T, want %s", v, typeName[T]()), nil))
	}
	return t, nil
}

// ReadAs decodes the next value as T; null yields the zero value.
func ReadAs[T any](r *ReadContext) (T, error) {
	var zero T
	v, err := r.Read()
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, r.fail(r.malformed(fmt.Sprintf("decoded %T, want %s", v, typeName[T]()), nil))
	}
	return t, nil
}

// ResolveScope returns the live scope registered under path.
func (r *ReadContext) ResolveScope(path string) (Scope, error) {
	if err := r.usable(); err != nil {
		return nil, err
	}
	if r.scopes == nil {
		return nil, r.fail(UnresolvedScopeError{Path: path, Err: errors.New("no scope registry")})
	}
	s, err := r.scopes.Resolve(path)
	if err != nil {
		return nil, r.fail(UnresolvedScopeError{Path: path, Err: err})
	}
	if s == nil {
		return nil, r.fail(UnresolvedScopeError{Path: path})
	}
	return s, nil
}

// Close verifies the end marker and that nothing follows it.
func (r *ReadContext) Close() error {
	switch r.state {
	case StateClosed:
		return nil
	case StateFailed:
		return r.err
	}
	if err := r.begin(); err != nil {
		return err
	}
	kind, err := r.r.ReadUint64()
	if err != nil {
		return r.streamErr("end marker", err)
	}
	if kind != kindEnd {
		return r.fail(r.malformed(fmt.Sprintf("expected end marker, found tag %d", kind), nil))
	}
	var extra [1]byte
	n, err := r.r.ReadFull(extra[:])
	if n > 0 {
		return r.fail(r.malformed("trailing data after end marker", nil))
	}
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return r.fail(err)
	}
	r.state = StateClosed
	r.log.Debug().Int("nodes", r.values).Int("identities", len(r.objects)).Msg("read session closed")
	return nil
}

func (r *ReadContext) begin() error {
	switch r.state {
	case StateOpen:
		return nil
	case StateCreated:
		buf := make([]byte, HeaderLen)
		if _, err := r.r.ReadFull(buf); err != nil {
			return r.fail(r.malformed("header", err))
		}
		if _, err := DecodeHeader(buf); err != nil {
			return r.fail(r.malformed("header", err))
		}
		r.state = StateOpen
		return nil
	case StateFailed:
		return r.err
	default:
		return ErrSessionClosed
	}
}

func (r *ReadContext) usable() error {
	switch r.state {
	case StateFailed:
		return r.err
	case StateClosed:
		return ErrSessionClosed
	default:
		return nil
	}
}

func (r *ReadContext) readType() (*binding, error) {
	idx, err := r.r.ReadUint64()
	if err != nil {
		return nil, r.streamErr("type index", err)
	}
	switch {
	case idx < uint64(len(r.types)):
		return r.types[idx], nil
	case idx == uint64(len(r.types)):
		name, err := r.readString("type name")
		if err != nil {
			return nil, err
		}
		b, err := r.registry.bindingNamed(name)
		if err != nil {
			return nil, r.fail(err)
		}
		r.types = append(r.types, b)
		return b, nil
	default:
		return nil, r.fail(r.malformed(fmt.Sprintf("type index %d skips ahead of %d known types", idx, len(r.types)), nil))
	}
}

func (r *ReadContext) readString(what string) (string, error) {
	sz, err := r.r.ReadStringHeader()
	if err != nil {
		return "", r.streamErr(what, err)
	}
	b, err := r.readPayload(what, sz)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readPayload reads sz bytes once sz is within the session limit. The buffer
// grows with the bytes actually read, so a truncated stream costs only what
// it holds.
func (r *ReadContext) readPayload(what string, sz uint32) ([]byte, error) {
	if int64(sz) > r.maxPayload {
		return nil, r.fail(r.malformed(fmt.Sprintf("%s length %d exceeds limit %d", what, sz, r.maxPayload), nil))
	}
	if sz == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	buf.Grow(min(int(sz), readChunk))
	if _, err := io.CopyN(&buf, r.r, int64(sz)); err != nil {
		return nil, r.streamErr(what, err)
	}
	return buf.Bytes(), nil
}

// Malformed fails the session with a MalformedStreamError. Codecs use it for
// payloads that decode cleanly but describe an invalid value.
func (r *ReadContext) Malformed(reason string, err error) error {
	return r.fail(r.malformed(reason, err))
}

func (r *ReadContext) malformed(reason string, err error) MalformedStreamError {
	return MalformedStreamError{Offset: r.values, Reason: reason, Err: err}
}

func (r *ReadContext) streamErr(what string, err error) error {
	if isStreamError(err) {
		return r.fail(r.malformed("read "+what, err))
	}
	return r.fail(err)
}

func (r *ReadContext) fail(err error) error {
	if r.state != StateFailed {
		r.state = StateFailed
		r.err = err
		r.log.Debug().Err(err).Int("nodes", r.values).Msg("read session failed")
	}
	return err
}
