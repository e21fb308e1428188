// Package codecs holds codecs for built-in Go types and plain data values.
package codecs

import (
	"fmt"
	"sort"

	"github.com/danmuck/instantgraph/internal/serialization"
)

// Lengths come from the stream, so preallocation is capped.
const maxPrealloc = 1024

type stringCodec struct{}

func (stringCodec) Encode(w *serialization.WriteContext, v string) error { return w.WriteString(v) }
func (stringCodec) Decode(r *serialization.ReadContext) (string, error)  { return r.ReadString() }

type intCodec struct{}

func (intCodec) Encode(w *serialization.WriteContext, v int) error { return w.WriteInt(int64(v)) }
func (intCodec) Decode(r *serialization.ReadContext) (int, error) {
	v, err := r.ReadInt()
	return int(v), err
}

type int64Codec struct{}

func (int64Codec) Encode(w *serialization.WriteContext, v int64) error { return w.WriteInt(v) }
func (int64Codec) Decode(r *serialization.ReadContext) (int64, error)  { return r.ReadInt() }

type uint64Codec struct{}

func (uint64Codec) Encode(w *serialization.WriteContext, v uint64) error { return w.WriteUint(v) }
func (uint64Codec) Decode(r *serialization.ReadContext) (uint64, error)  { return r.ReadUint() }

type boolCodec struct{}

func (boolCodec) Encode(w *serialization.WriteContext, v bool) error { return w.WriteBool(v) }
func (boolCodec) Decode(r *serialization.ReadContext) (bool, error)  { return r.ReadBool() }

type float64Codec struct{}

func (float64Codec) Encode(w *serialization.WriteContext, v float64) error { return w.WriteFloat(v) }
func (float64Codec) Decode(r *serialization.ReadContext) (float64, error)  { return r.ReadFloat() }

type stringsCodec struct{}

func (stringsCodec) Encode(w *serialization.WriteContext, v []string) error {
	return WriteStrings(w, v)
}

func (stringsCodec) Decode(r *serialization.ReadContext) ([]string, error) {
	return ReadStrings(r)
}

// String maps are identity-bearing; a shared map is decoded once.
type stringMapCodec struct{}

func (stringMapCodec) Encode(w *serialization.WriteContext, v map[string]string) error {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if err := w.WriteLen(len(keys)); err != nil {
		return err
	}
	for _, k := range keys {
		if err := w.WriteString(k); err != nil {
			return err
		}
		if err := w.WriteString(v[k]); err != nil {
			return err
		}
	}
	return nil
}

func (stringMapCodec) Decode(r *serialization.ReadContext) (map[string]string, error) {
	n, err := r.ReadLen()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		k, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// WriteStrings writes a length-prefixed string list inline.
func WriteStrings(w *serialization.WriteContext, v []string) error {
	if err := w.WriteLen(len(v)); err != nil {
		return err
	}
	for _, s := range v {
		if err := w.WriteString(s); err != nil {
			return err
		}
	}
	return nil
}

// ReadStrings mirrors WriteStrings.
func ReadStrings(r *serialization.ReadContext) ([]string, error) {
	n, err := r.ReadLen()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// RegisterBuiltins installs codecs for the built-in types under "builtin.*".
func RegisterBuiltins(reg *serialization.Registry) error {
	steps := []func() error{
		func() error { return serialization.Register[string](reg, "builtin.string", stringCodec{}) },
		func() error { return serialization.Register[int](reg, "builtin.int", intCodec{}) },
		func() error { return serialization.Register[int64](reg, "builtin.int64", int64Codec{}) },
		func() error { return serialization.Register[uint64](reg, "builtin.uint64", uint64Codec{}) },
		func() error { return serialization.Register[bool](reg, "builtin.bool", boolCodec{}) },
		func() error { return serialization.Register[float64](reg, "builtin.float64", float64Codec{}) },
		func() error { return serialization.Register[[]string](reg, "builtin.strings", stringsCodec{}) },
		func() error {
			return serialization.Register[map[string]string](reg, "builtin.string-map", stringMapCodec{})
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("register builtins: %w", err)
		}
	}
	return nil
}
