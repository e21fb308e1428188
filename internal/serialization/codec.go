package serialization

import "fmt"

// Codec encodes and decodes values of one concrete type.
type Codec interface {
	Encode(w *WriteContext, v any) error
	Decode(r *ReadContext) (any, error)
}

// TypedCodec is the form codec authors implement; Register adapts it to Codec.
type TypedCodec[T any] interface {
	Encode(w *WriteContext, v T) error
	Decode(r *ReadContext) (T, error)
}

// Precondition is implemented by codecs that must reject a value before the
// session writes anything for it.
type Precondition interface {
	Check(v any) error
}

// TypedPrecondition is the typed form of Precondition.
type TypedPrecondition[T any] interface {
	Check(v T) error
}

// CodecFuncs builds a TypedCodec from a pair of functions.
type CodecFuncs[T any] struct {
	EncodeFunc func(w *WriteContext, v T) error
	DecodeFunc func(r *ReadContext) (T, error)
}

func (c CodecFuncs[T]) Encode(w *WriteContext, v T) error {
	return c.EncodeFunc(w, v)
}

func (c CodecFuncs[T]) Decode(r *ReadContext) (T, error) {
	return c.DecodeFunc(r)
}

type erased[T any] struct {
	typed TypedCodec[T]
}

func (c erased[T]) Encode(w *WriteContext, v any) error {
	tv, ok := v.(T)
	if !ok {
		return fmt.Errorf("serialization: codec for %s got %T", typeName[T](), v)
	}
	return c.typed.Encode(w, tv)
}

func (c erased[T]) Decode(r *ReadContext) (any, error) {
	v, err := c.typed.Decode(r)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c erased[T]) Check(v any) error {
	pre, ok := c.typed.(TypedPrecondition[T])
	if !ok {
		return nil
	}
	tv, ok := v.(T)
	if !ok {
		return fmt.Errorf("serialization: codec for %s got %T", typeName[T](), v)
	}
	return pre.Check(tv)
}
