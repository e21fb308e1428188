package codecs

import (
	"fmt"
	"sync"

	cbor "github.com/fxamacker/cbor/v2"

	"github.com/danmuck/instantgraph/internal/serialization"
)

var (
	modesOnce sync.Once
	encMode   cbor.EncMode
	decMode   cbor.DecMode
	modesErr  error
)

// Canonical CBOR keeps equal data byte-identical across runs.
func modes() (cbor.EncMode, cbor.DecMode, error) {
	modesOnce.Do(func() {
		encMode, modesErr = cbor.CanonicalEncOptions().EncMode()
		if modesErr != nil {
			return
		}
		decMode, modesErr = cbor.DecOptions{}.DecMode()
	})
	return encMode, decMode, modesErr
}

// WriteData writes v as one CBOR blob. Use it for plain data with no
// references and no live services.
func WriteData(w *serialization.WriteContext, v any) error {
	em, _, err := modes()
	if err != nil {
		return err
	}
	b, err := em.Marshal(v)
	if err != nil {
		return fmt.Errorf("codecs: cbor encode %T: %w", v, err)
	}
	return w.WriteBytes(b)
}

// ReadData mirrors WriteData.
func ReadData[T any](r *serialization.ReadContext) (T, error) {
	var out T
	_, dm, err := modes()
	if err != nil {
		return out, err
	}
	b, err := r.ReadBytes()
	if err != nil {
		return out, err
	}
	if err := dm.Unmarshal(b, &out); err != nil {
		return out, r.Malformed(fmt.Sprintf("cbor payload for %T", out), err)
	}
	return out, nil
}

// Data registers a plain data type T as a single CBOR payload.
type Data[T any] struct{}

func (Data[T]) Encode(w *serialization.WriteContext, v T) error {
	return WriteData(w, v)
}

func (Data[T]) Decode(r *serialization.ReadContext) (T, error) {
	return ReadData[T](r)
}
