package serialization

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

type binding struct {
	name     string
	typ      reflect.Type
	codec    Codec
	identity bool
}

// Registry maps concrete runtime types to codecs. Each codec is also bound
// to a stable name, which is what streams carry.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*binding
	byName map[string]*binding
}

// NewRegistry creates an empty codec registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]*binding),
		byName: make(map[string]*binding),
	}
}

// Register binds c to the concrete type T under name.
func Register[T any](r *Registry, name string, c TypedCodec[T]) error {
	if c == nil {
		return ErrNilCodec
	}
	return r.RegisterType(reflect.TypeOf((*T)(nil)).Elem(), name, erased[T]{typed: c})
}

// MustRegister is Register for static setup code.
func MustRegister[T any](r *Registry, name string, c TypedCodec[T]) {
	if err := Register(r, name, c); err != nil {
		panic(err)
	}
}

// RegisterType binds an untyped codec to t under name.
func (r *Registry) RegisterType(t reflect.Type, name string, c Codec) error {
	if c == nil {
		return ErrNilCodec
	}
	if t == nil || t.Kind() == reflect.Interface {
		return fmt.Errorf("%w: %v", ErrAbstractType, t)
	}
	name = strings.TrimSpace(name)
	if !isValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCodecName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byType[t]; ok {
		return fmt.Errorf("%w: type %s", ErrCodecExists, t)
	}
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: name %q", ErrCodecExists, name)
	}
	b := &binding{name: name, typ: t, codec: c, identity: identityBearing(t)}
	r.byType[t] = b
	r.byName[name] = b
	return nil
}

// Lookup returns the codec registered for t.
func (r *Registry) Lookup(t reflect.Type) (Codec, error) {
	b, err := r.bindingFor(t)
	if err != nil {
		return nil, err
	}
	return b.codec, nil
}

// LookupValue returns the codec registered for the concrete type of v.
func (r *Registry) LookupValue(v any) (Codec, error) {
	return r.Lookup(reflect.TypeOf(v))
}

// Names returns registered codec names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) bindingFor(t reflect.Type) (*binding, error) {
	if t == nil {
		return nil, UnsupportedTypeError{Type: "<nil>"}
	}
	r.mu.RLock()
	b, ok := r.byType[t]
	r.mu.RUnlock()
	if !ok {
		return nil, UnsupportedTypeError{Type: t.String()}
	}
	return b, nil
}

func (r *Registry) bindingNamed(name string) (*binding, error) {
	r.mu.RLock()
	b, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, UnsupportedTypeError{Name: name}
	}
	return b, nil
}

// Pointers, maps and channels carry identity; everything else is written by value.
func identityBearing(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan:
		return true
	default:
		return false
	}
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

func isValidName(name string) bool {
	if name == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_' || c == '/'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(name)-1) && isSep {
			return false
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
