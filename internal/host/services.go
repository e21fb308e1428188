package host

import (
	"reflect"
	"sync"
)

// Services is a capability-typed service provider.
type Services struct {
	mu    sync.RWMutex
	items map[reflect.Type]any
}

func NewServices() *Services {
	return &Services{items: make(map[reflect.Type]any)}
}

// Provide stores v under the capability type T and returns s for chaining.
// T is usually an interface, so callers pick the capability explicitly.
func Provide[T any](s *Services, v T) *Services {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[reflect.TypeOf((*T)(nil)).Elem()] = v
	return s
}

// Service implements serialization.ServiceProvider.
func (s *Services) Service(t reflect.Type) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[t]
	return v, ok
}

// Len returns the number of provided capabilities.
func (s *Services) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
