package host

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/instantgraph/internal/serialization"
)

var (
	ErrScopeExists         = errors.New("host: scope already exists")
	ErrScopeNil            = errors.New("host: scope is nil")
	ErrInvalidPath         = errors.New("host: invalid scope path")
	ErrScopeNotFound       = errors.New("host: scope not found")
	ErrScopeNotInitialized = errors.New("host: scope not initialized")
)

// ScopeState tracks scope readiness.
type ScopeState int

const (
	ScopeCreated ScopeState = iota
	ScopeInitialized
	ScopeDiscarded
)

func (s ScopeState) String() string {
	switch s {
	case ScopeCreated:
		return "created"
	case ScopeInitialized:
		return "initialized"
	case ScopeDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Scope is a live unit such as a module, owning its own services.
type Scope struct {
	mu       sync.RWMutex
	path     string
	state    ScopeState
	services *Services
}

// NewScope creates a scope in the created state.
func NewScope(path string, services *Services) *Scope {
	if services == nil {
		services = NewServices()
	}
	return &Scope{path: normalizePath(path), services: services}
}

func (s *Scope) Path() string { return s.path }

func (s *Scope) Services() serialization.ServiceProvider { return s.services }

func (s *Scope) State() ScopeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Initialize marks the scope ready. Discarded scopes stay discarded.
func (s *Scope) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == ScopeCreated {
		s.state = ScopeInitialized
	}
}

func (s *Scope) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = ScopeDiscarded
}

// Registry stores live scopes by path. It satisfies both
// serialization.ScopeRegistry and artifact.StateRegistry.
type Registry struct {
	mu    sync.RWMutex
	items map[string]*Scope
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*Scope)}
}

// ValidatePath checks a scope path such as "app:lib" or ":app:lib".
func ValidatePath(path string) error {
	if !isValidPath(path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return nil
}

// Register adds a scope.
func (r *Registry) Register(s *Scope) error {
	if s == nil {
		return ErrScopeNil
	}
	if err := ValidatePath(s.path); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[s.path]; ok {
		return fmt.Errorf("%w: %s", ErrScopeExists, s.path)
	}
	r.items[s.path] = s
	return nil
}

// Lookup returns a scope by path regardless of its state.
func (r *Registry) Lookup(path string) (*Scope, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[normalizePath(path)]
	return s, ok
}

// Resolve returns an initialized scope by path.
func (r *Registry) Resolve(path string) (serialization.Scope, error) {
	s, ok := r.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScopeNotFound, path)
	}
	if st := s.State(); st != ScopeInitialized {
		return nil, fmt.Errorf("%w: %s is %s", ErrScopeNotInitialized, path, st)
	}
	return s, nil
}

// Initialized reports whether path names an initialized scope.
func (r *Registry) Initialized(path string) bool {
	s, ok := r.Lookup(path)
	return ok && s.State() == ScopeInitialized
}

// Paths returns registered paths in sorted order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]string, 0, len(r.items))
	for path := range r.items {
		list = append(list, path)
	}
	sort.Strings(list)
	return list
}

// A leading ':' marks the root and is dropped.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if len(path) > 1 {
		path = strings.TrimPrefix(path, ":")
	}
	return path
}

func isValidPath(path string) bool {
	if path == ":" {
		return true
	}
	if path == "" {
		return false
	}
	for _, segment := range strings.Split(path, ":") {
		if !isValidSegment(segment) {
			return false
		}
	}
	return true
}

func isValidSegment(segment string) bool {
	if segment == "" {
		return false
	}
	for i := 0; i < len(segment); i++ {
		c := segment[i]
		isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isAlpha || isDigit || isSep) {
			return false
		}
		if i == 0 && isSep {
			return false
		}
	}
	return true
}
