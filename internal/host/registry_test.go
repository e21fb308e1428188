package host

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/instantgraph/internal/serialization"
	"github.com/danmuck/instantgraph/internal/testutil/testlog"
)

type greeter interface{ Greet() string }

type english struct{}

func (english) Greet() string { return "hello" }

func TestRegistryResolveRequiresInitializedScope(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	scope := NewScope(":app:lib", nil)
	if scope.Path() != "app:lib" {
		t.Fatalf("unexpected normalized path %q", scope.Path())
	}
	if err := reg.Register(scope); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := reg.Resolve("app:lib"); !errors.Is(err, ErrScopeNotInitialized) {
		t.Fatalf("expected ErrScopeNotInitialized, got %v", err)
	}
	if reg.Initialized("app:lib") {
		t.Fatalf("created scope reported initialized")
	}

	scope.Initialize()
	got, err := reg.Resolve(":app:lib")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Path() != "app:lib" {
		t.Fatalf("unexpected path %q", got.Path())
	}

	scope.Discard()
	scope.Initialize()
	if scope.State() != ScopeDiscarded {
		t.Fatalf("discarded scope changed state to %s", scope.State())
	}
	if _, err := reg.Resolve("app:lib"); !errors.Is(err, ErrScopeNotInitialized) {
		t.Fatalf("expected ErrScopeNotInitialized after discard, got %v", err)
	}
	if _, err := reg.Resolve("app:other"); !errors.Is(err, ErrScopeNotFound) {
		t.Fatalf("expected ErrScopeNotFound, got %v", err)
	}
}

func TestRegistryRejectsBadScopes(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	if err := reg.Register(nil); !errors.Is(err, ErrScopeNil) {
		t.Fatalf("expected ErrScopeNil, got %v", err)
	}
	for _, path := range []string{"", "app::lib", "app:-lib", "app lib", "app:"} {
		if err := reg.Register(NewScope(path, nil)); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("expected ErrInvalidPath for %q, got %v", path, err)
		}
	}
	if err := reg.Register(NewScope(":", nil)); err != nil {
		t.Fatalf("root scope: %v", err)
	}
	if err := reg.Register(NewScope("app", nil)); err != nil {
		t.Fatalf("register app: %v", err)
	}
	if err := reg.Register(NewScope(":app", nil)); !errors.Is(err, ErrScopeExists) {
		t.Fatalf("expected ErrScopeExists, got %v", err)
	}
	if got := reg.Paths(); len(got) != 2 || got[0] != ":" || got[1] != "app" {
		t.Fatalf("unexpected paths %v", got)
	}
}

func TestServicesByCapability(t *testing.T) {
	testlog.Start(t)
	services := Provide[greeter](NewServices(), english{})
	if services.Len() != 1 {
		t.Fatalf("unexpected len %d", services.Len())
	}
	if _, ok := services.Service(reflect.TypeOf((*english)(nil)).Elem()); ok {
		t.Fatalf("concrete type should not be registered")
	}
	g, err := serialization.Service[greeter](services)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	if g.Greet() != "hello" {
		t.Fatalf("unexpected greeting %q", g.Greet())
	}
	if _, err := serialization.Service[error](services); !errors.Is(err, serialization.ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}
