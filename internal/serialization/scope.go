package serialization

import (
	"errors"
	"fmt"
	"reflect"
)

// ServiceProvider maps a capability type to a live instance.
type ServiceProvider interface {
	Service(t reflect.Type) (any, bool)
}

// Scope is a live, host-owned unit identified by a path.
type Scope interface {
	Path() string
	Services() ServiceProvider
}

// ScopeRegistry resolves scope paths against the running host. Resolve must
// fail for paths that are unknown or not yet initialized.
type ScopeRegistry interface {
	Resolve(path string) (Scope, error)
}

// Service fetches the T capability from p.
func Service[T any](p ServiceProvider) (T, error) {
	var zero T
	t := reflect.TypeOf((*T)(nil)).Elem()
	if p == nil {
		return zero, ServiceNotFoundError{Type: t.String()}
	}
	v, ok := p.Service(t)
	if !ok || v == nil {
		return zero, ServiceNotFoundError{Type: t.String()}
	}
	s, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("serialization: service %s is registered as %T", t, v)
	}
	return s, nil
}

// ScopedService fetches T from scope and fails the session when it is absent.
func ScopedService[T any](r *ReadContext, scope Scope) (T, error) {
	var zero T
	s, err := Service[T](scope.Services())
	if err != nil {
		var nf ServiceNotFoundError
		if errors.As(err, &nf) {
			nf.Scope = scope.Path()
			err = nf
		}
		return zero, r.fail(err)
	}
	return s, nil
}

// GlobalService fetches T from the session globals and fails the session
// when it is absent.
func GlobalService[T any](r *ReadContext) (T, error) {
	s, err := Service[T](r.globals)
	if err != nil {
		var zero T
		return zero, r.fail(err)
	}
	return s, nil
}
