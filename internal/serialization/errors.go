package serialization

import (
	"errors"
	"fmt"
)

var (
	ErrMissingContext  = errors.New("serialization: missing context")
	ErrUnresolvedScope = errors.New("serialization: unresolved scope")
	ErrUnsupportedType = errors.New("serialization: unsupported type")
	ErrMalformedStream = errors.New("serialization: malformed stream")
	ErrServiceNotFound = errors.New("serialization: service not found")
	ErrCyclicReference = errors.New("serialization: cyclic reference")
	ErrSessionClosed   = errors.New("serialization: session closed")

	ErrCodecExists      = errors.New("serialization: codec already registered")
	ErrNilCodec         = errors.New("serialization: codec is nil")
	ErrAbstractType     = errors.New("serialization: codec type must be concrete")
	ErrInvalidCodecName = errors.New("serialization: invalid codec name")
)

// MissingContextError reports a value that lacks data required to encode it.
// It is raised before any byte of the value is written.
type MissingContextError struct {
	Type   string
	Reason string
}

func (e MissingContextError) Error() string {
	return fmt.Sprintf("serialization: cannot encode %s: %s", e.Type, e.Reason)
}

func (e MissingContextError) Is(target error) bool {
	return target == ErrMissingContext
}

// UnresolvedScopeError reports a scope path with no live, initialized match.
type UnresolvedScopeError struct {
	Path string
	Err  error
}

func (e UnresolvedScopeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("serialization: unresolved scope %q", e.Path)
	}
	return fmt.Sprintf("serialization: unresolved scope %q: %v", e.Path, e.Err)
}

func (e UnresolvedScopeError) Is(target error) bool {
	return target == ErrUnresolvedScope
}

func (e UnresolvedScopeError) Unwrap() error {
	return e.Err
}

// UnsupportedTypeError reports a type with no registered codec. Name is set
// when the type was referenced by name in a stream.
type UnsupportedTypeError struct {
	Type string
	Name string
}

func (e UnsupportedTypeError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("serialization: no codec registered under name %q", e.Name)
	}
	return fmt.Sprintf("serialization: no codec registered for type %s", e.Type)
}

func (e UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}

// MalformedStreamError reports a tag or payload that does not match what the
// decoder expects at the current position.
type MalformedStreamError struct {
	Offset int
	Reason string
	Err    error
}

func (e MalformedStreamError) Error() string {
	msg := fmt.Sprintf("serialization: malformed stream at value %d: %s", e.Offset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e MalformedStreamError) Is(target error) bool {
	return target == ErrMalformedStream
}

func (e MalformedStreamError) Unwrap() error {
	return e.Err
}

// ServiceNotFoundError reports a capability missing from a service provider.
type ServiceNotFoundError struct {
	Type  string
	Scope string
}

func (e ServiceNotFoundError) Error() string {
	if e.Scope == "" {
		return fmt.Sprintf("serialization: service %s not found in globals", e.Type)
	}
	return fmt.Sprintf("serialization: service %s not found in scope %q", e.Type, e.Scope)
}

func (e ServiceNotFoundError) Is(target error) bool {
	return target == ErrServiceNotFound
}
