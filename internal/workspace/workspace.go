// Package workspace assembles a host: the codec registry, the live scope
// registry and the process-wide services codecs look up on decode.
package workspace

import (
	"fmt"

	"github.com/danmuck/instantgraph/internal/artifact"
	"github.com/danmuck/instantgraph/internal/codecs/transform"
	"github.com/danmuck/instantgraph/internal/host"
	"github.com/danmuck/instantgraph/internal/serialization"
	"github.com/danmuck/instantgraph/internal/serialization/codecs"
)

// Workspace is one process's view of the build.
type Workspace struct {
	Codecs  *serialization.Registry
	Scopes  *host.Registry
	Globals *host.Services
}

// New builds a workspace with every codec installed and the given scope
// paths registered and initialized.
func New(paths ...string) (*Workspace, error) {
	reg := serialization.NewRegistry()
	if err := codecs.RegisterBuiltins(reg); err != nil {
		return nil, err
	}
	if err := transform.Register(reg); err != nil {
		return nil, err
	}

	scopes := host.NewRegistry()
	globals := host.NewServices()
	host.Provide[artifact.StateRegistry](globals, scopes)
	host.Provide[artifact.FingerprinterRegistry](globals, artifact.HashFingerprinters{})

	ws := &Workspace{Codecs: reg, Scopes: scopes, Globals: globals}
	for _, path := range paths {
		if _, err := ws.AddScope(path); err != nil {
			return nil, err
		}
	}
	return ws, nil
}

// AddScope registers and initializes a scope with direct invocation.
func (ws *Workspace) AddScope(path string) (*host.Scope, error) {
	services := host.NewServices()
	scope := host.NewScope(path, services)
	host.Provide[artifact.InvocationFactory](services, artifact.DirectInvocationFactory{})
	host.Provide[artifact.DomainObjectContext](services, artifact.ScopeContext{Path: scope.Path()})

	if err := ws.Scopes.Register(scope); err != nil {
		return nil, fmt.Errorf("workspace: add scope %s: %w", path, err)
	}
	scope.Initialize()
	return scope, nil
}

// Step builds a step owned by the scope at path, wired to that scope's
// live services.
func (ws *Workspace) Step(path string, t artifact.Transformer) (*artifact.Step, error) {
	scope, ok := ws.Scopes.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", host.ErrScopeNotFound, path)
	}
	invocations, err := serialization.Service[artifact.InvocationFactory](scope.Services())
	if err != nil {
		return nil, err
	}
	owner, err := serialization.Service[artifact.DomainObjectContext](scope.Services())
	if err != nil {
		return nil, err
	}
	return artifact.NewStep(t, invocations, owner, ws.Scopes, artifact.HashFingerprinters{}), nil
}
