package artifact

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrScopeNotReady        = errors.New("artifact: owning scope is not initialized")
	ErrNoInvocationFactory  = errors.New("artifact: step has no invocation factory")
	ErrNoFingerprinters     = errors.New("artifact: step has no fingerprinter registry")
	ErrNilTransformer       = errors.New("artifact: step has no transformer")
	ErrIncompleteChainSteps = errors.New("artifact: chain requires two steps")
)

// Step binds a transformer to the live services of its owning scope.
type Step struct {
	transformer    Transformer
	invocations    InvocationFactory
	owner          DomainObjectContext
	states         StateRegistry
	fingerprinters FingerprinterRegistry
}

func NewStep(
	transformer Transformer,
	invocations InvocationFactory,
	owner DomainObjectContext,
	states StateRegistry,
	fingerprinters FingerprinterRegistry,
) *Step {
	return &Step{
		transformer:    transformer,
		invocations:    invocations,
		owner:          owner,
		states:         states,
		fingerprinters: fingerprinters,
	}
}

func (s *Step) Transformer() Transformer                     { return s.transformer }
func (s *Step) InvocationFactory() InvocationFactory         { return s.invocations }
func (s *Step) Owner() DomainObjectContext                   { return s.owner }
func (s *Step) StateRegistry() StateRegistry                 { return s.states }
func (s *Step) FingerprinterRegistry() FingerprinterRegistry { return s.fingerprinters }

// OwningScope returns the path of the scope that owns this step.
func (s *Step) OwningScope() (string, bool) {
	if s.owner == nil {
		return "", false
	}
	return s.owner.ScopePath()
}

func (s *Step) DisplayName() string {
	if s.transformer == nil {
		return "step <nil>"
	}
	if s.owner == nil {
		return s.transformer.DisplayName()
	}
	return s.transformer.DisplayName() + " in " + s.owner.DisplayName()
}

// Run transforms input with the owning scope's invocation factory.
func (s *Step) Run(ctx context.Context, input string) ([]string, error) {
	if s.transformer == nil {
		return nil, ErrNilTransformer
	}
	if s.invocations == nil {
		return nil, ErrNoInvocationFactory
	}
	if path, ok := s.OwningScope(); ok && s.states != nil && !s.states.Initialized(path) {
		return nil, fmt.Errorf("%w: %s", ErrScopeNotReady, path)
	}
	return s.invocations.Invoke(ctx, s.transformer, input)
}

// Fingerprint hashes inputs with the normalization the transformer asks for.
func (s *Step) Fingerprint(inputs []string) (string, error) {
	if s.fingerprinters == nil {
		return "", ErrNoFingerprinters
	}
	normalization := NormalizeAbsolutePath
	if n, ok := s.transformer.(Normalized); ok {
		normalization = n.Normalization()
	}
	fp, err := s.fingerprinters.Fingerprinter(normalization)
	if err != nil {
		return "", err
	}
	return fp.Fingerprint(inputs)
}

// Chain runs Second over every output of First.
type Chain struct {
	First  *Step
	Second *Step
}

func (c *Chain) Run(ctx context.Context, input string) ([]string, error) {
	if c.First == nil || c.Second == nil {
		return nil, ErrIncompleteChainSteps
	}
	intermediate, err := c.First.Run(ctx, input)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(intermediate))
	for _, in := range intermediate {
		res, err := c.Second.Run(ctx, in)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}
