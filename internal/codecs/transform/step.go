package transform

import (
	"github.com/danmuck/instantgraph/internal/artifact"
	"github.com/danmuck/instantgraph/internal/serialization"
)

// StepCodec writes a step as its owning scope path plus its transformer.
// The step's services are fetched again from the live scope on decode.
type StepCodec struct{}

func (StepCodec) Check(step *artifact.Step) error {
	if _, ok := step.OwningScope(); !ok {
		return serialization.MissingContextError{
			Type:   "transform step " + step.DisplayName(),
			Reason: "transformation must have an owning scope to be encoded",
		}
	}
	return checkTransformer("transform step "+step.DisplayName(), step.Transformer())
}

func (c StepCodec) Encode(w *serialization.WriteContext, step *artifact.Step) error {
	path, ok := step.OwningScope()
	if !ok || step.Transformer() == nil {
		return c.Check(step)
	}
	if err := w.WriteString(path); err != nil {
		return err
	}
	return w.Write(step.Transformer())
}

func (StepCodec) Decode(r *serialization.ReadContext) (*artifact.Step, error) {
	path, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	transformer, err := serialization.ReadNonNull[artifact.Transformer](r)
	if err != nil {
		return nil, err
	}
	scope, err := r.ResolveScope(path)
	if err != nil {
		return nil, err
	}
	invocations, err := serialization.ScopedService[artifact.InvocationFactory](r, scope)
	if err != nil {
		return nil, err
	}
	owner, err := serialization.ScopedService[artifact.DomainObjectContext](r, scope)
	if err != nil {
		return nil, err
	}
	states, err := serialization.GlobalService[artifact.StateRegistry](r)
	if err != nil {
		return nil, err
	}
	fingerprinters, err := serialization.GlobalService[artifact.FingerprinterRegistry](r)
	if err != nil {
		return nil, err
	}
	return artifact.NewStep(transformer, invocations, owner, states, fingerprinters), nil
}

// ChainCodec writes both steps through the dispatch so a step shared with
// other nodes keeps one identity.
type ChainCodec struct{}

func (ChainCodec) Check(chain *artifact.Chain) error {
	if chain.First == nil || chain.Second == nil {
		return serialization.MissingContextError{Type: "transform chain", Reason: artifact.ErrIncompleteChainSteps.Error()}
	}
	return nil
}

func (ChainCodec) Encode(w *serialization.WriteContext, chain *artifact.Chain) error {
	if err := w.Write(chain.First); err != nil {
		return err
	}
	return w.Write(chain.Second)
}

func (ChainCodec) Decode(r *serialization.ReadContext) (*artifact.Chain, error) {
	first, err := serialization.ReadNonNull[*artifact.Step](r)
	if err != nil {
		return nil, err
	}
	second, err := serialization.ReadNonNull[*artifact.Step](r)
	if err != nil {
		return nil, err
	}
	return &artifact.Chain{First: first, Second: second}, nil
}
