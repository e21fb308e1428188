// Package transform holds codecs for artifact transformation steps.
package transform

import (
	"fmt"

	"github.com/danmuck/instantgraph/internal/artifact"
	"github.com/danmuck/instantgraph/internal/serialization"
)

// Codec names carried in streams.
const (
	NameStep       = "transform.step"
	NameChain      = "transform.chain"
	NameAction     = "transform.action"
	NameLegacy     = "transform.legacy"
	NameExpression = "transform.expression"
	NameFiltered   = "transform.filtered"
)

// Register installs every transform codec into reg.
func Register(reg *serialization.Registry) error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{NameStep, func() error { return serialization.Register[*artifact.Step](reg, NameStep, StepCodec{}) }},
		{NameChain, func() error { return serialization.Register[*artifact.Chain](reg, NameChain, ChainCodec{}) }},
		{NameAction, func() error {
			return serialization.Register[*artifact.ActionTransformer](reg, NameAction, ActionTransformerCodec{})
		}},
		{NameLegacy, func() error {
			return serialization.Register[artifact.LegacyTransformer](reg, NameLegacy, LegacyTransformerCodec{})
		}},
		{NameExpression, func() error {
			return serialization.Register[*artifact.ExpressionTransformer](reg, NameExpression, ExpressionTransformerCodec{})
		}},
		{NameFiltered, func() error {
			return serialization.Register[*artifact.FilteredTransformer](reg, NameFiltered, FilteredTransformerCodec{})
		}},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("register %s: %w", step.name, err)
		}
	}
	return nil
}
