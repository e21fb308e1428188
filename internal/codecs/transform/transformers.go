package transform

import (
	"github.com/danmuck/instantgraph/internal/artifact"
	"github.com/danmuck/instantgraph/internal/serialization"
	"github.com/danmuck/instantgraph/internal/serialization/codecs"
)

// checkTransformer rejects a transformer its decoder could not rebuild.
func checkTransformer(kind string, t artifact.Transformer) error {
	if err := artifact.Validate(t); err != nil {
		return serialization.MissingContextError{Type: kind, Reason: err.Error()}
	}
	return nil
}

type ActionTransformerCodec struct{}

func (ActionTransformerCodec) Check(t *artifact.ActionTransformer) error {
	return checkTransformer("action transformer", t)
}

func (ActionTransformerCodec) Encode(w *serialization.WriteContext, t *artifact.ActionTransformer) error {
	if err := w.WriteString(t.ActionType); err != nil {
		return err
	}
	if err := w.WriteBool(t.Cacheable); err != nil {
		return err
	}
	if err := w.WriteString(t.Normalizer); err != nil {
		return err
	}
	return codecs.WriteData(w, t.Parameters)
}

func (ActionTransformerCodec) Decode(r *serialization.ReadContext) (*artifact.ActionTransformer, error) {
	actionType, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	cacheable, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	normalization, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	params, err := codecs.ReadData[artifact.Parameters](r)
	if err != nil {
		return nil, err
	}
	t, err := artifact.NewActionTransformer(actionType, params, cacheable, normalization)
	if err != nil {
		return nil, r.Malformed("action transformer", err)
	}
	return t, nil
}

type LegacyTransformerCodec struct{}

func (LegacyTransformerCodec) Encode(w *serialization.WriteContext, t artifact.LegacyTransformer) error {
	if err := w.WriteString(t.Implementation); err != nil {
		return err
	}
	return codecs.WriteStrings(w, t.Config)
}

func (LegacyTransformerCodec) Decode(r *serialization.ReadContext) (artifact.LegacyTransformer, error) {
	impl, err := r.ReadString()
	if err != nil {
		return artifact.LegacyTransformer{}, err
	}
	config, err := codecs.ReadStrings(r)
	if err != nil {
		return artifact.LegacyTransformer{}, err
	}
	return artifact.LegacyTransformer{Implementation: impl, Config: config}, nil
}

// ExpressionTransformerCodec keeps only the source; the program is compiled
// again on decode.
type ExpressionTransformerCodec struct{}

func (ExpressionTransformerCodec) Check(t *artifact.ExpressionTransformer) error {
	return checkTransformer("expression transformer", t)
}

func (ExpressionTransformerCodec) Encode(w *serialization.WriteContext, t *artifact.ExpressionTransformer) error {
	return w.WriteString(t.Source())
}

func (ExpressionTransformerCodec) Decode(r *serialization.ReadContext) (*artifact.ExpressionTransformer, error) {
	source, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	t, err := artifact.NewExpressionTransformer(source)
	if err != nil {
		return nil, r.Malformed("expression transformer", err)
	}
	return t, nil
}

type FilteredTransformerCodec struct{}

func (FilteredTransformerCodec) Check(t *artifact.FilteredTransformer) error {
	return checkTransformer("filtered transformer", t)
}

func (FilteredTransformerCodec) Encode(w *serialization.WriteContext, t *artifact.FilteredTransformer) error {
	if err := w.WriteString(t.Predicate()); err != nil {
		return err
	}
	return w.Write(t.Delegate)
}

func (FilteredTransformerCodec) Decode(r *serialization.ReadContext) (*artifact.FilteredTransformer, error) {
	predicate, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	delegate, err := serialization.ReadNonNull[artifact.Transformer](r)
	if err != nil {
		return nil, err
	}
	t, err := artifact.NewFilteredTransformer(predicate, delegate)
	if err != nil {
		return nil, r.Malformed("filtered transformer", err)
	}
	return t, nil
}
