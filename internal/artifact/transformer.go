package artifact

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/google/cel-go/cel"
)

var (
	ErrEmptyExpression    = errors.New("artifact: empty expression")
	ErrExpressionResult   = errors.New("artifact: expression result is not a string or string list")
	ErrPredicateResult    = errors.New("artifact: predicate result is not a bool")
	ErrMissingDelegate    = errors.New("artifact: filtered transformer has no delegate")
	ErrMissingActionType  = errors.New("artifact: action transformer has no action type")
	ErrMissingLegacyClass = errors.New("artifact: legacy transformer has no implementation")
)

// Transformer turns one input artifact into zero or more outputs.
type Transformer interface {
	DisplayName() string
	Transform(input string) ([]string, error)
}

// Validate reports whether t holds everything its constructor requires.
// Zero values built without a constructor fail here.
func Validate(t Transformer) error {
	if t == nil {
		return ErrNilTransformer
	}
	if v, ok := t.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

// Normalized is implemented by transformers that choose their input
// normalization for fingerprinting.
type Normalized interface {
	Normalization() string
}

// Parameters is the plain-data configuration of an action transformer.
type Parameters struct {
	Values map[string]string `cbor:"1,keyasint,omitempty"`
	Tags   []string          `cbor:"2,keyasint,omitempty"`
}

// ActionTransformer runs a registered transform action with parameters.
type ActionTransformer struct {
	ActionType string
	Parameters Parameters
	Cacheable  bool
	Normalizer string
}

func NewActionTransformer(actionType string, params Parameters, cacheable bool, normalization string) (*ActionTransformer, error) {
	actionType = strings.TrimSpace(actionType)
	if actionType == "" {
		return nil, ErrMissingActionType
	}
	if normalization == "" {
		normalization = NormalizeAbsolutePath
	}
	return &ActionTransformer{
		ActionType: actionType,
		Parameters: params,
		Cacheable:  cacheable,
		Normalizer: normalization,
	}, nil
}

func (t *ActionTransformer) Validate() error {
	if t == nil || strings.TrimSpace(t.ActionType) == "" {
		return ErrMissingActionType
	}
	return nil
}

func (t *ActionTransformer) DisplayName() string {
	return "action " + t.ActionType
}

func (t *ActionTransformer) Normalization() string {
	return t.Normalizer
}

func (t *ActionTransformer) Transform(input string) ([]string, error) {
	out := input + "." + t.ActionType
	if suffix, ok := t.Parameters.Values["suffix"]; ok {
		out += suffix
	}
	return []string{out}, nil
}

// LegacyTransformer wraps an implementation named by type, configured with
// positional strings. It is a value type and carries no identity.
type LegacyTransformer struct {
	Implementation string
	Config         []string
}

func (t LegacyTransformer) DisplayName() string {
	return "legacy " + t.Implementation
}

func (t LegacyTransformer) Transform(input string) ([]string, error) {
	if t.Implementation == "" {
		return nil, ErrMissingLegacyClass
	}
	args := append([]string{input}, t.Config...)
	return []string{t.Implementation + "(" + strings.Join(args, ",") + ")"}, nil
}

// ExpressionTransformer computes outputs with an expr program over `input`.
// Only Source is data; the program is compiled per process.
type ExpressionTransformer struct {
	source  string
	program *vm.Program
}

func NewExpressionTransformer(source string) (*ExpressionTransformer, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, ErrEmptyExpression
	}
	program, err := expr.Compile(source, expr.Env(map[string]any{"input": ""}))
	if err != nil {
		return nil, fmt.Errorf("artifact: compile expression %q: %w", source, err)
	}
	return &ExpressionTransformer{source: source, program: program}, nil
}

func (t *ExpressionTransformer) Source() string { return t.source }

func (t *ExpressionTransformer) Validate() error {
	if t == nil || t.source == "" || t.program == nil {
		return ErrEmptyExpression
	}
	return nil
}

func (t *ExpressionTransformer) DisplayName() string {
	return "expression " + t.source
}

func (t *ExpressionTransformer) Transform(input string) ([]string, error) {
	out, err := expr.Run(t.program, map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("artifact: run expression %q: %w", t.source, err)
	}
	switch v := out.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		outputs := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, ErrExpressionResult
			}
			outputs = append(outputs, s)
		}
		return outputs, nil
	default:
		return nil, ErrExpressionResult
	}
}

var (
	celOnce sync.Once
	celEnv  *cel.Env
	celErr  error
)

func predicateEnv() (*cel.Env, error) {
	celOnce.Do(func() {
		celEnv, celErr = cel.NewEnv(cel.Variable("input", cel.StringType))
	})
	return celEnv, celErr
}

// FilteredTransformer applies Delegate to inputs matching a CEL predicate
// and passes other inputs through unchanged.
type FilteredTransformer struct {
	predicate string
	program   cel.Program
	Delegate  Transformer
}

func NewFilteredTransformer(predicate string, delegate Transformer) (*FilteredTransformer, error) {
	predicate = strings.TrimSpace(predicate)
	if predicate == "" {
		return nil, ErrEmptyExpression
	}
	if delegate == nil {
		return nil, ErrMissingDelegate
	}
	env, err := predicateEnv()
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(predicate)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("artifact: compile predicate %q: %w", predicate, iss.Err())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("artifact: program predicate %q: %w", predicate, err)
	}
	return &FilteredTransformer{predicate: predicate, program: program, Delegate: delegate}, nil
}

func (t *FilteredTransformer) Predicate() string { return t.predicate }

func (t *FilteredTransformer) Validate() error {
	if t == nil || t.predicate == "" || t.program == nil {
		return ErrEmptyExpression
	}
	if t.Delegate == nil {
		return ErrMissingDelegate
	}
	return Validate(t.Delegate)
}

func (t *FilteredTransformer) DisplayName() string {
	if t.Delegate == nil {
		return "filter(" + t.predicate + ") <nil>"
	}
	return "filter(" + t.predicate + ") " + t.Delegate.DisplayName()
}

func (t *FilteredTransformer) Matches(input string) (bool, error) {
	out, _, err := t.program.Eval(map[string]any{"input": input})
	if err != nil {
		return false, fmt.Errorf("artifact: eval predicate %q: %w", t.predicate, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, ErrPredicateResult
	}
	return b, nil
}

func (t *FilteredTransformer) Transform(input string) ([]string, error) {
	ok, err := t.Matches(input)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{input}, nil
	}
	return t.Delegate.Transform(input)
}
