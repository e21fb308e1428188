package transform_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/instantgraph/internal/artifact"
	"github.com/danmuck/instantgraph/internal/codecs/transform"
	"github.com/danmuck/instantgraph/internal/host"
	"github.com/danmuck/instantgraph/internal/serialization"
	"github.com/danmuck/instantgraph/internal/serialization/codecs"
	"github.com/danmuck/instantgraph/internal/testutil/testlog"
	"github.com/danmuck/instantgraph/internal/workspace"
)

func newWorkspace(t *testing.T, paths ...string) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.New(paths...)
	if err != nil {
		t.Fatalf("new workspace: %v", err)
	}
	return ws
}

func mustStep(t *testing.T, ws *workspace.Workspace, path string, tr artifact.Transformer) *artifact.Step {
	t.Helper()
	step, err := ws.Step(path, tr)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	return step
}

func encode(t *testing.T, ws *workspace.Workspace, values ...any) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := serialization.NewWriteContext(&buf, ws.Codecs)
	for _, v := range values {
		if err := w.Write(v); err != nil {
			t.Fatalf("write %T: %v", v, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return buf.Bytes()
}

func decodeOne[T any](t *testing.T, ws *workspace.Workspace, data []byte) (T, error) {
	t.Helper()
	r := serialization.NewReadContext(bytes.NewReader(data), ws.Codecs, ws.Scopes, serialization.WithGlobals(ws.Globals))
	v, err := serialization.ReadNonNull[T](r)
	if err != nil {
		return v, err
	}
	return v, r.Close()
}

func TestStepRoundTripRebindsLiveServices(t *testing.T) {
	testlog.Start(t)
	ws := newWorkspace(t, "app:lib")
	action, err := artifact.NewActionTransformer("minify", artifact.Parameters{
		Values: map[string]string{"suffix": ".min"},
		Tags:   []string{"js"},
	}, true, artifact.NormalizeNameOnly)
	if err != nil {
		t.Fatalf("action: %v", err)
	}
	step := mustStep(t, ws, "app:lib", action)

	data := encode(t, ws, step)

	// A fresh process: same paths, new scope instances.
	next := newWorkspace(t, "app:lib")
	got, err := decodeOne[*artifact.Step](t, next, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if path, ok := got.OwningScope(); !ok || path != "app:lib" {
		t.Fatalf("unexpected owning scope %q %v", path, ok)
	}
	scope, _ := next.Scopes.Lookup("app:lib")
	owner, err := serialization.Service[artifact.DomainObjectContext](scope.Services())
	if err != nil {
		t.Fatalf("owner service: %v", err)
	}
	if got.Owner() != owner {
		t.Fatalf("owner not taken from the live scope")
	}
	if got.StateRegistry() != artifact.StateRegistry(next.Scopes) {
		t.Fatalf("state registry not taken from globals")
	}
	tr, ok := got.Transformer().(*artifact.ActionTransformer)
	if !ok {
		t.Fatalf("unexpected transformer %T", got.Transformer())
	}
	if !reflect.DeepEqual(tr, action) {
		t.Fatalf("transformer mismatch:\n got %#v\nwant %#v", tr, action)
	}
	out, err := got.Run(context.Background(), "main")
	if err != nil || len(out) != 1 || out[0] != "main.minify.min" {
		t.Fatalf("unexpected run output %v %v", out, err)
	}

	want, _ := step.Fingerprint([]string{"/a/x.js", "/b/y.js"})
	fp, err := got.Fingerprint([]string{"/c/x.js", "/d/y.js"})
	if err != nil || fp != want {
		t.Fatalf("name-only fingerprint should ignore directories: %s %v", fp, err)
	}
}

type countingFactory struct {
	calls int
}

func (f *countingFactory) Invoke(ctx context.Context, tr artifact.Transformer, input string) ([]string, error) {
	f.calls++
	return tr.Transform(input)
}

type libraryContext struct {
	path string
}

func (c *libraryContext) DisplayName() string       { return "library " + c.path }
func (c *libraryContext) ScopePath() (string, bool) { return c.path, true }

func TestStepDecodeUsesTheResolvedScopeInstances(t *testing.T) {
	testlog.Start(t)
	ws := newWorkspace(t, "app:lib")
	data := encode(t, ws, mustStep(t, ws, "app:lib", artifact.LegacyTransformer{Implementation: "Jar"}))

	next := newWorkspace(t)
	f1 := &countingFactory{}
	c1 := &libraryContext{path: "app:lib"}
	services := host.NewServices()
	host.Provide[artifact.InvocationFactory](services, f1)
	host.Provide[artifact.DomainObjectContext](services, c1)
	scope := host.NewScope(":app:lib", services)
	if err := next.Scopes.Register(scope); err != nil {
		t.Fatalf("register scope: %v", err)
	}
	scope.Initialize()

	got, err := decodeOne[*artifact.Step](t, next, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.InvocationFactory() != artifact.InvocationFactory(f1) {
		t.Fatalf("invocation factory is not the live F1 instance")
	}
	if got.Owner() != artifact.DomainObjectContext(c1) {
		t.Fatalf("owner is not the live C1 instance")
	}
	if _, err := got.Run(context.Background(), "classes"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if f1.calls != 1 {
		t.Fatalf("expected one call through F1, got %d", f1.calls)
	}
}

func TestStepWithoutScopeWritesNothing(t *testing.T) {
	testlog.Start(t)
	ws := newWorkspace(t, "app")
	orphan := artifact.NewStep(
		artifact.LegacyTransformer{Implementation: "Unzip"},
		artifact.DirectInvocationFactory{},
		artifact.ScriptContext{Name: "init.script"},
		ws.Scopes,
		artifact.HashFingerprinters{},
	)

	var buf bytes.Buffer
	w := serialization.NewWriteContext(&buf, ws.Codecs)
	if err := w.Write("before"); err != nil {
		t.Fatalf("write: %v", err)
	}
	before := w.Offset()
	err := w.Write(orphan)
	var missing serialization.MissingContextError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingContextError, got %v", err)
	}
	if missing.Reason != "transformation must have an owning scope to be encoded" {
		t.Fatalf("unexpected reason %q", missing.Reason)
	}
	if w.Offset() != before {
		t.Fatalf("failed step emitted %d bytes", w.Offset()-before)
	}
}

func TestInvalidTransformersFailBeforeWriting(t *testing.T) {
	testlog.Start(t)
	ws := newWorkspace(t, "app")
	legacy := artifact.LegacyTransformer{Implementation: "Zip"}
	detached, err := artifact.NewFilteredTransformer("true", legacy)
	if err != nil {
		t.Fatalf("filtered: %v", err)
	}
	detached.Delegate = nil
	wrapsEmpty, err := artifact.NewFilteredTransformer("true", &artifact.ActionTransformer{})
	if err != nil {
		t.Fatalf("filtered: %v", err)
	}

	cases := []struct {
		name  string
		value func() any
	}{
		{"empty action", func() any { return &artifact.ActionTransformer{} }},
		{"empty expression", func() any { return &artifact.ExpressionTransformer{} }},
		{"empty filter", func() any { return &artifact.FilteredTransformer{} }},
		{"filter without delegate", func() any { return detached }},
		{"filter over empty action", func() any { return wrapsEmpty }},
		{"step without transformer", func() any { return mustStep(t, ws, "app", nil) }},
		{"step over empty action", func() any { return mustStep(t, ws, "app", &artifact.ActionTransformer{}) }},
		{"chain missing a step", func() any { return &artifact.Chain{First: mustStep(t, ws, "app", legacy)} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := serialization.NewWriteContext(&buf, ws.Codecs)
			if err := w.Write("before"); err != nil {
				t.Fatalf("write: %v", err)
			}
			before := w.Offset()
			if err := w.Write(tc.value()); !errors.Is(err, serialization.ErrMissingContext) {
				t.Fatalf("expected ErrMissingContext, got %v", err)
			}
			if w.Offset() != before {
				t.Fatalf("rejected value emitted %d bytes", w.Offset()-before)
			}
			if err := w.Close(); !errors.Is(err, serialization.ErrMissingContext) {
				t.Fatalf("expected sticky ErrMissingContext, got %v", err)
			}
		})
	}
}

// uncheckedAction writes action transformers without validating them.
type uncheckedAction struct{}

func (uncheckedAction) Encode(w *serialization.WriteContext, a *artifact.ActionTransformer) error {
	if err := w.WriteString(a.ActionType); err != nil {
		return err
	}
	if err := w.WriteBool(a.Cacheable); err != nil {
		return err
	}
	if err := w.WriteString(a.Normalizer); err != nil {
		return err
	}
	return codecs.WriteData(w, a.Parameters)
}

func (uncheckedAction) Decode(r *serialization.ReadContext) (*artifact.ActionTransformer, error) {
	return nil, errors.New("not used")
}

func TestDecodeRejectsInvalidTransformerPayload(t *testing.T) {
	testlog.Start(t)
	reg := serialization.NewRegistry()
	if err := serialization.Register[*artifact.ActionTransformer](reg, transform.NameAction, uncheckedAction{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	var buf bytes.Buffer
	w := serialization.NewWriteContext(&buf, reg)
	if err := w.Write(&artifact.ActionTransformer{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ws := newWorkspace(t)
	r := serialization.NewReadContext(bytes.NewReader(buf.Bytes()), ws.Codecs, ws.Scopes, serialization.WithGlobals(ws.Globals))
	_, err := r.Read()
	if !errors.Is(err, serialization.ErrMalformedStream) {
		t.Fatalf("expected ErrMalformedStream, got %v", err)
	}
	if !errors.Is(err, artifact.ErrMissingActionType) {
		t.Fatalf("expected the constructor error to be kept, got %v", err)
	}
	if r.State() != serialization.StateFailed {
		t.Fatalf("expected failed session, got %s", r.State())
	}
}

func TestStepDecodeFailsForUnknownOrUninitializedScope(t *testing.T) {
	testlog.Start(t)
	ws := newWorkspace(t, "app:lib")
	data := encode(t, ws, mustStep(t, ws, "app:lib", artifact.LegacyTransformer{Implementation: "Zip"}))

	_, err := decodeOne[*artifact.Step](t, newWorkspace(t, "app"), data)
	var unresolved serialization.UnresolvedScopeError
	if !errors.As(err, &unresolved) || unresolved.Path != "app:lib" {
		t.Fatalf("expected unresolved app:lib, got %v", err)
	}

	pending := newWorkspace(t)
	scope, err := pending.AddScope("app:lib")
	if err != nil {
		t.Fatalf("add scope: %v", err)
	}
	scope.Discard()
	if _, err := decodeOne[*artifact.Step](t, pending, data); !errors.Is(err, serialization.ErrUnresolvedScope) {
		t.Fatalf("expected ErrUnresolvedScope for discarded scope, got %v", err)
	}
}

func TestStepDecodeRequiresGlobals(t *testing.T) {
	testlog.Start(t)
	ws := newWorkspace(t, "app")
	data := encode(t, ws, mustStep(t, ws, "app", artifact.LegacyTransformer{Implementation: "Zip"}))

	r := serialization.NewReadContext(bytes.NewReader(data), ws.Codecs, ws.Scopes)
	if _, err := r.Read(); !errors.Is(err, serialization.ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestPolymorphicTransformersAndSharedSteps(t *testing.T) {
	testlog.Start(t)
	ws := newWorkspace(t, "app", "app:lib")

	expression, err := artifact.NewExpressionTransformer(`[input + ".a", input + ".b"]`)
	if err != nil {
		t.Fatalf("expression: %v", err)
	}
	legacy := artifact.LegacyTransformer{Implementation: "Strip", Config: []string{"debug"}}
	filtered, err := artifact.NewFilteredTransformer(`input.endsWith(".a")`, legacy)
	if err != nil {
		t.Fatalf("filtered: %v", err)
	}
	split := mustStep(t, ws, "app", expression)
	strip := mustStep(t, ws, "app:lib", filtered)
	chain := &artifact.Chain{First: split, Second: strip}
	again := &artifact.Chain{First: split, Second: split}

	data := encode(t, ws, chain, again)

	next := newWorkspace(t, "app", "app:lib")
	r := serialization.NewReadContext(bytes.NewReader(data), next.Codecs, next.Scopes, serialization.WithGlobals(next.Globals))
	gotChain, err := serialization.ReadNonNull[*artifact.Chain](r)
	if err != nil {
		t.Fatalf("read chain: %v", err)
	}
	gotAgain, err := serialization.ReadNonNull[*artifact.Chain](r)
	if err != nil {
		t.Fatalf("read second chain: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if gotAgain.First != gotChain.First || gotAgain.Second != gotChain.First {
		t.Fatalf("shared step decoded as distinct instances")
	}
	if _, ok := gotChain.First.Transformer().(*artifact.ExpressionTransformer); !ok {
		t.Fatalf("unexpected first transformer %T", gotChain.First.Transformer())
	}
	gotFiltered, ok := gotChain.Second.Transformer().(*artifact.FilteredTransformer)
	if !ok {
		t.Fatalf("unexpected second transformer %T", gotChain.Second.Transformer())
	}
	if !reflect.DeepEqual(gotFiltered.Delegate, artifact.Transformer(legacy)) {
		t.Fatalf("delegate mismatch: %#v", gotFiltered.Delegate)
	}

	out, err := gotChain.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"Strip(x.a,debug)", "x.b"}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("unexpected output %v, want %v", out, want)
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	testlog.Start(t)
	ws := newWorkspace(t)
	if err := transform.Register(ws.Codecs); !errors.Is(err, serialization.ErrCodecExists) {
		t.Fatalf("expected ErrCodecExists, got %v", err)
	}
}
