package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrUnknownNormalization = errors.New("artifact: unknown input normalization")

const (
	NormalizeAbsolutePath = "absolute-path"
	NormalizeNameOnly     = "name-only"
	NormalizeIgnored      = "ignored"
)

// InvocationFactory runs transformers for one scope.
type InvocationFactory interface {
	Invoke(ctx context.Context, t Transformer, input string) ([]string, error)
}

// DomainObjectContext describes the object that owns a step. ScopePath
// reports false for objects that do not belong to any scope.
type DomainObjectContext interface {
	DisplayName() string
	ScopePath() (string, bool)
}

// StateRegistry reports which scopes are ready for execution.
type StateRegistry interface {
	Initialized(path string) bool
}

// Fingerprinter hashes a set of inputs.
type Fingerprinter interface {
	Fingerprint(inputs []string) (string, error)
}

// FingerprinterRegistry selects a fingerprinter by input normalization.
type FingerprinterRegistry interface {
	Fingerprinter(normalization string) (Fingerprinter, error)
}

// DirectInvocationFactory calls the transformer in the caller's goroutine.
type DirectInvocationFactory struct{}

func (DirectInvocationFactory) Invoke(ctx context.Context, t Transformer, input string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.Transform(input)
}

// ScopeContext is the object context of a scope-owned step.
type ScopeContext struct {
	Path string
	Name string
}

func (c ScopeContext) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return "scope " + c.Path
}

func (c ScopeContext) ScopePath() (string, bool) {
	return c.Path, c.Path != ""
}

// ScriptContext owns steps declared outside any scope, such as init scripts.
type ScriptContext struct {
	Name string
}

func (c ScriptContext) DisplayName() string       { return "script " + c.Name }
func (c ScriptContext) ScopePath() (string, bool) { return "", false }

// HashFingerprinters builds sha256 fingerprinters for the known normalizations.
type HashFingerprinters struct{}

func (HashFingerprinters) Fingerprinter(normalization string) (Fingerprinter, error) {
	switch normalization {
	case NormalizeAbsolutePath, "":
		return hashFingerprinter{normalize: func(s string) string { return s }}, nil
	case NormalizeNameOnly:
		return hashFingerprinter{normalize: baseName}, nil
	case NormalizeIgnored:
		return hashFingerprinter{normalize: func(string) string { return "" }}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNormalization, normalization)
	}
}

type hashFingerprinter struct {
	normalize func(string) string
}

func (f hashFingerprinter) Fingerprint(inputs []string) (string, error) {
	normalized := make([]string, 0, len(inputs))
	for _, in := range inputs {
		normalized = append(normalized, f.normalize(in))
	}
	sort.Strings(normalized)
	sum := sha256.Sum256([]byte(strings.Join(normalized, "\x00")))
	return hex.EncodeToString(sum[:]), nil
}

func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
