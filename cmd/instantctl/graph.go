package main

import (
	"github.com/danmuck/instantgraph/internal/artifact"
	"github.com/danmuck/instantgraph/internal/workspace"
)

var demoScopes = []string{"app", "app:lib"}

// demoGraph builds compile -> bundle and bundle -> strip chains that share
// the bundle step, plus the compile step as its own root and a plain label.
func demoGraph(ws *workspace.Workspace) ([]any, error) {
	compileAction, err := artifact.NewActionTransformer("compile", artifact.Parameters{
		Values: map[string]string{"suffix": ".o"},
		Tags:   []string{"native"},
	}, true, artifact.NormalizeNameOnly)
	if err != nil {
		return nil, err
	}
	compile, err := ws.Step("app:lib", compileAction)
	if err != nil {
		return nil, err
	}

	bundleExpr, err := artifact.NewExpressionTransformer(`[input + ".a", input + ".so"]`)
	if err != nil {
		return nil, err
	}
	bundle, err := ws.Step("app", bundleExpr)
	if err != nil {
		return nil, err
	}

	strip, err := artifact.NewFilteredTransformer(`input.endsWith(".so")`, artifact.LegacyTransformer{
		Implementation: "Strip",
		Config:         []string{"--strip-debug"},
	})
	if err != nil {
		return nil, err
	}
	stripStep, err := ws.Step("app", strip)
	if err != nil {
		return nil, err
	}

	return []any{
		&artifact.Chain{First: compile, Second: bundle},
		&artifact.Chain{First: bundle, Second: stripStep},
		compile,
		"demo graph",
	}, nil
}
