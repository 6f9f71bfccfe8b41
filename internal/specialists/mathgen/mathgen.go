// Package mathgen implements the MathGeneratorAgent specialist:
// an envelope-conforming leaf that evaluates a small arithmetic expression
// (e.g. position-sizing or return math the reasoning step asked for) inside
// the core's restricted sandbox rather than trusting an external model's
// generated code to run unchecked (the "sandboxed math-generation
// snippets").
package mathgen

import (
	"context"

	"github.com/alphacouncil/core/internal/errkind"
	"github.com/alphacouncil/core/internal/sandbox"
)

// Agent is the MathGeneratorAgent specialist.
type Agent struct{}

func New() *Agent { return &Agent{} }

func (a *Agent) Name() string { return "math" }

// Analyze expects input{"expression": string, "vars": map[string]any}. The
// expression is evaluated in the restricted sandbox (internal/sandbox);
// generating the expression itself is an external collaborator's concern.
func (a *Agent) Analyze(_ context.Context, input map[string]any) (map[string]any, error) {
	expr, _ := input["expression"].(string)
	if expr == "" {
		return nil, errkind.New(errkind.ValidationError, "math specialist requires a non-empty expression")
	}
	vars, _ := input["vars"].(map[string]any)

	result, err := sandbox.Eval(expr, vars)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"expression": expr,
		"result":     result.Value,
	}, nil
}
