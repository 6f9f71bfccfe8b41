package mathgen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asFloat(t *testing.T, v any) float64 {
	t.Helper()
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		t.Fatalf("unexpected numeric type %T", v)
		return 0
	}
}

func TestAnalyze_EvaluatesExpression(t *testing.T) {
	a := New()
	out, err := a.Analyze(context.Background(), map[string]any{
		"expression": "2 + 2",
	})
	require.NoError(t, err)
	assert.Equal(t, 4.0, asFloat(t, out["result"]))
}

func TestAnalyze_UsesVars(t *testing.T) {
	a := New()
	out, err := a.Analyze(context.Background(), map[string]any{
		"expression": "shares * price",
		"vars":       map[string]any{"shares": 10.0, "price": 25.5},
	})
	require.NoError(t, err)
	assert.Equal(t, 255.0, asFloat(t, out["result"]))
}

func TestAnalyze_RejectsEmptyExpression(t *testing.T) {
	a := New()
	_, err := a.Analyze(context.Background(), map[string]any{"expression": ""})
	require.Error(t, err)
}

func TestAnalyze_RejectsBlockedIdentifier(t *testing.T) {
	a := New()
	_, err := a.Analyze(context.Background(), map[string]any{
		"expression": "require('fs')",
	})
	require.Error(t, err)
}
