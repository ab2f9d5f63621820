package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = Limits{MaxInputLength: 500, MaxTurns: 10, BlockedModels: []string{"banned:latest"}}

func TestDefaultPolicyAllows(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy, testLimits)
	require.NoError(t, err)

	decision, err := engine.Evaluate(ctx, Input{Input: "coffee shop", InputLength: 11, Model: "llama3.2:latest", MaxTurns: 5})
	require.NoError(t, err)
	assert.True(t, decision.Allow)
	assert.Empty(t, decision.Reason)
}

func TestDefaultPolicyDenies(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy, testLimits)
	require.NoError(t, err)

	tests := []struct {
		name   string
		input  Input
		reason string
	}{
		{"blocked model", Input{Input: "x", InputLength: 1, Model: "banned:latest", MaxTurns: 1}, "model 'banned:latest' is blocked"},
		{"too many turns", Input{Input: "x", InputLength: 1, Model: "m", MaxTurns: 11}, "max_turns exceeds 10"},
		{"input too long", Input{Input: "x", InputLength: 501, Model: "m", MaxTurns: 1}, "input exceeds 500 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := engine.Evaluate(ctx, tt.input)
			require.NoError(t, err)
			assert.False(t, decision.Allow)
			assert.Equal(t, tt.reason, decision.Reason)
		})
	}
}

func TestDefaultPolicyNilBlockedModels(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy, Limits{MaxInputLength: 500, MaxTurns: 10})
	require.NoError(t, err)

	decision, err := engine.Evaluate(ctx, Input{Input: "x", InputLength: 1, Model: "m", MaxTurns: 1})
	require.NoError(t, err)
	assert.True(t, decision.Allow)
}

func TestLoadEngineFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.rego")
	content := `
package generate_policy

default decision = {"allow": true, "reason": ""}

decision = {"allow": false, "reason": "no coffee"} {
	contains(lower(input.input), "coffee")
}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ctx := context.Background()
	engine, err := LoadEngine(ctx, path, testLimits)
	require.NoError(t, err)

	decision, err := engine.Evaluate(ctx, Input{Input: "Coffee shop", InputLength: 11, Model: "m", MaxTurns: 1})
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	assert.Equal(t, "no coffee", decision.Reason)

	decision, err = engine.Evaluate(ctx, Input{Input: "tea house", InputLength: 9, Model: "m", MaxTurns: 1})
	require.NoError(t, err)
	assert.True(t, decision.Allow)
}

func TestLoadEngineDefaultsWithoutPath(t *testing.T) {
	engine, err := LoadEngine(context.Background(), "", testLimits)
	require.NoError(t, err)
	assert.NotNil(t, engine)
}

func TestLoadEngineMissingFile(t *testing.T) {
	_, err := LoadEngine(context.Background(), filepath.Join(t.TempDir(), "nope.rego"), testLimits)
	assert.Error(t, err)
}

func TestNewEngineRejectsInvalidRego(t *testing.T) {
	_, err := NewEngine(context.Background(), "package generate_policy\n\ndecision = {", testLimits)
	assert.Error(t, err)
}

func TestPolicyWithoutDecisionAllows(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, "package generate_policy\n\nunrelated = true\n", testLimits)
	require.NoError(t, err)

	decision, err := engine.Evaluate(ctx, Input{Input: "x", InputLength: 1, Model: "m", MaxTurns: 1})
	require.NoError(t, err)
	assert.True(t, decision.Allow)
}
