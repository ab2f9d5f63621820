// Package policy evaluates generate requests against an OPA rego policy.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

const decisionQuery = "data.generate_policy.decision"

// Limits is exposed to policies as data.limits.
type Limits struct {
	MaxInputLength int      `json:"max_input_length"`
	MaxTurns       int      `json:"max_turns"`
	BlockedModels  []string `json:"blocked_models"`
}

// Input is the document a policy sees as input.
type Input struct {
	Input       string `json:"input"`
	InputLength int    `json:"input_length"`
	Model       string `json:"model"`
	MaxTurns    int    `json:"max_turns"`
}

// Decision is the policy verdict for one request.
type Decision struct {
	Allow  bool
	Reason string
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares policyContent together with limits.
func NewEngine(ctx context.Context, policyContent string, limits Limits) (*Engine, error) {
	limitsModule, err := limitsModule(limits)
	if err != nil {
		return nil, err
	}

	r := rego.New(
		rego.Query(decisionQuery),
		rego.Module("generate_policy.rego", policyContent),
		rego.Module("limits.rego", limitsModule),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// LoadEngine reads a policy from path, or uses DefaultPolicy when path is empty.
func LoadEngine(ctx context.Context, path string, limits Limits) (*Engine, error) {
	content := DefaultPolicy
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
		}
		content = string(data)
	}
	return NewEngine(ctx, content, limits)
}

// Evaluate checks one request. A policy that produces no decision allows it.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Allow: true}, nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("policy decision has unexpected type %T", results[0].Expressions[0].Value)
	}

	allow, ok := obj["allow"].(bool)
	if !ok {
		return Decision{}, fmt.Errorf("policy decision is missing a boolean allow field")
	}
	reason, _ := obj["reason"].(string)
	return Decision{Allow: allow, Reason: reason}, nil
}

func limitsModule(limits Limits) (string, error) {
	if limits.BlockedModels == nil {
		limits.BlockedModels = []string{}
	}
	blocked, err := json.Marshal(limits.BlockedModels)
	if err != nil {
		return "", fmt.Errorf("failed to encode blocked models: %w", err)
	}
	return fmt.Sprintf(`package limits

max_input_length = %d

max_turns = %d

blocked_models = %s
`, limits.MaxInputLength, limits.MaxTurns, blocked), nil
}

// DefaultPolicy denies requests outside the configured limits and requests
// for blocked models.
const DefaultPolicy = `
package generate_policy

deny[msg] {
	input.input_length > data.limits.max_input_length
	msg := sprintf("input exceeds %d characters", [data.limits.max_input_length])
}

deny[msg] {
	input.max_turns > data.limits.max_turns
	msg := sprintf("max_turns exceeds %d", [data.limits.max_turns])
}

deny[msg] {
	input.model == data.limits.blocked_models[_]
	msg := sprintf("model '%s' is blocked", [input.model])
}

decision = {"allow": count(deny) == 0, "reason": concat("; ", sort(deny))}
`
