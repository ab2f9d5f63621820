// Package agent provides the writer (proposer) and reviewer (critic) roles
// backed by an LLM client.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/gogo/refinery/internal/adapter/llm"
	"github.com/xiaot623/gogo/refinery/internal/domain"
	"github.com/xiaot623/gogo/refinery/internal/observability"
)

// Options tunes sampling for every call a role makes.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Role is one side of the refinement exchange: a system prompt bound to a
// backend client.
type Role struct {
	name         domain.AgentRole
	systemPrompt string
	client       llm.LLMClient
	opts         Options
}

func newRole(name domain.AgentRole, systemPrompt string, client llm.LLMClient, opts Options) *Role {
	return &Role{
		name:         name,
		systemPrompt: systemPrompt,
		client:       client,
		opts:         opts,
	}
}

// Name returns the role name.
func (r *Role) Name() domain.AgentRole {
	return r.name
}

// complete sends one system+user exchange and returns the raw completion text.
func (r *Role) complete(ctx context.Context, model, prompt string) (string, error) {
	req := &llm.ChatCompletionRequest{
		Model: model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: r.systemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	if r.opts.Temperature > 0 {
		temperature := r.opts.Temperature
		req.Temperature = &temperature
	}
	if r.opts.MaxTokens > 0 {
		maxTokens := r.opts.MaxTokens
		req.MaxTokens = &maxTokens
	}

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err == nil {
		var content string
		content, err = resp.Content()
		if err == nil {
			observability.RecordLLMCall(string(r.name), model, "success", int(time.Since(start).Milliseconds()))
			return content, nil
		}
	}
	observability.RecordLLMCall(string(r.name), model, "error", int(time.Since(start).Milliseconds()))
	return "", fmt.Errorf("%s call failed: %w", r.name, err)
}

// Writer generates candidate artifacts.
type Writer struct {
	*Role
}

// NewWriter creates the proposer role.
func NewWriter(client llm.LLMClient, opts Options) *Writer {
	return &Writer{Role: newRole(domain.RoleProposer, WriterPrompt, client, opts)}
}

// Propose returns the writer's candidate for the prompt.
func (w *Writer) Propose(ctx context.Context, model, prompt string) (string, error) {
	return w.complete(ctx, model, prompt)
}

// Reviewer evaluates candidate artifacts.
type Reviewer struct {
	*Role
}

// NewReviewer creates the critic role.
func NewReviewer(client llm.LLMClient, opts Options) *Reviewer {
	return &Reviewer{Role: newRole(domain.RoleCritic, ReviewerPrompt, client, opts)}
}

// Critique returns the reviewer's raw verdict for the prompt.
func (r *Reviewer) Critique(ctx context.Context, model, prompt string) (string, error) {
	return r.complete(ctx, model, prompt)
}

// WriterPrompt is the writer's system prompt.
var WriterPrompt = strings.TrimSpace(`
You are a creative slogan writer for marketing campaigns.

Your role:
- Generate catchy, memorable slogans based on the user's product/service description
- Incorporate any feedback from the reviewer to improve your slogans
- Keep slogans under 100 characters when possible
- Focus on emotional appeal and memorability

When you receive feedback, revise your slogan to address the reviewer's concerns.

Output only the slogan text, nothing else.`)

// ReviewerPrompt is the reviewer's system prompt.
var ReviewerPrompt = strings.TrimSpace(`
You are a marketing slogan reviewer with high standards.

Evaluate each slogan for creativity, clarity, relevance to the product, concision,
emotional appeal and uniqueness.

Response rules:
1. If the slogan needs ANY improvement, provide ONLY specific, constructive feedback.
   Do not include "SHIP IT!" anywhere.
2. If the slogan is excellent and meets all criteria, respond with ONLY "SHIP IT!".
3. Never mix feedback with approval.`)
