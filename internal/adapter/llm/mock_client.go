package llm

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Responder produces the mock completion text for a request.
type Responder func(req *ChatCompletionRequest) (string, error)

// MockClient is a mock implementation of LLMClient for offline runs and tests.
type MockClient struct {
	respond Responder
	models  []Model
	calls   atomic.Int64
}

// NewMockClient creates a mock client with the default writer/reviewer script:
// first drafts are critiqued, revisions are approved.
func NewMockClient() *MockClient {
	return NewScriptedMockClient(defaultResponder)
}

// NewScriptedMockClient creates a mock client that answers with respond.
func NewScriptedMockClient(respond Responder) *MockClient {
	now := time.Now().Unix()
	return &MockClient{
		respond: respond,
		models: []Model{
			{ID: "mock-writer", Object: "model", Created: now, OwnedBy: "mock"},
			{ID: "mock-reviewer", Object: "model", Created: now, OwnedBy: "mock"},
		},
	}
}

// Ensure MockClient implements LLMClient interface.
var _ LLMClient = (*MockClient)(nil)

// Calls returns how many completions were served.
func (m *MockClient) Calls() int {
	return int(m.calls.Load())
}

// CreateChatCompletion returns a scripted response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.calls.Add(1)

	content, err := m.respond(req)
	if err != nil {
		return nil, err
	}

	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index: 0,
				Message: &ChatMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
		Usage: &Usage{
			PromptTokens:     estimateTokens(req),
			CompletionTokens: len(content) / 4,
			TotalTokens:      estimateTokens(req) + len(content)/4,
		},
	}, nil
}

// ListModels returns a list of mock models.
func (m *MockClient) ListModels(ctx context.Context) ([]Model, error) {
	return m.models, nil
}

const mockRevisionTag = "(revised)"

func defaultResponder(req *ChatCompletionRequest) (string, error) {
	prompt := lastUserMessage(req)
	if strings.HasPrefix(prompt, "Review") {
		if strings.Contains(prompt, mockRevisionTag) {
			return "SHIP IT!", nil
		}
		return "Needs more energy. Make it punchier and more specific.", nil
	}

	task := firstLine(prompt)
	if strings.Contains(prompt, "Feedback:") {
		return truncate(fmt.Sprintf("%s %s", task, mockRevisionTag), 200), nil
	}
	return truncate(task, 200), nil
}

func lastUserMessage(req *ChatCompletionRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return "[MOCK] artifact"
}

// estimateTokens provides a rough token count estimate.
func estimateTokens(req *ChatCompletionRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	return total
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
