package llm

import (
	"context"
	"errors"
	"testing"
)

func TestMockClientDefaultScript(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	draft := complete(t, client, "coffee shop")
	if draft != "coffee shop" {
		t.Fatalf("unexpected draft %q", draft)
	}
	review := complete(t, client, "Review this candidate:\n\n"+draft)
	if review == "SHIP IT!" {
		t.Fatalf("first draft should not be approved")
	}

	revised := complete(t, client, "coffee shop\n\nPrevious attempt: coffee shop\nFeedback: "+review)
	approval := complete(t, client, "Review this candidate:\n\n"+revised)
	if approval != "SHIP IT!" {
		t.Fatalf("expected approval of revision, got %q", approval)
	}

	if client.Calls() != 4 {
		t.Fatalf("expected 4 calls, got %d", client.Calls())
	}

	models, err := client.ListModels(ctx)
	if err != nil || len(models) == 0 {
		t.Fatalf("expected mock models, got %v (%v)", models, err)
	}
}

func TestMockClientScriptedError(t *testing.T) {
	boom := errors.New("boom")
	client := NewScriptedMockClient(func(req *ChatCompletionRequest) (string, error) {
		return "", boom
	})
	_, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{Model: "m"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected scripted error, got %v", err)
	}
}

func TestMockClientHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockClient().CreateChatCompletion(ctx, &ChatCompletionRequest{Model: "m"}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestNewLLMClientMode(t *testing.T) {
	if _, ok := NewLLMClient("mock", "", "", 0).(*MockClient); !ok {
		t.Fatalf("expected mock client")
	}
	if _, ok := NewLLMClient("", "http://localhost", "", 0).(*Client); !ok {
		t.Fatalf("expected http client")
	}
}

func complete(t *testing.T, client LLMClient, prompt string) string {
	t.Helper()
	resp, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model: "mock-writer",
		Messages: []ChatMessage{
			{Role: "system", Content: "system"},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion failed: %v", err)
	}
	content, err := resp.Content()
	if err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	return content
}
