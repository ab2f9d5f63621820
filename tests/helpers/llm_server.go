// Package helpers provides shared test fixtures.
package helpers

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/refinery/internal/adapter/llm"
)

// Reply is what a FakeLLM returns for one chat completion.
type Reply struct {
	Content string
	Status  int
}

// FakeLLM is an OpenAI-compatible backend for tests.
type FakeLLM struct {
	*httptest.Server
	Models []string
	calls  atomic.Int64
}

// NewFakeLLM starts a backend serving models and answering chat completions
// with respond(systemPrompt, userPrompt). It is closed on test cleanup.
func NewFakeLLM(t *testing.T, models []string, respond func(system, user string) Reply) *FakeLLM {
	t.Helper()

	f := &FakeLLM{Models: models}
	e := echo.New()
	e.HideBanner = true

	e.GET("/v1/models", func(c echo.Context) error {
		data := make([]llm.Model, 0, len(f.Models))
		for _, id := range f.Models {
			data = append(data, llm.Model{ID: id, Object: "model", OwnedBy: "fake"})
		}
		return c.JSON(http.StatusOK, llm.ModelsResponse{Object: "list", Data: data})
	})

	e.POST("/v1/chat/completions", func(c echo.Context) error {
		f.calls.Add(1)
		var req llm.ChatCompletionRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, llm.ErrorResponse{Error: &llm.APIError{Message: err.Error(), Type: "invalid_request_error"}})
		}

		var system, user string
		for _, m := range req.Messages {
			switch m.Role {
			case "system":
				system = m.Content
			case "user":
				user = m.Content
			}
		}

		reply := respond(system, user)
		if reply.Status != 0 && reply.Status != http.StatusOK {
			return c.JSON(reply.Status, llm.ErrorResponse{Error: &llm.APIError{Message: reply.Content, Type: "api_error"}})
		}
		return c.JSON(http.StatusOK, llm.ChatCompletionResponse{
			ID:      "chatcmpl-fake",
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   req.Model,
			Choices: []llm.Choice{{
				Message:      &llm.ChatMessage{Role: "assistant", Content: reply.Content},
				FinishReason: "stop",
			}},
		})
	})

	f.Server = httptest.NewServer(e)
	t.Cleanup(f.Close)
	return f
}

// BaseURL is the URL to configure as LLM_BASE_URL.
func (f *FakeLLM) BaseURL() string {
	return f.URL + "/v1"
}

// Calls returns the number of chat completions served.
func (f *FakeLLM) Calls() int {
	return int(f.calls.Load())
}
