package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/refinery/config"
	"github.com/xiaot623/gogo/refinery/internal/adapter/llm"
	"github.com/xiaot623/gogo/refinery/internal/domain"
	"github.com/xiaot623/gogo/refinery/internal/service"
)

func newTestHandler(t *testing.T, client llm.LLMClient, mutate func(*config.Config)) *Handler {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	policyEngine, err := service.NewPolicyEngine(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewPolicyEngine failed: %v", err)
	}
	return NewHandler(service.New(client, cfg, policyEngine, nil), nil)
}

func serveGenerate(h *Handler, body string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return rec, h.Generate(e.NewContext(req, rec))
}

func doGenerate(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec, err := serveGenerate(h, body)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) domain.ErrorResponse {
	t.Helper()
	var body domain.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

type unreachableClient struct{}

func (unreachableClient) CreateChatCompletion(context.Context, *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	return nil, domain.ErrUpstreamUnavailable
}

func (unreachableClient) ListModels(context.Context) ([]llm.Model, error) {
	return nil, domain.ErrUpstreamUnavailable
}

func TestGenerateSuccess(t *testing.T) {
	h := newTestHandler(t, llm.NewMockClient(), nil)

	rec := doGenerate(t, h, `{"input":"coffee shop","model":"mock-writer","max_turns":5,"verbose":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp domain.GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Artifact != "coffee shop (revised)" {
		t.Fatalf("unexpected artifact %q", resp.Artifact)
	}
	if resp.CompletionReason != domain.CompletionApproved {
		t.Fatalf("unexpected completion reason %q", resp.CompletionReason)
	}
	if resp.TurnCount != 2 || len(resp.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d/%d", resp.TurnCount, len(resp.Turns))
	}
	header := rec.Header().Get(echo.HeaderXRequestID)
	if header == "" || header != resp.RequestID {
		t.Fatalf("request id mismatch: header %q body %q", header, resp.RequestID)
	}
}

func TestGenerateKeepsInboundRequestID(t *testing.T) {
	h := newTestHandler(t, llm.NewMockClient(), nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewBufferString(`{"input":"tea"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(echo.HeaderXRequestID, "req-abc")
	rec := httptest.NewRecorder()
	if err := h.Generate(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if got := rec.Header().Get(echo.HeaderXRequestID); got != "req-abc" {
		t.Fatalf("expected req-abc, got %q", got)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"request_id":"req-abc"`)) {
		t.Fatalf("request id missing from body: %s", rec.Body.String())
	}
}

func TestGenerateUndecodableBody(t *testing.T) {
	h := newTestHandler(t, llm.NewMockClient(), nil)

	rec := doGenerate(t, h, `{"input": 42`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error != "invalid_request" {
		t.Fatalf("unexpected error code %q", body.Error)
	}
}

func TestGenerateFieldValidation(t *testing.T) {
	h := newTestHandler(t, llm.NewMockClient(), nil)

	rec := doGenerate(t, h, `{"input":"  ","max_turns":0}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if len(body.Fields) != 2 {
		t.Fatalf("expected 2 field errors, got %+v", body.Fields)
	}
	if body.RequestID == "" {
		t.Fatal("expected request id in error body")
	}
}

func TestGenerateInvalidModel(t *testing.T) {
	h := newTestHandler(t, llm.NewMockClient(), nil)

	rec := doGenerate(t, h, `{"input":"coffee","model":"gpt-9"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error != "invalid_model" {
		t.Fatalf("unexpected error code %q", body.Error)
	}
	if len(body.AvailableModels) != 2 {
		t.Fatalf("expected available models, got %v", body.AvailableModels)
	}
}

func TestGenerateBlockedByPolicy(t *testing.T) {
	h := newTestHandler(t, llm.NewMockClient(), func(c *config.Config) {
		c.BlockedModels = []string{"mock-writer"}
	})

	rec := doGenerate(t, h, `{"input":"coffee","model":"mock-writer"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error != "invalid_request" {
		t.Fatalf("unexpected error code %q", body.Error)
	}
}

func TestGenerateUpstreamUnavailable(t *testing.T) {
	h := newTestHandler(t, unreachableClient{}, nil)

	rec := doGenerate(t, h, `{"input":"coffee"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error != "service_unavailable" {
		t.Fatalf("unexpected error code %q", body.Error)
	}
}

func TestGenerateTimeout(t *testing.T) {
	client := llm.NewScriptedMockClient(func(req *llm.ChatCompletionRequest) (string, error) {
		time.Sleep(300 * time.Millisecond)
		return "late", nil
	})
	h := newTestHandler(t, client, func(c *config.Config) { c.GenerationTimeout = 50 * time.Millisecond })

	rec := doGenerate(t, h, `{"input":"coffee"}`)
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error != "generation_timeout" {
		t.Fatalf("unexpected error code %q", body.Error)
	}
}

func TestGenerateArtifactBoundsIsInternal(t *testing.T) {
	client := llm.NewScriptedMockClient(func(req *llm.ChatCompletionRequest) (string, error) {
		return "   ", nil
	})
	h := newTestHandler(t, client, nil)

	rec := doGenerate(t, h, `{"input":"coffee"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error != "internal_error" || body.Message != "an unexpected error occurred" {
		t.Fatalf("internal detail leaked: %+v", body)
	}
}

func TestGenerateQueued(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	client := llm.NewScriptedMockClient(func(req *llm.ChatCompletionRequest) (string, error) {
		once.Do(func() { close(started) })
		<-release
		return "SHIP IT!", nil
	})
	h := newTestHandler(t, client, func(c *config.Config) { c.MaxConcurrent = 1 })

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec, _ := serveGenerate(h, `{"input":"coffee"}`)
		first <- rec
	}()
	<-started

	rec := doGenerate(t, h, `{"input":"coffee"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var queued domain.QueuedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &queued); err != nil {
		t.Fatalf("decode queued: %v", err)
	}
	if queued.Status != domain.QueuedStatus || queued.EstimatedWaitSeconds < 0 {
		t.Fatalf("unexpected queued body %+v", queued)
	}
	if queued.RequestID != rec.Header().Get(echo.HeaderXRequestID) {
		t.Fatalf("request id mismatch")
	}

	close(release)
	if got := (<-first).Code; got != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", got)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		client llm.LLMClient
		want   int
	}{
		{"healthy", llm.NewMockClient(), http.StatusOK},
		{"degraded", unreachableClient{}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.client, nil)
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), rec)

			if err := h.Health(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestListModels(t *testing.T) {
	h := newTestHandler(t, llm.NewMockClient(), nil)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/models", nil), rec)

	if err := h.ListModels(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp domain.ModelsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode models: %v", err)
	}
	if resp.Count != 2 || resp.DefaultModel != "llama3.2:latest" {
		t.Fatalf("unexpected models response %+v", resp)
	}
}

func TestListModelsUnavailable(t *testing.T) {
	h := newTestHandler(t, unreachableClient{}, nil)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/models", nil), rec)

	if err := h.ListModels(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRoot(t *testing.T) {
	h := newTestHandler(t, llm.NewMockClient(), nil)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if err := h.Root(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp domain.RootResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode root: %v", err)
	}
	if resp.Version != service.Version || resp.Routes["generate"] != "POST /api/v1/generate" {
		t.Fatalf("unexpected root response %+v", resp)
	}
}
