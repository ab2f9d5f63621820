package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/refinery/config"
	"github.com/xiaot623/gogo/refinery/internal/adapter/llm"
	"github.com/xiaot623/gogo/refinery/internal/domain"
	"github.com/xiaot623/gogo/refinery/internal/service"
	"github.com/xiaot623/gogo/refinery/tests/helpers"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *echo.Echo {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	policyEngine, err := service.NewPolicyEngine(context.Background(), cfg)
	require.NoError(t, err)
	return NewServer(service.New(llm.NewMockClient(), cfg, policyEngine, nil), cfg, nil)
}

func TestServerAssignsRequestID(t *testing.T) {
	e := newTestServer(t, nil)

	req := httptest.NewRequest(stdhttp.MethodPost, "/api/v1/generate", bytes.NewBufferString(`{"input":"coffee shop"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var resp domain.GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	header := rec.Header().Get(echo.HeaderXRequestID)
	assert.Len(t, header, 36)
	assert.Equal(t, header, resp.RequestID)
}

func TestServerRoutes(t *testing.T) {
	e := newTestServer(t, nil)

	for _, path := range []string{"/", "/api/v1/health", "/api/v1/models", "/metrics"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, path, nil))
		assert.Equal(t, stdhttp.StatusOK, rec.Code, path)
	}
}

func TestServerMetricsDisabled(t *testing.T) {
	e := newTestServer(t, func(c *config.Config) { c.MetricsEnabled = false })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/metrics", nil))
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
}

func TestServerCORS(t *testing.T) {
	e := newTestServer(t, func(c *config.Config) { c.CORSOrigins = []string{"https://app.example"} })

	req := httptest.NewRequest(stdhttp.MethodGet, "/api/v1/health", nil)
	req.Header.Set(echo.HeaderOrigin, "https://app.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestServerEndToEndWithBackend(t *testing.T) {
	backend := helpers.NewFakeLLM(t, []string{"llama3.2:latest"}, func(system, user string) helpers.Reply {
		if strings.HasPrefix(user, "Review") {
			if strings.Contains(user, "Wake Up and Brew") {
				return helpers.Reply{Content: "SHIP IT!"}
			}
			return helpers.Reply{Content: "Needs more energy"}
		}
		if strings.Contains(user, "Feedback:") {
			return helpers.Reply{Content: "Wake Up and Brew"}
		}
		return helpers.Reply{Content: "Brew Perfection"}
	})

	cfg := config.Default()
	cfg.LLMBaseURL = backend.BaseURL()
	policyEngine, err := service.NewPolicyEngine(context.Background(), cfg)
	require.NoError(t, err)
	client := llm.NewClient(cfg.LLMBaseURL, "", cfg.LLMTimeout)
	e := NewServer(service.New(client, cfg, policyEngine, nil), cfg, nil)

	req := httptest.NewRequest(stdhttp.MethodPost, "/api/v1/generate",
		bytes.NewBufferString(`{"input":"coffee shop","model":"llama3.2:latest","max_turns":5}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var resp domain.GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Wake Up and Brew", resp.Artifact)
	assert.Equal(t, domain.CompletionApproved, resp.CompletionReason)
	assert.Equal(t, 2, resp.TurnCount)
	assert.Equal(t, 4, backend.Calls())
}

func TestServerBackendDown(t *testing.T) {
	backend := helpers.NewFakeLLM(t, nil, func(system, user string) helpers.Reply {
		return helpers.Reply{Content: "overloaded", Status: stdhttp.StatusServiceUnavailable}
	})

	cfg := config.Default()
	cfg.LLMBaseURL = backend.BaseURL()
	client := llm.NewClient(cfg.LLMBaseURL, "", cfg.LLMTimeout)
	e := NewServer(service.New(client, cfg, nil, nil), cfg, nil)

	req := httptest.NewRequest(stdhttp.MethodPost, "/api/v1/generate", bytes.NewBufferString(`{"input":"coffee shop"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"service_unavailable"`)
}
