// Package v1 provides the /api/v1 HTTP handlers.
package v1

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/xiaot623/gogo/refinery/internal/domain"
	"github.com/xiaot623/gogo/refinery/internal/service"
)

// Logger is the logging surface the handlers need.
type Logger interface {
	Errorj(j log.JSON)
}

type nopLogger struct{}

func (nopLogger) Errorj(log.JSON) {}

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	logger  Logger
}

// NewHandler creates a new handler. A nil logger discards output.
func NewHandler(service *service.Service, logger Logger) *Handler {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)

	api := e.Group("/api/v1")
	api.GET("/health", h.Health)
	api.GET("/models", h.ListModels)
	api.POST("/generate", h.Generate)
}

// Root describes the service.
// GET /
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, domain.RootResponse{
		Name:        "refinery",
		Version:     service.Version,
		Description: "Proposer/critic refinement over an OpenAI-compatible language model backend",
		Routes: map[string]string{
			"health":   "GET /api/v1/health",
			"models":   "GET /api/v1/models",
			"generate": "POST /api/v1/generate",
			"metrics":  "GET /metrics",
		},
	})
}

// Health returns health status. A degraded backend answers 503.
// GET /api/v1/health
func (h *Handler) Health(c echo.Context) error {
	health := h.service.Health(c.Request().Context())
	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, health)
}

// requestID returns the id the RequestID middleware assigned, falling back to
// the inbound header or a fresh uuid, and echoes it on the response.
func requestID(c echo.Context) string {
	id := c.Response().Header().Get(echo.HeaderXRequestID)
	if id == "" {
		id = c.Request().Header.Get(echo.HeaderXRequestID)
	}
	if id == "" {
		id = uuid.NewString()
	}
	c.Response().Header().Set(echo.HeaderXRequestID, id)
	return id
}
