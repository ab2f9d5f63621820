package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/xiaot623/gogo/refinery/internal/domain"
)

// Generate runs one refinement session.
// POST /api/v1/generate
func (h *Handler) Generate(c echo.Context) error {
	id := requestID(c)

	var req domain.GenerateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, domain.ErrorResponse{
			Error:     "invalid_request",
			Message:   "request body must be a JSON object with a string input field",
			RequestID: id,
		})
	}

	result, err := h.service.Generate(c.Request().Context(), id, req)
	if err != nil {
		return h.writeError(c, id, err)
	}

	if result.Queued != nil {
		return c.JSON(http.StatusAccepted, result.Queued)
	}
	return c.JSON(http.StatusOK, result.Response)
}

// writeError maps err onto a status and error body. Unexpected errors are
// logged in full and reported generically.
func (h *Handler) writeError(c echo.Context, id string, err error) error {
	body := domain.ErrorResponse{
		Error:     domain.ErrorCode(err),
		Message:   err.Error(),
		RequestID: id,
	}

	var validationErr *domain.ValidationError
	var modelErr *domain.InvalidModelError
	switch {
	case errors.As(err, &validationErr):
		body.Message = "request validation failed"
		body.Fields = validationErr.Fields
		return c.JSON(http.StatusUnprocessableEntity, body)
	case errors.As(err, &modelErr):
		body.AvailableModels = modelErr.Available
		return c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, domain.ErrInvalidParameter):
		return c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		body.Message = "language model backend is unavailable"
		return c.JSON(http.StatusServiceUnavailable, body)
	case errors.Is(err, domain.ErrGenerationTimeout), errors.Is(err, domain.ErrUpstreamTimeout):
		body.Message = "generation did not finish in time"
		return c.JSON(http.StatusGatewayTimeout, body)
	default:
		h.logger.Errorj(log.JSON{
			"event":      "unexpected_error",
			"request_id": id,
			"path":       c.Path(),
			"error":      err.Error(),
		})
		body.Error = "internal_error"
		body.Message = "an unexpected error occurred"
		return c.JSON(http.StatusInternalServerError, body)
	}
}
