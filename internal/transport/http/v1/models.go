package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/refinery/internal/domain"
)

// ListModels lists the backend's models.
// GET /api/v1/models
func (h *Handler) ListModels(c echo.Context) error {
	id := requestID(c)

	models, err := h.service.ListModels(c.Request().Context())
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamUnavailable) || errors.Is(err, domain.ErrUpstreamTimeout) {
			return c.JSON(http.StatusServiceUnavailable, domain.ErrorResponse{
				Error:     "service_unavailable",
				Message:   "language model backend is unavailable",
				RequestID: id,
			})
		}
		return h.writeError(c, id, err)
	}

	return c.JSON(http.StatusOK, models)
}
