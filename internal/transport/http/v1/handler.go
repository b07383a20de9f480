// Package v1 provides HTTP handlers for the orchestrator API.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sentinelmcp/orchestrator/internal/domain"
	"github.com/sentinelmcp/orchestrator/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Case lifecycle API
	e.POST("/v1/cases", h.StartCase)
	e.GET("/v1/cases/:case_id", h.GetCase)
	e.POST("/v1/cases/:case_id/resume", h.ResumeCase)
	e.POST("/v1/cases/:case_id/approval", h.SubmitApproval)
	e.POST("/v1/cases/:case_id/cancel", h.CancelCase)
	e.GET("/v1/cases/:case_id/events", h.GetCaseEvents)

	// Corpus API
	e.POST("/v1/documents", h.IngestDocument)
	e.POST("/v1/search", h.Search)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorResponse maps domain errors onto HTTP status codes.
func errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrCaseNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "case not found"})
	case errors.Is(err, domain.ErrCaseTerminal):
		return c.JSON(http.StatusConflict, map[string]string{"error": "case is in a terminal state"})
	case errors.Is(err, domain.ErrNoPendingApproval):
		return c.JSON(http.StatusConflict, map[string]string{"error": "case has no pending approval"})
	case errors.Is(err, domain.ErrStateCorrupted):
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "persisted case state is corrupted"})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
