// Package http provides the HTTP server implementation for the orchestrator.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sentinelmcp/orchestrator/internal/service"
	v1 "github.com/sentinelmcp/orchestrator/internal/transport/http/v1"
)

// NewServer creates and configures the HTTP server. It handles case
// lifecycle, approvals, document ingest, and corpus search.
func NewServer(svc *service.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Handlers
	v1Handler := v1.NewHandler(svc)

	// Register Routes
	v1Handler.RegisterRoutes(e)

	return e
}
