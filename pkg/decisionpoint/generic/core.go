//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package generic serves the sentinel over a JSON/HTTP API.
package generic

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/manetu/datasentinel/internal/metrics"
	"github.com/manetu/datasentinel/pkg/common"
	"github.com/manetu/datasentinel/pkg/core"
	"github.com/manetu/datasentinel/pkg/decisionpoint"
	"github.com/manetu/datasentinel/pkg/decisionpoint/generic/api"
)

// APIKeyHeader carries the shared secret.
const APIKeyHeader = "X-API-Key"

// unauthenticated routes
var public = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Server represents a generic decision point server that serves the REST API.
type Server struct {
	echo *echo.Echo
}

// NewHandler builds the echo instance serving every route.  All routes except /health and
// /metrics require apiKey in the X-API-Key header.
func NewHandler(s core.Sentinel, apiKey string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.ErrorHandler

	e.Use(middleware.Recover())
	e.Use(metrics.Middleware())
	e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:" + APIKeyHeader,
		Skipper: func(c echo.Context) bool {
			return public[c.Path()]
		},
		Validator: func(key string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1, nil
		},
		ErrorHandler: func(_ error, _ echo.Context) error {
			return common.NewError(common.Unauthorized, "invalid or missing %s", APIKeyHeader)
		},
	}))

	api.RegisterHandlers(e, api.NewServer(s))
	e.GET("/metrics", metrics.Handler())

	return e
}

// CreateServer creates and starts a new generic decision point server.
func CreateServer(s core.Sentinel, port int, apiKey string) (decisionpoint.Server, error) {
	e := NewHandler(s, apiKey)

	// Start server in goroutine since e.Start() blocks
	go func() {
		if err := e.Start(fmt.Sprintf(":%d", port)); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal(err)
		}
	}()

	return &Server{
		echo: e,
	}, nil
}

// Stop gracefully stops the Server by shutting down the Echo HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
