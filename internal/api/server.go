// Package api provides the HTTP API and the MCP endpoint of the darp registry.
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/darp-registry/darp/internal/service/catalog"
	"github.com/darp-registry/darp/internal/service/router"
	"github.com/darp-registry/darp/internal/service/search"
	"github.com/darp-registry/darp/internal/telemetry"
	"github.com/darp-registry/darp/pkg/types"
	"github.com/darp-registry/darp/pkg/version"
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	V0PathPrefix    = "/v0"
	V0ApiPathPrefix = "/api" + V0PathPrefix
)

type ServerOptions struct {
	// Port is the HTTP port to bind the server to
	Port string

	CatalogService *catalog.Service
	SearchService  *search.Service
	RoutingEngine  *router.Engine

	Logger        *zap.Logger
	OtelProviders *telemetry.Providers
}

// Server represents the darp registry server that handles API and MCP requests
type Server struct {
	port   string
	router *gin.Engine

	catalogService *catalog.Service
	searchService  *search.Service
	routingEngine  *router.Engine

	// mcpServer exposes search and routing as MCP tools
	mcpServer *server.MCPServer

	logger        *zap.Logger
	otelProviders *telemetry.Providers
}

// NewServer initializes a new Gin server for the darp registry
func NewServer(opts *ServerOptions) (*Server, error) {
	if opts.CatalogService == nil || opts.SearchService == nil || opts.RoutingEngine == nil {
		return nil, errors.New("catalog, search and routing services are required")
	}
	s := &Server{
		port:           opts.Port,
		catalogService: opts.CatalogService,
		searchService:  opts.SearchService,
		routingEngine:  opts.RoutingEngine,
		logger:         opts.Logger,
		otelProviders:  opts.OtelProviders,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.mcpServer = s.newMCPServer()

	r, err := s.setupRouter()
	if err != nil {
		return nil, err
	}
	s.router = r

	return s, nil
}

// Handler returns the root http handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the Gin server (blocking call)
func (s *Server) Start() error {
	if err := s.router.Run(":" + s.port); err != nil {
		return fmt.Errorf("failed to run the server: %w", err)
	}
	return nil
}

// setupRouter sets up the Gin router with the MCP endpoint and API endpoints.
func (s *Server) setupRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	// if otel is enabled, setup prometheus metrics endpoint
	if s.otelProviders.IsEnabled() {
		r.Use(otelgin.Middleware(s.otelProviders.ServiceName()))
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.GET(
		"/health",
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		},
	)

	r.GET(
		"/metadata",
		func(c *gin.Context) {
			c.JSON(http.StatusOK, &types.ServerMetadata{Version: version.Version})
		},
	)

	// MCP endpoint over streamable http on /mcp
	streamableHTTPServer := server.NewStreamableHTTPServer(s.mcpServer)
	r.Any("/mcp", gin.WrapH(streamableHTTPServer))

	// and over SSE on /sse + /message
	sseServer := server.NewSSEServer(s.mcpServer)
	r.Any("/sse", gin.WrapH(sseServer.SSEHandler()))
	r.Any("/message", gin.WrapH(sseServer.MessageHandler()))

	apiV0 := r.Group(V0ApiPathPrefix)
	{
		apiV0.POST("/servers", s.createServerHandler())
		apiV0.GET("/servers", s.listServersHandler())
		apiV0.GET("/servers/search", s.searchServersHandler())
		apiV0.GET("/servers/:id", s.getServerHandler())
		apiV0.PUT("/servers/:id", s.updateServerHandler())
		apiV0.DELETE("/servers/:id", s.deleteServerHandler())

		apiV0.GET("/search/urls", s.searchURLsHandler())
		apiV0.POST("/route", s.routeHandler())
	}

	return r, nil
}

// requestLogger logs every request at debug level, and failed ones at warn.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Warn("request failed", fields...)
			return
		}
		s.logger.Debug("request served", fields...)
	}
}
