// Package mcp talks to the upstream MCP servers registered in the darp catalog.
// Every operation opens a fresh session, runs, and tears the session down.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/darp-registry/darp/internal/errs"
	"github.com/darp-registry/darp/internal/telemetry"
	"github.com/darp-registry/darp/pkg/types"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

const (
	DefaultInitReqTimeout  = 10 * time.Second
	DefaultToolCallTimeout = 30 * time.Second
)

// ServiceConfig holds the configuration parameters for initializing the SessionClient.
type ServiceConfig struct {
	Logger  *zap.Logger
	Metrics telemetry.CustomMetrics

	// InitReqTimeout bounds the session handshake.
	InitReqTimeout time.Duration
	// ToolCallTimeout bounds a single tools/list or tools/call after the handshake.
	ToolCallTimeout time.Duration
}

// SessionClient discovers and invokes tools of upstream MCP servers.
// It holds no session state between calls and is safe for concurrent use.
type SessionClient struct {
	logger  *zap.Logger
	metrics telemetry.CustomMetrics

	initReqTimeout  time.Duration
	toolCallTimeout time.Duration
}

// NewSessionClient creates a new instance of SessionClient.
func NewSessionClient(c *ServiceConfig) *SessionClient {
	s := &SessionClient{
		logger:          c.Logger,
		metrics:         c.Metrics,
		initReqTimeout:  c.InitReqTimeout,
		toolCallTimeout: c.ToolCallTimeout,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = telemetry.NewNoopCustomMetrics()
	}
	if s.initReqTimeout <= 0 {
		s.initReqTimeout = DefaultInitReqTimeout
	}
	if s.toolCallTimeout <= 0 {
		s.toolCallTimeout = DefaultToolCallTimeout
	}
	return s
}

// DiscoverTools lists the tools currently exposed by the server at serverURL, in the order it reports them.
// Any failure is returned as an *errs.DiscoveryError.
func (s *SessionClient) DiscoverTools(
	ctx context.Context, t types.McpServerTransport, serverURL string,
) ([]types.Tool, error) {
	started := time.Now()
	outcome := telemetry.OutcomeError
	var tools []types.Tool

	defer func() {
		s.metrics.RecordDiscovery(ctx, serverURL, outcome, len(tools), time.Since(started))
	}()

	fail := func(err error) ([]types.Tool, error) {
		s.logger.Error("tool discovery failed",
			zap.String("url", serverURL),
			zap.String("transport", string(t)),
			zap.Error(err),
		)
		return nil, &errs.DiscoveryError{URL: serverURL, Err: err}
	}

	c, err := newMcpServerSession(ctx, t, serverURL, s.initReqTimeout)
	if err != nil {
		return fail(err)
	}
	defer c.Close()

	listCtx, cancel := context.WithTimeout(ctx, s.toolCallTimeout)
	defer cancel()

	resp, err := c.ListTools(listCtx, mcp.ListToolsRequest{})
	if err != nil {
		return fail(fmt.Errorf("failed to fetch tools: %w", err))
	}

	tools = make([]types.Tool, 0, len(resp.Tools))
	for _, mt := range resp.Tools {
		tool, err := convertMcpTool(mt)
		if err != nil {
			return fail(err)
		}
		tools = append(tools, tool)
	}

	s.logger.Debug("discovered tools", zap.String("url", serverURL), zap.Int("count", len(tools)))
	outcome = telemetry.OutcomeSuccess
	return tools, nil
}
