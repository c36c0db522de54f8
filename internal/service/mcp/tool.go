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

// Target identifies the server a tool call is dispatched to.
type Target struct {
	// Server is the catalog name, used for logs and metrics only.
	Server    string
	URL       string
	Transport types.McpServerTransport
}

// InvokeTool calls a tool on the target server and returns its response.
// A tool that reports IsError is not a failure here, its result is returned as-is.
// Connection, handshake and protocol failures are returned as an *errs.DispatchError.
func (s *SessionClient) InvokeTool(
	ctx context.Context, target Target, toolName string, args map[string]any,
) (*types.ToolInvokeResult, error) {
	started := time.Now()
	outcome := telemetry.ToolCallOutcomeError

	// record the tool call metrics when the function returns
	defer func() {
		s.metrics.RecordToolCall(ctx, target.Server, toolName, outcome, time.Since(started))
	}()

	fail := func(err error) (*types.ToolInvokeResult, error) {
		s.logger.Warn("tool call failed",
			zap.String("server", target.Server),
			zap.String("url", target.URL),
			zap.String("tool", toolName),
			zap.Error(err),
		)
		return nil, &errs.DispatchError{Server: target.Server, Tool: toolName, Err: err}
	}

	c, err := newMcpServerSession(ctx, target.Transport, target.URL, s.initReqTimeout)
	if err != nil {
		return fail(err)
	}
	defer c.Close()

	callCtx, cancel := context.WithTimeout(ctx, s.toolCallTimeout)
	defer cancel()

	callToolReq := mcp.CallToolRequest{}
	callToolReq.Params.Name = toolName
	callToolReq.Params.Arguments = args

	callToolResp, err := c.CallTool(callCtx, callToolReq)
	if err != nil {
		return fail(fmt.Errorf("failed to call tool %s on MCP server %s: %w", toolName, target.URL, err))
	}

	result, err := convertToolCallResToAPIRes(callToolResp)
	if err != nil {
		return fail(fmt.Errorf("failed to convert MCP response to api response: %w", err))
	}

	outcome = telemetry.ToolCallOutcomeSuccess
	return result, nil
}
