package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/darp-registry/darp/internal/errs"
	"github.com/darp-registry/darp/pkg/types"
	"github.com/darp-registry/darp/pkg/version"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const (
	SearchURLsToolName = "search_urls"
	RoutingToolName    = "routing"
)

// newMCPServer builds the MCP server through which agents reach darp's search and routing.
func (s *Server) newMCPServer() *server.MCPServer {
	m := server.NewMCPServer(
		"darp",
		version.Version,
		server.WithToolCapabilities(false),
	)

	m.AddTool(
		mcp.NewTool(SearchURLsToolName,
			mcp.WithDescription("Return the urls of the registered MCP servers that can help with a request, most relevant first."),
			mcp.WithString("request", mcp.Required(), mcp.Description("What the user wants to do")),
		),
		s.searchURLsTool,
	)
	m.AddTool(
		mcp.NewTool(RoutingToolName,
			mcp.WithDescription("Fulfil a request using the tools of every registered MCP server and return the conversation."),
			mcp.WithString("request", mcp.Required(), mcp.Description("What the user wants to do")),
		),
		s.routingTool,
	)
	return m
}

func (s *Server) searchURLsTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	request, err := req.RequireString("request")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	urls, err := s.searchService.SearchURLs(ctx, request)
	if err != nil {
		s.logger.Warn("search_urls tool failed", zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonToolResult(urls)
}

// routingTool returns the conversation as JSON. When the turn limit is hit
// the partial conversation is returned as an error result.
func (s *Server) routingTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	request, err := req.RequireString("request")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	transcript, err := s.routingEngine.Route(ctx, request)
	if err != nil {
		s.logger.Warn("routing tool failed", zap.Error(err))
		var tle *errs.TurnLimitError
		if errors.As(err, &tle) {
			res, jerr := jsonToolResult(&types.RouteResponse{Conversation: tle.Transcript})
			if jerr != nil {
				return nil, jerr
			}
			res.IsError = true
			return res, nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonToolResult(&types.RouteResponse{Conversation: transcript})
}

func jsonToolResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
