package testhelpers

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ToolCallRecord is one call received by a fixture server.
type ToolCallRecord struct {
	Tool string
	Args map[string]any
}

// FixtureServer is an MCP server running on a local httptest server.
type FixtureServer struct {
	// URL is the endpoint to register in the catalog.
	URL string

	mu        sync.Mutex
	calls     []ToolCallRecord
	srv       *httptest.Server
	closeOnce sync.Once
}

// Calls returns the tool calls received so far.
func (f *FixtureServer) Calls() []ToolCallRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ToolCallRecord(nil), f.calls...)
}

// Close shuts the fixture down. Later sessions against URL fail to connect.
func (f *FixtureServer) Close() {
	f.closeOnce.Do(func() {
		f.srv.CloseClientConnections()
		f.srv.Close()
	})
}

func (f *FixtureServer) record(name string, args map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ToolCallRecord{Tool: name, Args: args})
}

// FixtureTool is a tool served by a fixture server.
type FixtureTool struct {
	Tool    mcp.Tool
	Handler server.ToolHandlerFunc
}

// StartSSEFixture serves the tools over SSE. The returned URL ends in /sse.
func StartSSEFixture(t *testing.T, name string, tools ...FixtureTool) *FixtureServer {
	t.Helper()
	f := &FixtureServer{}
	f.srv = server.NewTestServer(newFixtureMCPServer(f, name, tools))
	f.URL = f.srv.URL + "/sse"
	t.Cleanup(f.Close)
	return f
}

// StartStreamableFixture serves the tools over streamable HTTP. The returned URL ends in /mcp.
func StartStreamableFixture(t *testing.T, name string, tools ...FixtureTool) *FixtureServer {
	t.Helper()
	f := &FixtureServer{}
	f.srv = httptest.NewServer(server.NewStreamableHTTPServer(newFixtureMCPServer(f, name, tools)))
	f.URL = f.srv.URL + "/mcp"
	t.Cleanup(f.Close)
	return f
}

func newFixtureMCPServer(f *FixtureServer, name string, tools []FixtureTool) *server.MCPServer {
	s := server.NewMCPServer(name, "0.0.1", server.WithToolCapabilities(true))
	for _, ft := range tools {
		handler := ft.Handler
		toolName := ft.Tool.Name
		s.AddTool(ft.Tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			f.record(toolName, req.GetArguments())
			return handler(ctx, req)
		})
	}
	return s
}

// AddTool is `add(a, b)`, returning the sum as text.
func AddTool() FixtureTool {
	return FixtureTool{
		Tool: mcp.NewTool("add",
			mcp.WithDescription("Add two numbers"),
			mcp.WithNumber("a", mcp.Required(), mcp.Description("first operand")),
			mcp.WithNumber("b", mcp.Required(), mcp.Description("second operand")),
		),
		Handler: func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			a, err := req.RequireFloat("a")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			b, err := req.RequireFloat("b")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("%g", a+b)), nil
		},
	}
}

// ForecastTool is `forecast(city)`, always sunny.
func ForecastTool() FixtureTool {
	return FixtureTool{
		Tool: mcp.NewTool("forecast",
			mcp.WithDescription("Get the weather forecast for a city"),
			mcp.WithString("city", mcp.Required()),
		),
		Handler: func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			city, err := req.RequireString("city")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText("sunny in " + strings.ToLower(city)), nil
		},
	}
}

// FailingTool always reports a tool-level error.
func FailingTool(name string) FixtureTool {
	return FixtureTool{
		Tool: mcp.NewTool(name, mcp.WithDescription("Always fails")),
		Handler: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultError("tool exploded"), nil
		},
	}
}

// StartCalcServer starts the "calc" fixture advertising the single tool add(a, b).
func StartCalcServer(t *testing.T) *FixtureServer {
	return StartSSEFixture(t, "calc", AddTool())
}

// StartWeatherServer starts the "weather" fixture advertising forecast(city).
func StartWeatherServer(t *testing.T) *FixtureServer {
	return StartSSEFixture(t, "weather", ForecastTool())
}

// StartEmptyServer starts a fixture advertising no tools.
func StartEmptyServer(t *testing.T) *FixtureServer {
	return StartSSEFixture(t, "empty")
}
