package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/darp-registry/darp/internal/api"
	"github.com/darp-registry/darp/pkg/types"
	"github.com/darp-registry/darp/pkg/version"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// RouteViaMCP fulfils request by calling the registry's own "routing" MCP tool
// over streamable HTTP, the way an agent connected to the registry would.
// A conversation that ran out of turns is returned along with an error.
func (c *Client) RouteViaMCP(ctx context.Context, request string) ([]types.Message, error) {
	res, err := c.callMCPTool(ctx, api.RoutingToolName, request)
	if err != nil {
		return nil, err
	}

	text := toolResultText(res)
	var resp types.RouteResponse
	if jerr := json.Unmarshal([]byte(text), &resp); jerr != nil {
		if res.IsError {
			return nil, fmt.Errorf("routing failed: %s", text)
		}
		return nil, fmt.Errorf("failed to decode routing result: %w", jerr)
	}
	if res.IsError {
		return resp.Conversation, errors.New("routing stopped before the model produced a final answer")
	}
	return resp.Conversation, nil
}

func (c *Client) callMCPTool(ctx context.Context, name, request string) (*mcp.CallToolResult, error) {
	var opts []transport.StreamableHTTPCOption
	if c.accessToken != "" {
		opts = append(opts, transport.WithHTTPHeaders(map[string]string{
			"Authorization": "Bearer " + c.accessToken,
		}))
	}

	mc, err := mcpclient.NewStreamableHttpClient(c.baseURL+"/mcp", opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	defer mc.Close()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "darp-cli", Version: version.Version}
	if _, err := mc.Initialize(ctx, initReq); err != nil {
		return nil, fmt.Errorf("failed to initialize MCP session with %s: %w", c.baseURL, err)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = map[string]any{"request": request}
	res, err := mc.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to call tool %s: %w", name, err)
	}
	return res, nil
}

func toolResultText(res *mcp.CallToolResult) string {
	for _, content := range res.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			return tc.Text
		}
	}
	return ""
}
