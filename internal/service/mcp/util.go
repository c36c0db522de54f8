package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/darp-registry/darp/pkg/types"
	"github.com/darp-registry/darp/pkg/version"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

const clientName = "darp"

// isLoopbackURL returns true if rawURL resolves to a loopback address.
// It assumes that rawURL is a valid URL.
func isLoopbackURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()

	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}

	return false
}

func newInitializeRequest(protocolVersion string) mcp.InitializeRequest {
	return mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo:      mcp.Implementation{Name: clientName, Version: version.Version},
		},
	}
}

// explainInitError turns the common handshake failures into messages a user can act on.
func explainInitError(err error, serverURL string, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("initialization request to MCP server timed out after %s", timeout)
	}
	if errors.Is(err, syscall.ECONNREFUSED) && isLoopbackURL(serverURL) {
		return fmt.Errorf(
			"connection to the MCP server %s was refused. "+
				"If darp is running inside Docker, use 'host.docker.internal' as your MCP server's hostname",
			serverURL,
		)
	}
	return fmt.Errorf("failed to initialize connection with MCP server: %w", err)
}

// createHTTPMcpServerConn opens a session with a streamable http MCP server.
func createHTTPMcpServerConn(ctx context.Context, serverURL string, initTimeout time.Duration) (*client.Client, error) {
	c, err := client.NewStreamableHttpClient(serverURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create streamable HTTP client for MCP server: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	if _, err = c.Initialize(initCtx, newInitializeRequest(mcp.LATEST_PROTOCOL_VERSION)); err != nil {
		_ = c.Close()
		return nil, explainInitError(err, serverURL, initTimeout)
	}
	return c, nil
}

// createSSEMcpServerConn opens a session with an SSE transport-based MCP server.
func createSSEMcpServerConn(ctx context.Context, serverURL string, initTimeout time.Duration) (*client.Client, error) {
	c, err := client.NewSSEMCPClient(serverURL, transport.WithHeaders(map[string]string{
		"User-Agent": clientName + "/" + version.Version,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create SSE client for MCP server: %w", err)
	}

	// the SSE stream lives as long as the session, only the handshake is bounded
	if err = c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, explainInitError(fmt.Errorf("failed to start SSE transport: %w", err), serverURL, initTimeout)
	}

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	if _, err = c.Initialize(initCtx, newInitializeRequest("2024-11-05")); err != nil {
		_ = c.Close()
		return nil, explainInitError(err, serverURL, initTimeout)
	}
	return c, nil
}

// newMcpServerSession opens a fresh session using the transport the server was registered with.
// The caller must close the returned client.
func newMcpServerSession(
	ctx context.Context, t types.McpServerTransport, serverURL string, initTimeout time.Duration,
) (*client.Client, error) {
	switch t {
	case types.TransportStreamableHTTP:
		c, err := createHTTPMcpServerConn(ctx, serverURL, initTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection to streamable http MCP server %s: %w", serverURL, err)
		}
		return c, nil
	case types.TransportSSE, "":
		c, err := createSSEMcpServerConn(ctx, serverURL, initTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection to SSE MCP server %s: %w", serverURL, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", t)
	}
}

// convertMcpTool converts a tool advertised by an upstream server into its catalog form.
// The input schema is kept verbatim when the server sent it raw.
func convertMcpTool(t mcp.Tool) (types.Tool, error) {
	schema := t.RawInputSchema
	if len(schema) == 0 {
		b, err := json.Marshal(t.InputSchema)
		if err != nil {
			return types.Tool{}, fmt.Errorf("failed to marshal input schema of tool %s: %w", t.Name, err)
		}
		schema = b
	}
	return types.Tool{
		Name:        t.GetName(),
		Description: t.Description,
		InputSchema: schema,
	}, nil
}

// convertToolCallResToAPIRes converts an MCP CallToolResult to types.ToolInvokeResult.
func convertToolCallResToAPIRes(resp *mcp.CallToolResult) (*types.ToolInvokeResult, error) {
	contentList, err := convertToolCallRespContent(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to convert content: %w", err)
	}
	return &types.ToolInvokeResult{
		Meta:              convertMCPMetaToMap(resp.Meta),
		IsError:           resp.IsError,
		Content:           contentList,
		StructuredContent: resp.StructuredContent,
	}, nil
}

// convertToolCallRespContent converts []mcp.Content to []map[string]any.
func convertToolCallRespContent(content []mcp.Content) ([]map[string]any, error) {
	contentList := make([]map[string]any, 0, len(content))

	for i, item := range content {
		serialized, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal content item %d: %w", i, err)
		}

		var contentMap map[string]any
		if err := json.Unmarshal(serialized, &contentMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal content item %d: %w", i, err)
		}
		contentList = append(contentList, contentMap)
	}

	return contentList, nil
}

// convertMCPMetaToMap returns nil when there is no metadata worth forwarding.
func convertMCPMetaToMap(meta *mcp.Meta) map[string]any {
	if meta == nil {
		return nil
	}

	metaMap := make(map[string]any, len(meta.AdditionalFields)+1)
	for k, v := range meta.AdditionalFields {
		metaMap[k] = v
	}
	if meta.ProgressToken != nil {
		metaMap["progressToken"] = meta.ProgressToken
	}

	if len(metaMap) == 0 {
		return nil
	}
	return metaMap
}
