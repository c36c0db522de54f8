package types

import (
	"fmt"
	"net/url"
	"strings"
)

// McpServerTransport represents the transport protocol used to open a session with an MCP server.
// All transport types supported by darp are defined in this file with this type.
type McpServerTransport string

const (
	TransportSSE            McpServerTransport = "sse"
	TransportStreamableHTTP McpServerTransport = "streamable_http"
)

// Server is the public representation of an MCP server registered in the catalog.
type Server struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Logo        string `json:"logo,omitempty"`
	Transport   string `json:"transport"`
}

// ServerWithTools is a Server along with the tools it advertised at its last successful discovery.
type ServerWithTools struct {
	Server
	Tools []Tool `json:"tools"`
}

// CreateServerInput is the input structure for registering a new MCP server.
// It is also the basis for the YAML/JSON configuration file accepted by `darp register -c`.
type CreateServerInput struct {
	// Name (mandatory) is unique across the catalog, ignoring case.
	Name string `json:"name" yaml:"name"`

	Description string `json:"description" yaml:"description"`

	// URL (mandatory) is the endpoint the server's tools are discovered from and dispatched to.
	// It is unique across the catalog.
	URL string `json:"url" yaml:"url"`

	Logo string `json:"logo,omitempty" yaml:"logo,omitempty"`

	// Transport is either "sse" (default) or "streamable_http".
	Transport string `json:"transport,omitempty" yaml:"transport,omitempty"`
}

// UpdateServerInput carries the fields of a server to change.
// Only non-empty fields are applied.
type UpdateServerInput struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Logo        string `json:"logo,omitempty"`
	Transport   string `json:"transport,omitempty"`
}

// IsEmpty returns true if the update does not change anything.
func (u *UpdateServerInput) IsEmpty() bool {
	return u.Name == "" && u.Description == "" && u.URL == "" && u.Logo == "" && u.Transport == ""
}

// ServerPage is one page of the server listing.
type ServerPage struct {
	Items []*ServerWithTools `json:"items"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Size  int                `json:"size"`
	Pages int                `json:"pages"`
}

// SearchServer is the slim view of a server handed to the relevance filter.
// It carries enough to judge relevance but no input schemas.
type SearchServer struct {
	ID          uint         `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	URL         string       `json:"url"`
	Tools       []SearchTool `json:"tools"`
}

// SearchTool is the slim view of a tool handed to the relevance filter.
type SearchTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ServerMetadata represents the server metadata response
type ServerMetadata struct {
	Version string `json:"version"`
}

// ValidateTransport validates the input string and returns the corresponding McpServerTransport.
// An empty input defaults to SSE.
func ValidateTransport(input string) (McpServerTransport, error) {
	switch input {
	case string(TransportSSE), "":
		return TransportSSE, nil
	case string(TransportStreamableHTTP):
		return TransportStreamableHTTP, nil
	default:
		return "", fmt.Errorf(
			"unsupported transport type: %s (acceptable values: '%s', '%s')",
			input, TransportSSE, TransportStreamableHTTP,
		)
	}
}

// ValidateServerURL checks that rawURL is an absolute http/https URL.
func ValidateServerURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url '%s': %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url '%s': scheme must be http or https", rawURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url '%s': host is missing", rawURL)
	}
	return nil
}

// Validate checks the mandatory fields of a registration request.
func (in *CreateServerInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if err := ValidateServerURL(in.URL); err != nil {
		return err
	}
	if _, err := ValidateTransport(in.Transport); err != nil {
		return err
	}
	return nil
}

// Validate checks the fields present in an update request.
func (u *UpdateServerInput) Validate() error {
	if u.Name != "" && strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("name must not be blank")
	}
	if u.URL != "" {
		if err := ValidateServerURL(u.URL); err != nil {
			return err
		}
	}
	if u.Transport != "" {
		if _, err := ValidateTransport(u.Transport); err != nil {
			return err
		}
	}
	return nil
}
