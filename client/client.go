// Package client provides a Go client for the darp registry HTTP API.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/darp-registry/darp/internal/api"
	"github.com/darp-registry/darp/pkg/types"
)

// Client represents a client for interacting with the darp registry
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewClient creates a new darp client.
// accessToken is optional and sent as a bearer token when set, for registries behind an authenticating proxy.
func NewClient(baseURL string, accessToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  httpClient,
	}
}

// BaseURL returns the base URL of the darp registry
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-successful answer of the registry.
type APIError struct {
	StatusCode int
	Message    string

	// Servers lists the colliding servers of a 409 Conflict.
	Servers []types.Server
	// Conversation is the partial transcript of a routing call that ran out of turns.
	Conversation []types.Message
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status: %d, message: %s", e.StatusCode, e.Message)
}

// constructAPIEndpoint constructs the full API endpoint URL where a request must be sent
func (c *Client) constructAPIEndpoint(suffixPath string) (string, error) {
	return url.JoinPath(c.baseURL, api.V0ApiPathPrefix, suffixPath)
}

// newRequest creates a new HTTP request with the access token, if any
func (c *Client) newRequest(method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and decodes a response with the wanted status into out, when out is not nil.
func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse turns a failed response into an *APIError.
// The registry answers {"error": "..."}, anything else is reported verbatim.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}

	var payload struct {
		Error        string          `json:"error"`
		Servers      []types.Server  `json:"servers"`
		Conversation []types.Message `json:"conversation"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Servers = payload.Servers
		apiErr.Conversation = payload.Conversation
	}
	return apiErr
}
