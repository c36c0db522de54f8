package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/darp-registry/darp/pkg/types"
)

// SearchServers returns the servers relevant to query, most relevant first.
func (c *Client) SearchServers(query string) ([]*types.ServerWithTools, error) {
	u, _ := c.constructAPIEndpoint("/servers/search")
	u += "?" + url.Values{"query": {query}}.Encode()

	req, err := c.newRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var servers []*types.ServerWithTools
	if err := c.do(req, http.StatusOK, &servers); err != nil {
		return nil, err
	}
	return servers, nil
}

// SearchURLs returns only the urls of the servers relevant to query.
func (c *Client) SearchURLs(query string) ([]string, error) {
	u, _ := c.constructAPIEndpoint("/search/urls")
	u += "?" + url.Values{"query": {query}}.Encode()

	req, err := c.newRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var resp types.SearchURLsResponse
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.URLs, nil
}

// Route asks the registry to fulfil request with the catalog's tools and returns the conversation.
func (c *Client) Route(request string) ([]types.Message, error) {
	u, _ := c.constructAPIEndpoint("/route")

	body, err := json.Marshal(&types.RouteRequest{Request: request})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal route request: %w", err)
	}
	req, err := c.newRequest(http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var resp types.RouteResponse
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Conversation, nil
}
