package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/darp-registry/darp/pkg/types"
)

// RegisterServer registers a new MCP server. The registry discovers its tools before storing it.
func (c *Client) RegisterServer(in *types.CreateServerInput) (*types.ServerWithTools, error) {
	u, _ := c.constructAPIEndpoint("/servers")

	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal server data: %w", err)
	}
	req, err := c.newRequest(http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var srv types.ServerWithTools
	if err := c.do(req, http.StatusCreated, &srv); err != nil {
		return nil, err
	}
	return &srv, nil
}

// ListServers returns one page of the catalog. Pages start at 1.
func (c *Client) ListServers(page, size int) (*types.ServerPage, error) {
	u, _ := c.constructAPIEndpoint("/servers")

	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		q.Set("size", strconv.Itoa(size))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := c.newRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var p types.ServerPage
	if err := c.do(req, http.StatusOK, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetServers returns the servers with the given ids, in that order.
func (c *Client) GetServers(ids []uint) ([]*types.ServerWithTools, error) {
	u, _ := c.constructAPIEndpoint("/servers")

	q := url.Values{}
	for _, id := range ids {
		q.Add("ids", strconv.FormatUint(uint64(id), 10))
	}
	u += "?" + q.Encode()

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

func (c *Client) GetServer(id uint) (*types.ServerWithTools, error) {
	u, _ := c.constructAPIEndpoint("/servers/" + strconv.FormatUint(uint64(id), 10))

	req, err := c.newRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var srv types.ServerWithTools
	if err := c.do(req, http.StatusOK, &srv); err != nil {
		return nil, err
	}
	return &srv, nil
}

// UpdateServer changes the non-empty fields of in and refreshes the server's tools.
func (c *Client) UpdateServer(id uint, in *types.UpdateServerInput) (*types.ServerWithTools, error) {
	u, _ := c.constructAPIEndpoint("/servers/" + strconv.FormatUint(uint64(id), 10))

	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal server data: %w", err)
	}
	req, err := c.newRequest(http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var srv types.ServerWithTools
	if err := c.do(req, http.StatusOK, &srv); err != nil {
		return nil, err
	}
	return &srv, nil
}

func (c *Client) DeleteServer(id uint) error {
	u, _ := c.constructAPIEndpoint("/servers/" + strconv.FormatUint(uint64(id), 10))

	req, err := c.newRequest(http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, http.StatusNoContent, nil)
}
