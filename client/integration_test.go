package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/darp-registry/darp/internal/api"
	"github.com/darp-registry/darp/internal/service/catalog"
	mcpService "github.com/darp-registry/darp/internal/service/mcp"
	"github.com/darp-registry/darp/internal/service/router"
	"github.com/darp-registry/darp/internal/service/search"
	"github.com/darp-registry/darp/pkg/testhelpers"
	"github.com/darp-registry/darp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startRegistry runs the whole registry (real storage, real MCP sessions) on an httptest server.
func startRegistry(t *testing.T, searchProvider, routeProvider *testhelpers.ScriptedProvider) *Client {
	t.Helper()
	setup := testhelpers.SetupTestDB(t)
	t.Cleanup(setup.Cleanup)

	sessions := mcpService.NewSessionClient(&mcpService.ServiceConfig{
		InitReqTimeout:  5 * time.Second,
		ToolCallTimeout: 5 * time.Second,
	})
	cat, err := catalog.NewService(&catalog.ServiceConfig{DB: setup.DB, Discoverer: sessions})
	require.NoError(t, err)
	engine, err := router.NewEngine(&router.Config{Provider: routeProvider, Catalog: cat, Dispatcher: sessions})
	require.NoError(t, err)

	s, err := api.NewServer(&api.ServerOptions{
		CatalogService: cat,
		SearchService:  search.NewService(cat, search.NewFilter(searchProvider, nil), nil),
		RoutingEngine:  engine,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "", srv.Client())
}

func TestRegistryEndToEnd(t *testing.T) {
	calc := testhelpers.StartCalcServer(t)
	weather := testhelpers.StartWeatherServer(t)

	searchProvider := testhelpers.NewScriptedProvider(
		testhelpers.TextStep(fmt.Sprintf("[%q]", calc.URL)),
	)
	routeProvider := testhelpers.NewScriptedProvider(
		testhelpers.ToolCallStep("call_1", "calc__add", `{"a":2,"b":3}`),
		testhelpers.TextStep("2 + 3 = 5"),
	)
	c := startRegistry(t, searchProvider, routeProvider)

	registered, err := c.RegisterServer(&types.CreateServerInput{Name: "calc", Description: "arithmetic", URL: calc.URL})
	require.NoError(t, err)
	require.Len(t, registered.Tools, 1)
	assert.Equal(t, "add", registered.Tools[0].Name)

	_, err = c.RegisterServer(&types.CreateServerInput{Name: "weather", Description: "forecasts", URL: weather.URL})
	require.NoError(t, err)

	t.Run("duplicate registration conflicts", func(t *testing.T) {
		_, err := c.RegisterServer(&types.CreateServerInput{Name: "CALC", URL: "http://127.0.0.1:1/sse"})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
		require.Len(t, apiErr.Servers, 1)
		assert.Equal(t, "calc", apiErr.Servers[0].Name)
	})

	t.Run("unreachable server is not registered", func(t *testing.T) {
		_, err := c.RegisterServer(&types.CreateServerInput{Name: "ghost", URL: "http://127.0.0.1:1/sse"})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)

		page, err := c.ListServers(1, 10)
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Total)
	})

	t.Run("search", func(t *testing.T) {
		urls, err := c.SearchURLs("math help")
		require.NoError(t, err)
		assert.Equal(t, []string{calc.URL}, urls)

		servers, err := c.SearchServers("math help")
		require.NoError(t, err)
		require.Len(t, servers, 1)
		assert.Equal(t, "calc", servers[0].Name)
	})

	t.Run("route through the MCP endpoint", func(t *testing.T) {
		conv, err := c.RouteViaMCP(context.Background(), "add 2 and 3")
		require.NoError(t, err)
		require.NoError(t, types.ValidateTranscript(conv))
		assert.Equal(t, "2 + 3 = 5", conv[len(conv)-1].Content)

		calls := calc.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, map[string]any{"a": float64(2), "b": float64(3)}, calls[0].Args)
		assert.Empty(t, weather.Calls())
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.DeleteServer(registered.ID))
		_, err := c.GetServer(registered.ID)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	})
}
