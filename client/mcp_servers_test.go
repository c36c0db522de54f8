package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/darp-registry/darp/pkg/types"
)

func TestRegisterServer(t *testing.T) {
	t.Parallel()

	t.Run("successful registration", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("Expected POST method, got %s", r.Method)
			}
			if r.URL.Path != "/api/v0/servers" {
				t.Errorf("Expected path /api/v0/servers, got %s", r.URL.Path)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type application/json, got %s", ct)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
				t.Errorf("Expected bearer token, got %q", auth)
			}

			var in types.CreateServerInput
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				t.Fatalf("Failed to decode request body: %v", err)
			}
			if in.Name != "calc" || in.URL != "http://x/sse" {
				t.Errorf("Unexpected request body: %+v", in)
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(types.ServerWithTools{
				Server: types.Server{ID: 1, Name: in.Name, URL: in.URL, Transport: "sse"},
				Tools:  []types.Tool{{Name: "add"}},
			})
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-token", &http.Client{})
		srv, err := client.RegisterServer(&types.CreateServerInput{Name: "calc", URL: "http://x/sse"})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if srv.ID != 1 || len(srv.Tools) != 1 || srv.Tools[0].Name != "add" {
			t.Errorf("Unexpected server: %+v", srv)
		}
	})

	t.Run("conflict carries the colliding servers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"server already exists: calc (http://x/sse)",` +
				`"servers":[{"id":1,"name":"calc","url":"http://x/sse"}]}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "", nil)
		_, err := client.RegisterServer(&types.CreateServerInput{Name: "calc", URL: "http://x/sse"})

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Expected APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusConflict {
			t.Errorf("Expected status 409, got %d", apiErr.StatusCode)
		}
		if len(apiErr.Servers) != 1 || apiErr.Servers[0].Name != "calc" {
			t.Errorf("Expected colliding server calc, got %+v", apiErr.Servers)
		}
		expectedError := "request failed with status: 409, message: server already exists: calc (http://x/sse)"
		if err.Error() != expectedError {
			t.Errorf("Expected error %q, got %q", expectedError, err.Error())
		}
	})

	t.Run("plain text error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("Invalid server configuration"))
		}))
		defer server.Close()

		client := NewClient(server.URL, "", &http.Client{})
		srv, err := client.RegisterServer(&types.CreateServerInput{Name: "calc"})
		if err == nil {
			t.Fatal("Expected error, got nil")
		}
		if srv != nil {
			t.Error("Expected nil server on error")
		}
		expectedError := "request failed with status: 400, message: Invalid server configuration"
		if !strings.Contains(err.Error(), expectedError) {
			t.Errorf("Expected error to contain %s, got %s", expectedError, err.Error())
		}
	})

	t.Run("network error", func(t *testing.T) {
		client := NewClient("http://invalid-url", "", &http.Client{})
		_, err := client.RegisterServer(&types.CreateServerInput{Name: "calc", URL: "http://x/sse"})
		if err == nil {
			t.Fatal("Expected error, got nil")
		}
		if !strings.Contains(err.Error(), "failed to send request") {
			t.Errorf("Expected error to contain 'failed to send request', got %s", err.Error())
		}
	})
}

func TestListServers(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("size") != "10" {
			t.Errorf("Unexpected query: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(types.ServerPage{
			Items: []*types.ServerWithTools{{Server: types.Server{ID: 11, Name: "eleven"}}},
			Total: 11, Page: 2, Size: 10, Pages: 2,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", &http.Client{})
	page, err := client.ListServers(2, 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if page.Total != 11 || page.Pages != 2 || len(page.Items) != 1 {
		t.Errorf("Unexpected page: %+v", page)
	}
}

func TestGetServers(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query()["ids"]
		if strings.Join(ids, ",") != "3,1" {
			t.Errorf("Expected ids 3,1 in order, got %v", ids)
		}
		_ = json.NewEncoder(w).Encode([]*types.ServerWithTools{
			{Server: types.Server{ID: 3}}, {Server: types.Server{ID: 1}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", &http.Client{})
	servers, err := client.GetServers([]uint{3, 1})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(servers) != 2 || servers[0].ID != 3 {
		t.Errorf("Unexpected servers: %+v", servers)
	}
}

func TestUpdateAndDeleteServer(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/servers/7" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		switch r.Method {
		case http.MethodPut:
			var in types.UpdateServerInput
			_ = json.NewDecoder(r.Body).Decode(&in)
			_ = json.NewEncoder(w).Encode(types.ServerWithTools{Server: types.Server{ID: 7, URL: in.URL}})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("Unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "", &http.Client{})
	srv, err := client.UpdateServer(7, &types.UpdateServerInput{URL: "http://new/sse"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if srv.URL != "http://new/sse" {
		t.Errorf("Expected updated url, got %s", srv.URL)
	}

	if err := client.DeleteServer(7); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestGetServerNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"server 9 not found"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", &http.Client{})
	_, err := client.GetServer(9)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 APIError, got %v", err)
	}
	if apiErr.Message != "server 9 not found" {
		t.Errorf("Unexpected message %q", apiErr.Message)
	}
}
