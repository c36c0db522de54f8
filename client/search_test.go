package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/darp-registry/darp/pkg/types"
)

func TestSearch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "math help" {
			t.Errorf("Expected query 'math help', got %q", got)
		}
		switch r.URL.Path {
		case "/api/v0/servers/search":
			_ = json.NewEncoder(w).Encode([]*types.ServerWithTools{{Server: types.Server{ID: 1, Name: "calc"}}})
		case "/api/v0/search/urls":
			_ = json.NewEncoder(w).Encode(types.SearchURLsResponse{URLs: []string{"http://x/sse"}})
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "", &http.Client{})

	servers, err := client.SearchServers("math help")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(servers) != 1 || servers[0].Name != "calc" {
		t.Errorf("Unexpected servers: %+v", servers)
	}

	urls, err := client.SearchURLs("math help")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(urls) != 1 || urls[0] != "http://x/sse" {
		t.Errorf("Unexpected urls: %v", urls)
	}
}

func TestRoute(t *testing.T) {
	t.Parallel()

	t.Run("successful route", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var in types.RouteRequest
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				t.Fatalf("Failed to decode request body: %v", err)
			}
			_ = json.NewEncoder(w).Encode(types.RouteResponse{Conversation: []types.Message{
				types.UserMessage(in.Request),
				types.AssistantMessage("5", nil),
			}})
		}))
		defer server.Close()

		client := NewClient(server.URL, "", &http.Client{})
		conv, err := client.Route("add 2 and 3")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(conv) != 2 || conv[0].Content != "add 2 and 3" || conv[1].Content != "5" {
			t.Errorf("Unexpected conversation: %+v", conv)
		}
	})

	t.Run("turn limit keeps the partial conversation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":        "routing exceeded maximum turns (10)",
				"conversation": []types.Message{types.UserMessage("loop")},
			})
		}))
		defer server.Close()

		client := NewClient(server.URL, "", &http.Client{})
		_, err := client.Route("loop")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Expected APIError, got %v", err)
		}
		if len(apiErr.Conversation) != 1 {
			t.Errorf("Expected partial conversation, got %+v", apiErr.Conversation)
		}
	})
}
