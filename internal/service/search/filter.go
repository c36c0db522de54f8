package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/darp-registry/darp/internal/errs"
	"github.com/darp-registry/darp/internal/llm"
	"github.com/darp-registry/darp/pkg/types"
	"go.uber.org/zap"
)

const filterSystemPrompt = `You select MCP servers for a user request.

You receive a JSON object with "query", the user's request, and "servers", the catalog of
available servers. Each server has an id, name, description, url and the names and
descriptions of its tools.

Pick every server whose description or tools can help with the query and rank them,
most relevant first. Leave out servers that cannot help.

Answer with a JSON array of the selected servers' urls and nothing else, for example:
["https://weather.example/sse", "https://calc.example/sse"]
Answer [] when no server fits.`

// filterInput is the payload the provider judges.
type filterInput struct {
	Query   string               `json:"query"`
	Servers []types.SearchServer `json:"servers"`
}

// Filter asks the text-generation provider which servers of a snapshot fit a query.
type Filter struct {
	provider llm.Provider
	logger   *zap.Logger
}

func NewFilter(p llm.Provider, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{provider: p, logger: logger}
}

// FittingServers returns the urls of the servers in snapshot relevant to query, most relevant first.
// Urls the provider invents or repeats are dropped. An empty snapshot never reaches the provider.
func (f *Filter) FittingServers(ctx context.Context, snapshot []types.SearchServer, query string) ([]string, error) {
	if len(snapshot) == 0 {
		return []string{}, nil
	}

	payload, err := json.Marshal(filterInput{Query: query, Servers: snapshot})
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog snapshot: %w", err)
	}

	resp, err := f.provider.Complete(ctx, &llm.Request{
		Operation: "search",
		System:    filterSystemPrompt,
		Messages:  []types.Message{types.UserMessage(string(payload))},
	})
	if err != nil {
		return nil, err
	}

	answer, err := parseURLList(resp.Content)
	if err != nil {
		f.logger.Error("relevance filter answer could not be parsed",
			zap.String("provider", f.provider.Name()),
			zap.String("answer", resp.Content),
			zap.Error(err),
		)
		return nil, &errs.ProviderError{Kind: errs.ProviderErrMalformed, Body: resp.Content, Err: err}
	}

	known := make(map[string]bool, len(snapshot))
	for _, s := range snapshot {
		known[s.URL] = true
	}

	urls := make([]string, 0, len(answer))
	seen := make(map[string]bool, len(answer))
	var dropped []string
	for _, u := range answer {
		if !known[u] || seen[u] {
			dropped = append(dropped, u)
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	if len(dropped) > 0 {
		f.logger.Warn("relevance filter returned urls outside the catalog or repeated",
			zap.Strings("dropped", dropped),
			zap.String("query", query),
		)
	}
	return urls, nil
}

// parseURLList reads a JSON array of strings, optionally wrapped in one Markdown code fence.
func parseURLList(content string) ([]string, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// drop the info string, eg- ```json
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			return nil, fmt.Errorf("unterminated code fence")
		}
		end := strings.LastIndex(s, "```")
		if end < 0 {
			return nil, fmt.Errorf("unterminated code fence")
		}
		s = strings.TrimSpace(s[:end])
	}
	if s == "" {
		return nil, fmt.Errorf("empty answer")
	}

	var urls []string
	if err := json.Unmarshal([]byte(s), &urls); err != nil {
		return nil, fmt.Errorf("answer is not a JSON array of urls: %w", err)
	}
	if urls == nil {
		return nil, fmt.Errorf("answer is not a JSON array of urls")
	}
	return urls, nil
}
