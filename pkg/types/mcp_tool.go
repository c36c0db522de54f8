package types

import "encoding/json"

// Tool represents a tool provided by an MCP Server registered in the catalog.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// InputSchema is passed through verbatim from the upstream server.
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolInvokeResult represents the result of a Tool call.
type ToolInvokeResult struct {
	Meta    map[string]any `json:"_meta,omitempty"`
	IsError bool           `json:"isError,omitempty"`

	Content           []map[string]any `json:"content"`
	StructuredContent any              `json:"structuredContent,omitempty"`
}

// Text flattens the result into a single string suitable for an LLM tool-result message.
// Text items are joined by newlines, any other content item is rendered as JSON.
func (r *ToolInvokeResult) Text() string {
	if r == nil {
		return ""
	}
	var out []byte
	for i, item := range r.Content {
		if i > 0 {
			out = append(out, '\n')
		}
		if item["type"] == "text" {
			if s, ok := item["text"].(string); ok {
				out = append(out, s...)
				continue
			}
		}
		b, err := json.Marshal(item)
		if err != nil {
			continue
		}
		out = append(out, b...)
	}
	if len(out) == 0 && r.StructuredContent != nil {
		if b, err := json.Marshal(r.StructuredContent); err == nil {
			out = b
		}
	}
	return string(out)
}
