package router

import (
	"fmt"
	"strings"

	"github.com/darp-registry/darp/internal/llm"
	"github.com/darp-registry/darp/internal/model"
	"github.com/darp-registry/darp/internal/service/mcp"
)

const (
	// toolNameSeparator joins the server and tool parts of an advertised tool name.
	toolNameSeparator = "__"
	// maxToolNameLen is the longest function name the providers accept.
	maxToolNameLen = 64
)

// routedTool is where a tool advertised to the model really lives.
type routedTool struct {
	target mcp.Target
	tool   string
}

// toolTable maps the names advertised to the model back to their servers.
type toolTable struct {
	decls  []llm.ToolDeclaration
	routes map[string]routedTool
}

func (t *toolTable) lookup(name string) (routedTool, bool) {
	r, ok := t.routes[name]
	return r, ok
}

// buildToolTable declares every tool of every server, tagged with its server name.
// Names are made safe for the providers and deduplicated, the first server in catalog order wins the plain name.
func buildToolTable(servers []model.Server) *toolTable {
	t := &toolTable{routes: make(map[string]routedTool)}
	for i := range servers {
		srv := &servers[i]
		target := mcp.Target{Server: srv.Name, URL: srv.URL, Transport: srv.Transport}
		for _, tool := range srv.Tools {
			name := uniqueName(t.routes, qualifiedToolName(srv.Name, tool.Name))
			t.routes[name] = routedTool{target: target, tool: tool.Name}

			desc := tool.Description
			if srv.Description != "" {
				desc = fmt.Sprintf("[%s: %s] %s", srv.Name, srv.Description, desc)
			} else {
				desc = fmt.Sprintf("[%s] %s", srv.Name, desc)
			}
			t.decls = append(t.decls, llm.ToolDeclaration{
				Name:        name,
				Description: strings.TrimSpace(desc),
				InputSchema: []byte(tool.InputSchema),
			})
		}
	}
	return t
}

// qualifiedToolName returns "<server>__<tool>" restricted to the characters providers allow.
func qualifiedToolName(server, tool string) string {
	name := sanitize(server) + toolNameSeparator + sanitize(tool)
	if len(name) > maxToolNameLen {
		name = name[:maxToolNameLen]
	}
	return name
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func uniqueName(taken map[string]routedTool, name string) string {
	if _, ok := taken[name]; !ok {
		return name
	}
	for n := 2; ; n++ {
		suffix := fmt.Sprintf("_%d", n)
		candidate := name
		if len(candidate)+len(suffix) > maxToolNameLen {
			candidate = candidate[:maxToolNameLen-len(suffix)]
		}
		candidate += suffix
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
