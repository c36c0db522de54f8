package model

import (
	"encoding/json"

	"github.com/darp-registry/darp/pkg/types"
	"gorm.io/datatypes"
)

// Tool represents a tool provided by an MCP server.
type Tool struct {
	ID uint `json:"id" gorm:"primaryKey"`

	// Name is just the name of the tool as the upstream server reports it.
	// A tool name is unique only within the context of a server.
	Name string `json:"name" gorm:"not null"`

	Description string `json:"description"`

	// InputSchema is the JSON schema the upstream server advertised, stored verbatim.
	InputSchema datatypes.JSON `json:"input_schema"`

	// ServerID is the ID of the MCP server that owns this tool.
	ServerID uint `json:"-" gorm:"not null;index"`
}

// NewTools converts discovered tools into records ready to be attached to a server.
func NewTools(discovered []types.Tool) []Tool {
	tools := make([]Tool, 0, len(discovered))
	for _, d := range discovered {
		schema := d.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		tools = append(tools, Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: datatypes.JSON(schema),
		})
	}
	return tools
}

func (t *Tool) ToPublic() types.Tool {
	return types.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: json.RawMessage(t.InputSchema),
	}
}
