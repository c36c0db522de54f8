package model

import (
	"errors"
	"strings"
	"time"

	"github.com/darp-registry/darp/pkg/types"
)

// Server represents an MCP server registered in the darp catalog.
// A server exclusively owns its tools. Deleting it deletes them.
type Server struct {
	ID uint `json:"id" gorm:"primaryKey"`

	// Name is unique across the catalog, ignoring case.
	// The case-insensitive unique index is created by the migrations package.
	Name string `json:"name" gorm:"not null"`

	Description string `json:"description"`

	// URL is the endpoint tools are discovered from and dispatched to.
	URL string `json:"url" gorm:"uniqueIndex;not null"`

	Logo string `json:"logo"`

	Transport types.McpServerTransport `json:"transport" gorm:"type:varchar(30);not null;default:'sse'"`

	// Tools is the tool set observed at the last successful discovery.
	// It is replaced as a whole on every create and update.
	Tools []Tool `json:"tools" gorm:"foreignKey:ServerID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewServer builds a Server from a registration request.
// Only the fields are validated here, identity conflicts are checked by the catalog service.
func NewServer(in *types.CreateServerInput) (*Server, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, errors.New("name is required")
	}
	if err := types.ValidateServerURL(in.URL); err != nil {
		return nil, err
	}
	transport, err := types.ValidateTransport(in.Transport)
	if err != nil {
		return nil, err
	}
	return &Server{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		URL:         in.URL,
		Logo:        in.Logo,
		Transport:   transport,
	}, nil
}

// Apply copies the non-empty fields of an update request onto the server.
func (s *Server) Apply(u *types.UpdateServerInput) error {
	if u.Name != "" {
		s.Name = strings.TrimSpace(u.Name)
	}
	if u.Description != "" {
		s.Description = u.Description
	}
	if u.URL != "" {
		if err := types.ValidateServerURL(u.URL); err != nil {
			return err
		}
		s.URL = u.URL
	}
	if u.Logo != "" {
		s.Logo = u.Logo
	}
	if u.Transport != "" {
		t, err := types.ValidateTransport(u.Transport)
		if err != nil {
			return err
		}
		s.Transport = t
	}
	return nil
}

// ToPublic converts the server record into its wire representation, without tools.
func (s *Server) ToPublic() types.Server {
	return types.Server{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		URL:         s.URL,
		Logo:        s.Logo,
		Transport:   string(s.Transport),
	}
}

// ToPublicWithTools converts the server record along with its loaded tools.
func (s *Server) ToPublicWithTools() *types.ServerWithTools {
	out := &types.ServerWithTools{
		Server: s.ToPublic(),
		Tools:  make([]types.Tool, 0, len(s.Tools)),
	}
	for i := range s.Tools {
		out.Tools = append(out.Tools, s.Tools[i].ToPublic())
	}
	return out
}

// ToSearchServer returns the slim view handed to the relevance filter.
func (s *Server) ToSearchServer() types.SearchServer {
	out := types.SearchServer{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		URL:         s.URL,
		Tools:       make([]types.SearchTool, 0, len(s.Tools)),
	}
	for _, t := range s.Tools {
		out.Tools = append(out.Tools, types.SearchTool{Name: t.Name, Description: t.Description})
	}
	return out
}
