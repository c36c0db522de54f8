// Package catalog keeps the persisted record of each MCP server consistent with the tools it actually exposes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/darp-registry/darp/internal/errs"
	"github.com/darp-registry/darp/internal/model"
	"github.com/darp-registry/darp/pkg/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Discoverer lists the tools currently exposed by an MCP server.
type Discoverer interface {
	DiscoverTools(ctx context.Context, t types.McpServerTransport, url string) ([]types.Tool, error)
}

// ServiceConfig holds the configuration parameters for initializing the catalog Service.
type ServiceConfig struct {
	DB         *gorm.DB
	Discoverer Discoverer
	Logger     *zap.Logger
}

// Service registers, updates and removes servers.
// Tools are discovered before anything is written, so a failed discovery never leaves partial state.
type Service struct {
	store      *Store
	discoverer Discoverer
	logger     *zap.Logger
}

func NewService(c *ServiceConfig) (*Service, error) {
	if c.DB == nil {
		return nil, errors.New("db is required")
	}
	if c.Discoverer == nil {
		return nil, errors.New("tool discoverer is required")
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      NewStore(c.DB),
		discoverer: c.Discoverer,
		logger:     logger,
	}, nil
}

// Store exposes the underlying repository for read paths such as search.
func (s *Service) Store() *Store {
	return s.store
}

// Create registers a new server after discovering its tools.
func (s *Service) Create(ctx context.Context, in *types.CreateServerInput) (*model.Server, error) {
	srv, err := model.NewServer(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidInput, err)
	}

	if err := s.assureNoConflict(ctx, 0, &srv.Name, &srv.URL); err != nil {
		return nil, err
	}

	discovered, err := s.discoverer.DiscoverTools(ctx, srv.Transport, srv.URL)
	if err != nil {
		return nil, err
	}

	created, err := s.store.CreateServer(ctx, srv, model.NewTools(discovered))
	if err != nil {
		if isUniqueViolation(err) {
			// lost a race with a concurrent create, report who won
			return nil, s.conflictAfterViolation(ctx, 0, &srv.Name, &srv.URL, err)
		}
		return nil, err
	}

	s.logger.Info("registered server",
		zap.Uint("id", created.ID),
		zap.String("name", created.Name),
		zap.String("url", created.URL),
		zap.Int("tools", len(created.Tools)),
	)
	return created, nil
}

// Update changes the server's fields and always refreshes its tools,
// against the new url when it changes and the current one otherwise.
func (s *Service) Update(ctx context.Context, id uint, in *types.UpdateServerInput) (*model.Server, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidInput, err)
	}
	// identity checks must see the name exactly as it will be stored
	normalized := *in
	normalized.Name = strings.TrimSpace(in.Name)
	in = &normalized

	current, err := s.store.GetServer(ctx, id)
	if err != nil {
		return nil, err
	}

	var name, url *string
	if in.Name != "" {
		name = &in.Name
	}
	if in.URL != "" {
		url = &in.URL
	}
	if name != nil || url != nil {
		if err := s.assureNoConflict(ctx, id, name, url); err != nil {
			return nil, err
		}
	}

	target := *current
	if err := target.Apply(in); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidInput, err)
	}
	discovered, err := s.discoverer.DiscoverTools(ctx, target.Transport, target.URL)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateServer(ctx, id, in, target.URL, model.NewTools(discovered))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, s.conflictAfterViolation(ctx, id, name, url, err)
		}
		return nil, err
	}

	s.logger.Info("updated server",
		zap.Uint("id", updated.ID),
		zap.String("name", updated.Name),
		zap.String("url", updated.URL),
		zap.Int("tools", len(updated.Tools)),
	)
	return updated, nil
}

// Delete removes a server and its tools.
func (s *Service) Delete(ctx context.Context, id uint) error {
	if err := s.store.DeleteServer(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted server", zap.Uint("id", id))
	return nil
}

// Get returns a server with its tools.
func (s *Service) Get(ctx context.Context, id uint) (*model.Server, error) {
	return s.store.GetServer(ctx, id)
}

// GetByIDs returns the servers in the order of ids, failing on the first id that does not exist.
func (s *Service) GetByIDs(ctx context.Context, ids []uint) ([]model.Server, error) {
	byID, err := s.store.GetServersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	servers := make([]model.Server, 0, len(ids))
	for _, id := range ids {
		srv, ok := byID[id]
		if !ok {
			return nil, &errs.NotFoundError{ID: id}
		}
		servers = append(servers, srv)
	}
	return servers, nil
}

// GetByURLs returns the servers matching urls in the order given.
// Urls matching nothing are logged and skipped.
func (s *Service) GetByURLs(ctx context.Context, urls []string) ([]model.Server, error) {
	servers, missing, err := s.store.GetServersByURLs(ctx, urls)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		s.logger.Warn("some urls did not match any registered server",
			zap.Strings("missing", missing),
			zap.Int("requested", len(urls)),
			zap.Int("found", len(servers)),
		)
	}
	return servers, nil
}

// List returns one page of the catalog. Pages start at 1.
func (s *Service) List(ctx context.Context, page, size int) (*types.ServerPage, error) {
	if page < 1 {
		return nil, errs.InvalidInput("page must be at least 1")
	}
	if size < 1 || size > MaxPageSize {
		return nil, errs.InvalidInput("size must be between 1 and %d", MaxPageSize)
	}

	servers, total, err := s.store.ListServers(ctx, (page-1)*size, size)
	if err != nil {
		return nil, err
	}

	out := &types.ServerPage{
		Items: make([]*types.ServerWithTools, 0, len(servers)),
		Total: total,
		Page:  page,
		Size:  size,
		Pages: int((total + int64(size) - 1) / int64(size)),
	}
	for i := range servers {
		out.Items = append(out.Items, servers[i].ToPublicWithTools())
	}
	return out, nil
}

// Snapshot returns the whole catalog for search.
func (s *Service) Snapshot(ctx context.Context) ([]model.Server, error) {
	return s.store.Snapshot(ctx)
}

// assureNoConflict fails with a ConflictError listing every other server that already uses name or url.
// A nil name or url is not checked. excludeID is ignored in the results (0 for none).
func (s *Service) assureNoConflict(ctx context.Context, excludeID uint, name, url *string) error {
	colliding, err := s.findColliding(ctx, excludeID, name, url)
	if err != nil {
		return err
	}
	if len(colliding) > 0 {
		return &errs.ConflictError{Servers: colliding}
	}
	return nil
}

func (s *Service) findColliding(ctx context.Context, excludeID uint, name, url *string) ([]types.Server, error) {
	found, err := s.store.FindServers(ctx, ServerFilter{Name: name, URL: url})
	if err != nil {
		return nil, err
	}
	var colliding []types.Server
	for i := range found {
		if found[i].ID == excludeID {
			continue
		}
		colliding = append(colliding, found[i].ToPublic())
	}
	return colliding, nil
}

// conflictAfterViolation turns a unique constraint violation into a ConflictError.
func (s *Service) conflictAfterViolation(ctx context.Context, excludeID uint, name, url *string, cause error) error {
	s.logger.Warn("unique constraint violated, a concurrent write won", zap.Error(cause))
	colliding, err := s.findColliding(ctx, excludeID, name, url)
	if err != nil {
		s.logger.Error("failed to look up the servers that won a unique constraint race", zap.Error(err))
		return &errs.ConflictError{}
	}
	return &errs.ConflictError{Servers: colliding}
}
