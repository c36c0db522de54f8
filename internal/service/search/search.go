// Package search narrows the catalog to the servers relevant to a free-text query.
package search

import (
	"context"
	"strings"

	"github.com/darp-registry/darp/internal/errs"
	"github.com/darp-registry/darp/internal/model"
	"github.com/darp-registry/darp/pkg/types"
	"go.uber.org/zap"
)

// Catalog is the part of the catalog service search reads from.
type Catalog interface {
	Snapshot(ctx context.Context) ([]model.Server, error)
	GetByURLs(ctx context.Context, urls []string) ([]model.Server, error)
}

// Service runs a search as snapshot, filter, then hydrate.
type Service struct {
	catalog Catalog
	filter  *Filter
	logger  *zap.Logger
}

func NewService(c Catalog, f *Filter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: c, filter: f, logger: logger}
}

// SearchURLs returns the urls of the servers relevant to query, most relevant first.
func (s *Service) SearchURLs(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.InvalidInput("query is required")
	}

	servers, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := make([]types.SearchServer, 0, len(servers))
	for i := range servers {
		snapshot = append(snapshot, servers[i].ToSearchServer())
	}

	urls, err := s.filter.FittingServers(ctx, snapshot, query)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("search matched servers",
		zap.String("query", query),
		zap.Int("catalog", len(snapshot)),
		zap.Int("matched", len(urls)),
	)
	return urls, nil
}

// Search returns the full records of the servers relevant to query, in the order the filter ranked them.
func (s *Service) Search(ctx context.Context, query string) ([]model.Server, error) {
	urls, err := s.SearchURLs(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return []model.Server{}, nil
	}
	return s.catalog.GetByURLs(ctx, urls)
}
