package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/darp-registry/darp/internal/errs"
	"github.com/darp-registry/darp/internal/model"
	"github.com/darp-registry/darp/pkg/types"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// pgUniqueViolation is the Postgres SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// ServerFilter selects servers by identity. Set fields are ORed together.
type ServerFilter struct {
	ID   *uint
	Name *string
	URL  *string
}

// Store persists servers and the tools they own.
// Every write touching a server and its tools runs in one transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func preloadTools(db *gorm.DB) *gorm.DB {
	return db.Preload("Tools", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("tools.id")
	})
}

// FindServers returns every server matching any of the set filter fields.
// Name is compared ignoring case, URL exactly.
func (s *Store) FindServers(ctx context.Context, f ServerFilter) ([]model.Server, error) {
	var (
		conds []string
		args  []any
	)
	if f.ID != nil {
		conds = append(conds, "id = ?")
		args = append(args, *f.ID)
	}
	if f.Name != nil {
		conds = append(conds, "lower(name) = lower(?)")
		args = append(args, *f.Name)
	}
	if f.URL != nil {
		conds = append(conds, "url = ?")
		args = append(args, *f.URL)
	}
	if len(conds) == 0 {
		return nil, errs.InvalidInput("at least one of id, name or url is required to find servers")
	}

	var servers []model.Server
	err := s.db.WithContext(ctx).
		Where(strings.Join(conds, " OR "), args...).
		Order("id").
		Find(&servers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find servers: %w", err)
	}
	return servers, nil
}

// GetServer returns the server with the given id along with its tools.
func (s *Store) GetServer(ctx context.Context, id uint) (*model.Server, error) {
	var srv model.Server
	err := preloadTools(s.db.WithContext(ctx)).First(&srv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get server %d: %w", id, err)
	}
	return &srv, nil
}

// CreateServer inserts the server and its tools as one unit and returns the stored record.
func (s *Store) CreateServer(ctx context.Context, srv *model.Server, tools []model.Tool) (*model.Server, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(srv).Error; err != nil {
			return err
		}
		return insertTools(tx, srv.ID, tools)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server %s: %w", srv.Name, err)
	}
	return s.GetServer(ctx, srv.ID)
}

// UpdateServer applies the non-empty fields of in and replaces the whole tool set, in one transaction.
// Readers see either the old server and tools or the new ones, never a mix.
// discoveredURL is the url tools were listed from. If the server's resulting url differs,
// because another update changed it meanwhile, nothing is written and ErrConcurrentUpdate is returned.
func (s *Store) UpdateServer(
	ctx context.Context, id uint, in *types.UpdateServerInput, discoveredURL string, tools []model.Tool,
) (*model.Server, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var srv model.Server
		if err := tx.First(&srv, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &errs.NotFoundError{ID: id}
			}
			return err
		}
		if err := srv.Apply(in); err != nil {
			return fmt.Errorf("%w: %w", errs.ErrInvalidInput, err)
		}
		if srv.URL != discoveredURL {
			return fmt.Errorf("%w: tools were discovered at %s but the server now points to %s",
				errs.ErrConcurrentUpdate, discoveredURL, srv.URL)
		}
		if err := tx.Omit(clause.Associations).Save(&srv).Error; err != nil {
			return err
		}
		if err := tx.Where("server_id = ?", id).Delete(&model.Tool{}).Error; err != nil {
			return err
		}
		return insertTools(tx, id, tools)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update server %d: %w", id, err)
	}
	return s.GetServer(ctx, id)
}

// DeleteServer removes the server and all of its tools.
func (s *Store) DeleteServer(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("server_id = ?", id).Delete(&model.Tool{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Server{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &errs.NotFoundError{ID: id}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete server %d: %w", id, err)
	}
	return nil
}

// AllServers returns a query over every server.
// Nothing is loaded until the caller finishes the query, so it can be used for counting and paging.
func (s *Store) AllServers(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&model.Server{})
}

// ListServers returns one page of servers ordered by id, with tools, and the total count.
func (s *Store) ListServers(ctx context.Context, offset, limit int) ([]model.Server, int64, error) {
	var total int64
	if err := s.AllServers(ctx).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count servers: %w", err)
	}

	var servers []model.Server
	err := preloadTools(s.AllServers(ctx)).
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&servers).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list servers: %w", err)
	}
	return servers, total, nil
}

// Snapshot loads the whole catalog with tools, ordered by id.
func (s *Store) Snapshot(ctx context.Context) ([]model.Server, error) {
	var servers []model.Server
	if err := preloadTools(s.AllServers(ctx)).Order("id").Find(&servers).Error; err != nil {
		return nil, fmt.Errorf("failed to load catalog snapshot: %w", err)
	}
	return servers, nil
}

// GetServersByIDs loads the servers with the given ids, keyed by id.
func (s *Store) GetServersByIDs(ctx context.Context, ids []uint) (map[uint]model.Server, error) {
	var servers []model.Server
	if len(ids) > 0 {
		if err := preloadTools(s.db.WithContext(ctx)).Where("id IN ?", ids).Find(&servers).Error; err != nil {
			return nil, fmt.Errorf("failed to get servers by ids: %w", err)
		}
	}
	byID := make(map[uint]model.Server, len(servers))
	for _, srv := range servers {
		byID[srv.ID] = srv
	}
	return byID, nil
}

// GetServersByURLs returns the servers matching urls, in the order of urls, and the urls that matched nothing.
// Duplicate urls are returned once.
func (s *Store) GetServersByURLs(ctx context.Context, urls []string) ([]model.Server, []string, error) {
	if len(urls) == 0 {
		return []model.Server{}, nil, nil
	}

	var found []model.Server
	if err := preloadTools(s.db.WithContext(ctx)).Where("url IN ?", urls).Find(&found).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to get servers by urls: %w", err)
	}
	byURL := make(map[string]model.Server, len(found))
	for _, srv := range found {
		byURL[srv.URL] = srv
	}

	servers := make([]model.Server, 0, len(found))
	var missing []string
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		srv, ok := byURL[u]
		if !ok {
			missing = append(missing, u)
			continue
		}
		servers = append(servers, srv)
	}
	return servers, missing, nil
}

func insertTools(tx *gorm.DB, serverID uint, tools []model.Tool) error {
	if len(tools) == 0 {
		return nil
	}
	rows := make([]model.Tool, len(tools))
	for i, t := range tools {
		t.ID = 0
		t.ServerID = serverID
		rows[i] = t
	}
	return tx.Create(&rows).Error
}

// isUniqueViolation reports whether err was caused by a unique constraint of the store.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
