package items

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/procurehub/procurehub/internal/shared"
)

// AuditPort records master data changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements item master data rules.
type Service struct {
	repo   Repository
	cache  Cache
	audit  AuditPort
	logger *slog.Logger
	loads  singleflight.Group
}

// NewService constructs the service. cache and audit may be nil.
func NewService(repo Repository, cache Cache, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, audit: audit, logger: logger}
}

// List returns a page of items.
func (s *Service) List(ctx context.Context, filters Filters) ([]Item, shared.Pagination, error) {
	list, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

// LowStock lists active items at or under their reorder level.
func (s *Service) LowStock(ctx context.Context, filters Filters) ([]Item, shared.Pagination, error) {
	active := true
	filters.LowStock = true
	filters.IsActive = &active
	if filters.SortBy == "" {
		filters.SortBy = "quantity_on_hand"
	}
	return s.List(ctx, filters)
}

// CountLowStock counts active items at or under their reorder level.
func (s *Service) CountLowStock(ctx context.Context) (int, error) {
	return s.repo.CountLowStock(ctx)
}

// Get reads an item through the cache. Concurrent misses for the same ID
// share one database read.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	if s.cache != nil {
		item, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("item cache read", slog.Int64("item_id", id), slog.Any("error", err))
		} else if ok {
			return item, nil
		}
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.loads.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		return s.load(loadCtx, id)
	})
	select {
	case <-ctx.Done():
		return Item{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Item{}, res.Err
		}
		return res.Val.(Item), nil
	}
}

func (s *Service) load(ctx context.Context, id int64) (Item, error) {
	var (
		generation int64
		genErr     error
	)
	if s.cache != nil {
		generation, genErr = s.cache.Generation(ctx, id)
	}
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if s.cache != nil && genErr == nil {
		if err := s.cache.Set(ctx, item, generation); err != nil {
			s.logger.Warn("item cache write", slog.Int64("item_id", id), slog.Any("error", err))
		}
	}
	return item, nil
}

// Create registers a new item with zero stock.
func (s *Service) Create(ctx context.Context, input ItemInput) (Item, error) {
	item := normalize(input)
	if err := validate(item); err != nil {
		return Item{}, err
	}
	created, err := s.repo.Create(ctx, item)
	if err != nil {
		return Item{}, err
	}
	s.record(ctx, "item.create", created.ID, map[string]any{"code": created.Code})
	return created, nil
}

// Update overwrites the item's master data. Concurrent edits are last-write-wins.
func (s *Service) Update(ctx context.Context, id int64, input ItemInput) (Item, error) {
	item := normalize(input)
	if err := validate(item); err != nil {
		return Item{}, err
	}
	updated, err := s.repo.Update(ctx, id, item)
	if err != nil {
		return Item{}, err
	}
	s.Invalidate(ctx, id)
	s.record(ctx, "item.update", id, map[string]any{"code": updated.Code})
	return updated, nil
}

// Delete removes an item that has no stock history or document lines.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.Invalidate(ctx, id)
	s.record(ctx, "item.delete", id, nil)
	return nil
}

// Invalidate drops a cached item, called whenever its stock moves.
func (s *Service) Invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("item cache invalidate", slog.Int64("item_id", id), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   "item",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("item audit", slog.String("action", action), slog.Any("error", err))
	}
}
