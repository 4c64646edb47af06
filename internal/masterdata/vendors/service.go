package vendors

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/procurehub/procurehub/internal/shared"
)

// AuditPort records master data changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements vendor master data rules.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs the service. audit may be nil.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

func (s *Service) List(ctx context.Context, filters Filters) ([]Vendor, shared.Pagination, error) {
	list, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

func (s *Service) Get(ctx context.Context, id int64) (Vendor, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, input VendorInput) (Vendor, error) {
	v := normalize(input)
	if err := validate(v); err != nil {
		return Vendor{}, err
	}
	created, err := s.repo.Create(ctx, v)
	if err != nil {
		return Vendor{}, err
	}
	s.record(ctx, "vendor.create", created.ID, map[string]any{"code": created.Code})
	return created, nil
}

// Update overwrites the vendor. Concurrent edits are last-write-wins.
func (s *Service) Update(ctx context.Context, id int64, input VendorInput) (Vendor, error) {
	v := normalize(input)
	if err := validate(v); err != nil {
		return Vendor{}, err
	}
	updated, err := s.repo.Update(ctx, id, v)
	if err != nil {
		return Vendor{}, err
	}
	s.record(ctx, "vendor.update", id, map[string]any{"status": updated.Status})
	return updated, nil
}

// Delete removes a vendor that no RFQ or purchase order refers to.
func (s *Service) Delete(ctx context.Context, id int64) error {
	used, err := s.repo.InUse(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return fmt.Errorf("%w: vendor is referenced by RFQs or purchase orders", shared.ErrInvalidState)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "vendor.delete", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   "vendor",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("vendor audit", slog.String("action", action), slog.Any("error", err))
	}
}
