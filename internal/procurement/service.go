package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/procurehub/procurehub/internal/inventory"
	"github.com/procurehub/procurehub/internal/masterdata/items"
	"github.com/procurehub/procurehub/internal/masterdata/vendors"
	"github.com/procurehub/procurehub/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetIndent(ctx context.Context, id int64) (Indent, error)
	GetRFQ(ctx context.Context, id int64) (RFQ, error)
	GetPO(ctx context.Context, id int64) (PurchaseOrder, error)
	GetGRN(ctx context.Context, id int64) (GRN, error)
	GetInspection(ctx context.Context, id int64) (Inspection, error)
	GetInvoice(ctx context.Context, id int64) (Invoice, error)

	ListIndents(ctx context.Context, f Filter) ([]Indent, int, error)
	ListRFQs(ctx context.Context, f Filter) ([]RFQ, int, error)
	ListPOs(ctx context.Context, f Filter) ([]PurchaseOrder, int, error)
	ListGRNs(ctx context.Context, f Filter) ([]GRN, int, error)
	ListInspections(ctx context.Context, f Filter) ([]Inspection, int, error)
	ListInvoices(ctx context.Context, f Filter) ([]Invoice, int, error)

	ReorderCandidates(ctx context.Context) ([]ReorderCandidate, error)
}

// InventoryPort exposes required inventory integration.
type InventoryPort interface {
	PostInbound(ctx context.Context, input inventory.InboundInput) (inventory.Movement, error)
}

// VendorPort looks up vendors.
type VendorPort interface {
	Get(ctx context.Context, id int64) (vendors.Vendor, error)
}

// ItemPort looks up items.
type ItemPort interface {
	Get(ctx context.Context, id int64) (items.Item, error)
}

// Notifier schedules vendor notifications for a new RFQ.
type Notifier interface {
	NotifyRFQ(ctx context.Context, rfqID int64) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates procurement flows.
type Service struct {
	repo      RepositoryPort
	inventory InventoryPort
	vendors   VendorPort
	items     ItemPort
	notifier  Notifier
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// Deps groups the collaborators of Service. Notifier and Audit may be nil.
type Deps struct {
	Repo      RepositoryPort
	Inventory InventoryPort
	Vendors   VendorPort
	Items     ItemPort
	Notifier  Notifier
	Audit     AuditPort
	Logger    *slog.Logger
}

// NewService constructs procurement service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      d.Repo,
		inventory: d.Inventory,
		vendors:   d.Vendors,
		items:     d.Items,
		notifier:  d.Notifier,
		audit:     d.Audit,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) record(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("procurement audit", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) requireItems(ctx context.Context, ids ...int64) error {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		item, err := s.items.Get(ctx, id)
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: item %d does not exist", shared.ErrValidation, id)
		}
		if err != nil {
			return fmt.Errorf("look up item %d: %w", id, err)
		}
		if !item.IsActive {
			return fmt.Errorf("%w: item %s is inactive", shared.ErrValidation, item.Code)
		}
	}
	return nil
}

func (s *Service) requireActiveVendor(ctx context.Context, id int64) (vendors.Vendor, error) {
	v, err := s.vendors.Get(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return vendors.Vendor{}, fmt.Errorf("%w: vendor %d does not exist", shared.ErrValidation, id)
	}
	if err != nil {
		return vendors.Vendor{}, fmt.Errorf("look up vendor %d: %w", id, err)
	}
	if !v.IsActive() {
		return vendors.Vendor{}, fmt.Errorf("%w: vendor %s is inactive", shared.ErrInvalidState, v.Code)
	}
	return v, nil
}

func paginate[T any](list []T, total int, err error, f Filter) ([]T, shared.Pagination, error) {
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(f.Page, f.Limit, total), nil
}

func ptr[T any](v T) *T {
	return &v
}
