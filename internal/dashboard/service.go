package dashboard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/procurehub/procurehub/internal/procurement"
)

// Store is the read port behind the summary.
type Store interface {
	IndentsByStatus(ctx context.Context, status string) (int, error)
	RFQsByStatus(ctx context.Context, status string) (int, error)
	POsByStatus(ctx context.Context, status string) (int, error)
	GRNsByStatus(ctx context.Context, status string) (int, error)
	UnpaidInvoices(ctx context.Context, statuses []string) (InvoiceExposure, error)
}

// LowStockCounter is satisfied by the item master service.
type LowStockCounter interface {
	CountLowStock(ctx context.Context) (int, error)
}

// Service assembles the dashboard summary.
type Service struct {
	store Store
	items LowStockCounter
	now   func() time.Time
}

// NewService constructs the service.
func NewService(store Store, items LowStockCounter) *Service {
	return &Service{store: store, items: items, now: time.Now}
}

// Summary runs every counter concurrently. The first failure cancels the rest.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	var out Summary
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		out.LowStockItems, err = s.items.CountLowStock(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.PendingIndents, err = s.store.IndentsByStatus(ctx, string(procurement.IndentPending))
		return err
	})
	g.Go(func() (err error) {
		out.OpenRFQs, err = s.store.RFQsByStatus(ctx, string(procurement.RFQOpen))
		return err
	})
	g.Go(func() (err error) {
		out.POsAwaitingApproval, err = s.store.POsByStatus(ctx, string(procurement.PODraft))
		return err
	})
	g.Go(func() (err error) {
		out.GRNsPendingInspection, err = s.store.GRNsByStatus(ctx, string(procurement.GRNPendingInspection))
		return err
	})
	g.Go(func() error {
		exposure, err := s.store.UnpaidInvoices(ctx, []string{
			string(procurement.InvoicePending),
			string(procurement.InvoiceApproved),
		})
		if err != nil {
			return err
		}
		out.UnpaidInvoices = exposure.Count
		out.UnpaidInvoiceAmount = exposure.Amount
		return nil
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	out.GeneratedAt = s.now().UTC()
	return out, nil
}
