package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/procurehub/procurehub/internal/shared"
)

func (s *Service) ListRFQs(ctx context.Context, f Filter) ([]RFQ, shared.Pagination, error) {
	list, total, err := s.repo.ListRFQs(ctx, f)
	return paginate(list, total, err, f)
}

func (s *Service) GetRFQ(ctx context.Context, id int64) (RFQ, error) {
	return s.repo.GetRFQ(ctx, id)
}

// CreateRFQ opens an RFQ for the invited vendors. Lines are copied from the
// indent unless given explicitly; a linked indent moves to IN_PROCUREMENT.
func (s *Service) CreateRFQ(ctx context.Context, input RFQInput) (RFQ, error) {
	vendorIDs := uniqueIDs(input.VendorIDs)
	if len(vendorIDs) == 0 {
		return RFQ{}, fmt.Errorf("%w: at least one vendor must be invited", shared.ErrValidation)
	}
	for _, id := range vendorIDs {
		if _, err := s.requireActiveVendor(ctx, id); err != nil {
			return RFQ{}, err
		}
	}
	if input.IndentID == nil && len(input.Lines) == 0 {
		return RFQ{}, fmt.Errorf("%w: rfq needs an indent or explicit lines", shared.ErrValidation)
	}
	lines := make([]RFQLine, 0, len(input.Lines))
	ids := make([]int64, 0, len(input.Lines))
	for _, l := range input.Lines {
		lines = append(lines, RFQLine{ItemID: l.ItemID, Qty: l.Qty})
		ids = append(ids, l.ItemID)
	}
	if err := s.requireItems(ctx, ids...); err != nil {
		return RFQ{}, err
	}

	var created RFQ
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines := lines
		if input.IndentID != nil {
			indent, err := tx.LockIndent(ctx, *input.IndentID)
			if err != nil {
				return err
			}
			if indent.Status != IndentApproved {
				return fmt.Errorf("%w: indent %s is %s, expected APPROVED", shared.ErrInvalidState, indent.Number, indent.Status)
			}
			if len(lines) == 0 {
				for _, l := range indent.Lines {
					lines = append(lines, RFQLine{ItemID: l.ItemID, Qty: l.Qty})
				}
			}
			if err := moveIndent(ctx, tx, input.IndentID, IndentInProcurement); err != nil {
				return err
			}
		}
		var err error
		created, err = tx.InsertRFQ(ctx, RFQ{
			Number:    shared.GenerateNumber("RFQ", s.now().UTC()),
			IndentID:  input.IndentID,
			Status:    RFQOpen,
			DueDate:   input.DueDate.Ptr(),
			Note:      strings.TrimSpace(input.Note),
			VendorIDs: vendorIDs,
			Lines:     lines,
			CreatedBy: shared.ActorID(ctx),
		})
		return err
	})
	if err != nil {
		return RFQ{}, err
	}
	s.record(ctx, "rfq.create", "rfq", created.ID, map[string]any{"number": created.Number, "vendors": vendorIDs})
	if s.notifier != nil {
		if err := s.notifier.NotifyRFQ(ctx, created.ID); err != nil {
			s.logger.Warn("enqueue rfq notification", slog.Int64("rfq_id", created.ID), slog.Any("error", err))
		}
	}
	return created, nil
}

// SubmitQuote records an invited vendor's prices for every RFQ line.
func (s *Service) SubmitQuote(ctx context.Context, rfqID int64, input QuoteInput) (Quote, error) {
	if _, err := s.requireActiveVendor(ctx, input.VendorID); err != nil {
		return Quote{}, err
	}
	var created Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rfq, err := tx.LockRFQ(ctx, rfqID)
		if err != nil {
			return err
		}
		if rfq.Status != RFQOpen {
			return fmt.Errorf("%w: rfq %s is %s", shared.ErrInvalidState, rfq.Number, rfq.Status)
		}
		if !rfq.Invited(input.VendorID) {
			return fmt.Errorf("%w: vendor %d was not invited to rfq %s", shared.ErrValidation, input.VendorID, rfq.Number)
		}
		for _, q := range rfq.Quotes {
			if q.VendorID == input.VendorID {
				return fmt.Errorf("%w: vendor %d already quoted", shared.ErrDuplicate, input.VendorID)
			}
		}
		quote, err := priceQuote(rfq, input)
		if err != nil {
			return err
		}
		created, err = tx.InsertQuote(ctx, quote)
		return err
	})
	if err != nil {
		return Quote{}, err
	}
	s.record(ctx, "rfq.quote", "rfq", rfqID, map[string]any{"vendor_id": input.VendorID, "total": created.Total})
	return created, nil
}

func priceQuote(rfq RFQ, input QuoteInput) (Quote, error) {
	prices := make(map[int64]float64, len(input.Lines))
	for _, l := range input.Lines {
		if _, dup := prices[l.RFQLineID]; dup {
			return Quote{}, fmt.Errorf("%w: rfq line %d priced twice", shared.ErrValidation, l.RFQLineID)
		}
		if l.UnitPrice < 0 {
			return Quote{}, fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
		}
		prices[l.RFQLineID] = l.UnitPrice
	}
	quote := Quote{
		RFQID:        rfq.ID,
		VendorID:     input.VendorID,
		LeadTimeDays: input.LeadTimeDays,
		Note:         strings.TrimSpace(input.Note),
	}
	var total float64
	for _, line := range rfq.Lines {
		price, ok := prices[line.ID]
		if !ok {
			return Quote{}, fmt.Errorf("%w: rfq line %d has no price", shared.ErrValidation, line.ID)
		}
		delete(prices, line.ID)
		total += line.Qty * price
		quote.Lines = append(quote.Lines, QuoteLine{RFQLineID: line.ID, ItemID: line.ItemID, UnitPrice: price})
	}
	if len(prices) > 0 {
		return Quote{}, fmt.Errorf("%w: quote prices lines outside rfq %s", shared.ErrValidation, rfq.Number)
	}
	quote.Total = roundMoney(total)
	return quote, nil
}

// AwardRFQ selects the winning quote.
func (s *Service) AwardRFQ(ctx context.Context, id int64, input AwardInput) (RFQ, error) {
	var result RFQ
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rfq, err := tx.LockRFQ(ctx, id)
		if err != nil {
			return err
		}
		if err := transition("rfq", rfqFlow, rfq.Status, RFQAwarded); err != nil {
			return err
		}
		if _, ok := rfq.Quote(input.QuoteID); !ok {
			return fmt.Errorf("%w: quote %d does not belong to rfq %s", shared.ErrValidation, input.QuoteID, rfq.Number)
		}
		rfq.Status = RFQAwarded
		rfq.AwardedQuoteID = ptr(input.QuoteID)
		if err := tx.SetRFQStatus(ctx, rfq); err != nil {
			return err
		}
		result = rfq
		return nil
	})
	if err != nil {
		return RFQ{}, err
	}
	s.record(ctx, "rfq.award", "rfq", id, map[string]any{"quote_id": input.QuoteID})
	return result, nil
}

// CancelRFQ cancels an OPEN RFQ and hands its indent back to purchasing.
func (s *Service) CancelRFQ(ctx context.Context, id int64) (RFQ, error) {
	var result RFQ
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rfq, err := tx.LockRFQ(ctx, id)
		if err != nil {
			return err
		}
		if err := transition("rfq", rfqFlow, rfq.Status, RFQCancelled); err != nil {
			return err
		}
		rfq.Status = RFQCancelled
		if err := tx.SetRFQStatus(ctx, rfq); err != nil {
			return err
		}
		result = rfq
		return releaseIndent(ctx, tx, rfq.IndentID)
	})
	if err != nil {
		return RFQ{}, err
	}
	s.record(ctx, "rfq.cancel", "rfq", id, nil)
	return result, nil
}

// DeleteRFQ removes an OPEN RFQ that has no quotes.
func (s *Service) DeleteRFQ(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rfq, err := tx.LockRFQ(ctx, id)
		if err != nil {
			return err
		}
		if rfq.Status != RFQOpen || len(rfq.Quotes) > 0 {
			return fmt.Errorf("%w: only open rfqs without quotes can be deleted", shared.ErrInvalidState)
		}
		if err := tx.DeleteRFQ(ctx, id); err != nil {
			return err
		}
		return releaseIndent(ctx, tx, rfq.IndentID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "rfq.delete", "rfq", id, nil)
	return nil
}

// NotifyVendors records one notification per invited vendor of an RFQ and
// returns how many were sent.
func (s *Service) NotifyVendors(ctx context.Context, rfqID int64) (int, error) {
	rfq, err := s.repo.GetRFQ(ctx, rfqID)
	if err != nil {
		return 0, err
	}
	if rfq.Status != RFQOpen {
		s.logger.Info("rfq no longer open, skipping notification", slog.String("rfq", rfq.Number), slog.String("status", string(rfq.Status)))
		return 0, nil
	}
	sent := 0
	for _, id := range rfq.VendorIDs {
		vendor, err := s.vendors.Get(ctx, id)
		if err != nil {
			s.logger.Warn("rfq vendor lookup", slog.Int64("vendor_id", id), slog.Any("error", err))
			continue
		}
		if vendor.Email == "" {
			s.logger.Warn("vendor has no email", slog.String("vendor", vendor.Code))
			continue
		}
		s.logger.Info("rfq notification",
			slog.String("rfq", rfq.Number),
			slog.String("vendor", vendor.Code),
			slog.String("email", vendor.Email),
			slog.Int("lines", len(rfq.Lines)),
		)
		s.record(ctx, "rfq.notify", "rfq", rfq.ID, map[string]any{"vendor_id": vendor.ID, "email": vendor.Email})
		sent++
	}
	return sent, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id <= 0 {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
