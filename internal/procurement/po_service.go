package procurement

import (
	"context"
	"fmt"
	"strings"

	"github.com/procurehub/procurehub/internal/shared"
)

// DefaultCurrency applies when a purchase order does not name one.
const DefaultCurrency = "INR"

func (s *Service) ListPOs(ctx context.Context, f Filter) ([]PurchaseOrder, shared.Pagination, error) {
	list, total, err := s.repo.ListPOs(ctx, f)
	return paginate(list, total, err, f)
}

func (s *Service) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetPO(ctx, id)
}

func poLines(in []POLineInput) ([]POLine, []int64, error) {
	lines := make([]POLine, 0, len(in))
	ids := make([]int64, 0, len(in))
	for i, l := range in {
		if l.Qty <= 0 {
			return nil, nil, fmt.Errorf("%w: line %d quantity must be positive", shared.ErrValidation, i+1)
		}
		if l.UnitPrice < 0 {
			return nil, nil, fmt.Errorf("%w: line %d unit price must not be negative", shared.ErrValidation, i+1)
		}
		lines = append(lines, POLine{ItemID: l.ItemID, Qty: l.Qty, UnitPrice: l.UnitPrice})
		ids = append(ids, l.ItemID)
	}
	return lines, ids, nil
}

func applyPOHeader(po *PurchaseOrder, input POInput) {
	po.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	if po.Currency == "" {
		po.Currency = DefaultCurrency
	}
	po.TaxPercent = input.TaxPercent
	po.ExpectedDate = input.ExpectedDate.Ptr()
	po.PaymentTerms = strings.TrimSpace(input.PaymentTerms)
	po.Note = strings.TrimSpace(input.Note)
}

// CreatePO raises a DRAFT purchase order. With FromRFQID the vendor and
// prices come from the awarded quote and the RFQ is closed; otherwise the
// vendor and lines are taken from input.
func (s *Service) CreatePO(ctx context.Context, input POInput) (PurchaseOrder, error) {
	if input.FromRFQID != nil {
		return s.createPOFromRFQ(ctx, *input.FromRFQID, input)
	}
	if input.VendorID == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: vendor_id is required", shared.ErrValidation)
	}
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: purchase order needs at least one line", shared.ErrValidation)
	}
	lines, ids, err := poLines(input.Lines)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if _, err := s.requireActiveVendor(ctx, input.VendorID); err != nil {
		return PurchaseOrder{}, err
	}
	if err := s.requireItems(ctx, ids...); err != nil {
		return PurchaseOrder{}, err
	}
	po := PurchaseOrder{
		Number:    shared.GenerateNumber("PO", s.now().UTC()),
		VendorID:  input.VendorID,
		IndentID:  input.IndentID,
		Status:    PODraft,
		CreatedBy: shared.ActorID(ctx),
		Lines:     lines,
	}
	applyPOHeader(&po, input)

	var created PurchaseOrder
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if po.IndentID != nil {
			indent, err := tx.LockIndent(ctx, *po.IndentID)
			if err != nil {
				return err
			}
			if indent.Status != IndentApproved {
				return fmt.Errorf("%w: indent %s is %s, expected APPROVED", shared.ErrInvalidState, indent.Number, indent.Status)
			}
			if err := moveIndent(ctx, tx, po.IndentID, IndentInProcurement); err != nil {
				return err
			}
		}
		var err error
		created, err = tx.InsertPO(ctx, po)
		return err
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, "po.create", "purchase_order", created.ID, map[string]any{"number": created.Number, "total": created.Total})
	return created, nil
}

func (s *Service) createPOFromRFQ(ctx context.Context, rfqID int64, input POInput) (PurchaseOrder, error) {
	if len(input.Lines) > 0 || input.VendorID != 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: vendor and lines come from the awarded quote", shared.ErrValidation)
	}
	preview, err := s.repo.GetRFQ(ctx, rfqID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if preview.AwardedQuoteID == nil {
		return PurchaseOrder{}, fmt.Errorf("%w: rfq %s has not been awarded", shared.ErrInvalidState, preview.Number)
	}
	awarded, _ := preview.Quote(*preview.AwardedQuoteID)
	if _, err := s.requireActiveVendor(ctx, awarded.VendorID); err != nil {
		return PurchaseOrder{}, err
	}

	var created PurchaseOrder
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rfq, err := tx.LockRFQ(ctx, rfqID)
		if err != nil {
			return err
		}
		if rfq.Status != RFQAwarded || rfq.AwardedQuoteID == nil {
			return fmt.Errorf("%w: rfq %s is %s, expected AWARDED", shared.ErrInvalidState, rfq.Number, rfq.Status)
		}
		quote, ok := rfq.Quote(*rfq.AwardedQuoteID)
		if !ok {
			return fmt.Errorf("%w: awarded quote of rfq %s", shared.ErrNotFound, rfq.Number)
		}
		qty := make(map[int64]float64, len(rfq.Lines))
		for _, l := range rfq.Lines {
			qty[l.ID] = l.Qty
		}
		po := PurchaseOrder{
			Number:    shared.GenerateNumber("PO", s.now().UTC()),
			VendorID:  quote.VendorID,
			RFQID:     ptr(rfq.ID),
			IndentID:  rfq.IndentID,
			Status:    PODraft,
			CreatedBy: shared.ActorID(ctx),
		}
		for _, l := range quote.Lines {
			po.Lines = append(po.Lines, POLine{ItemID: l.ItemID, Qty: qty[l.RFQLineID], UnitPrice: l.UnitPrice})
		}
		applyPOHeader(&po, input)
		if input.IndentID != nil && (po.IndentID == nil || *po.IndentID != *input.IndentID) {
			return fmt.Errorf("%w: indent does not match rfq %s", shared.ErrValidation, rfq.Number)
		}

		rfq.Status = RFQClosed
		if err := tx.SetRFQStatus(ctx, rfq); err != nil {
			return err
		}
		created, err = tx.InsertPO(ctx, po)
		return err
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, "po.create", "purchase_order", created.ID, map[string]any{"number": created.Number, "rfq_id": rfqID, "total": created.Total})
	return created, nil
}

// UpdatePO edits a DRAFT purchase order. Orders raised from a quote keep
// their vendor and lines.
func (s *Service) UpdatePO(ctx context.Context, id int64, input POInput) (PurchaseOrder, error) {
	if input.FromRFQID != nil {
		return PurchaseOrder{}, fmt.Errorf("%w: from_rfq_id cannot be changed", shared.ErrValidation)
	}
	lines, ids, err := poLines(input.Lines)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if input.VendorID != 0 {
		if _, err := s.requireActiveVendor(ctx, input.VendorID); err != nil {
			return PurchaseOrder{}, err
		}
	}
	if err := s.requireItems(ctx, ids...); err != nil {
		return PurchaseOrder{}, err
	}

	var updated PurchaseOrder
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockPO(ctx, id)
		if err != nil {
			return err
		}
		if po.Status != PODraft {
			return fmt.Errorf("%w: only draft purchase orders can be edited", shared.ErrInvalidState)
		}
		if po.RFQID != nil && (len(lines) > 0 || (input.VendorID != 0 && input.VendorID != po.VendorID)) {
			return fmt.Errorf("%w: vendor and lines of a quoted purchase order are fixed", shared.ErrInvalidState)
		}
		if input.VendorID != 0 {
			po.VendorID = input.VendorID
		}
		if len(lines) > 0 {
			po.Lines = lines
		}
		applyPOHeader(&po, input)
		if err := tx.UpdatePO(ctx, po); err != nil {
			return err
		}
		updated, err = tx.LockPO(ctx, id)
		return err
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, "po.update", "purchase_order", id, map[string]any{"total": updated.Total})
	return updated, nil
}

// ApprovePO releases a DRAFT purchase order to the vendor.
func (s *Service) ApprovePO(ctx context.Context, id int64) (PurchaseOrder, error) {
	current, err := s.repo.GetPO(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if _, err := s.requireActiveVendor(ctx, current.VendorID); err != nil {
		return PurchaseOrder{}, err
	}
	var result PurchaseOrder
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockPO(ctx, id)
		if err != nil {
			return err
		}
		if err := transition("purchase order", poFlow, po.Status, POApproved); err != nil {
			return err
		}
		if len(po.Lines) == 0 {
			return fmt.Errorf("%w: purchase order has no lines", shared.ErrValidation)
		}
		now := s.now().UTC()
		po.Status = POApproved
		po.ApprovedBy = ptr(shared.ActorID(ctx))
		po.ApprovedAt = &now
		result = po
		return tx.SetPOStatus(ctx, po)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, "po.approve", "purchase_order", id, map[string]any{"total": result.Total})
	return result, nil
}

// CancelPO cancels a purchase order against which nothing was received.
func (s *Service) CancelPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	var result PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockPO(ctx, id)
		if err != nil {
			return err
		}
		if po.anythingReceived() {
			return fmt.Errorf("%w: goods were already received against %s", shared.ErrInvalidState, po.Number)
		}
		if err := transition("purchase order", poFlow, po.Status, POCancelled); err != nil {
			return err
		}
		po.Status = POCancelled
		if err := tx.SetPOStatus(ctx, po); err != nil {
			return err
		}
		result = po
		return releaseIndent(ctx, tx, po.IndentID)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, "po.cancel", "purchase_order", id, nil)
	return result, nil
}

// DeletePO removes a DRAFT purchase order.
func (s *Service) DeletePO(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockPO(ctx, id)
		if err != nil {
			return err
		}
		if po.Status != PODraft {
			return fmt.Errorf("%w: only draft purchase orders can be deleted", shared.ErrInvalidState)
		}
		if err := tx.DeletePO(ctx, id); err != nil {
			return err
		}
		return releaseIndent(ctx, tx, po.IndentID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "po.delete", "purchase_order", id, nil)
	return nil
}

// closePOIfSettled closes a fully received PO once nothing is left to pay
// or inspect, and closes its indent with it.
func closePOIfSettled(ctx context.Context, tx TxRepository, poID int64) (bool, error) {
	po, err := tx.LockPO(ctx, poID)
	if err != nil {
		return false, err
	}
	if po.Status != POReceived {
		return false, nil
	}
	open, err := tx.OpenPayables(ctx, poID)
	if err != nil || open > 0 {
		return false, err
	}
	po.Status = POClosed
	if err := tx.SetPOStatus(ctx, po); err != nil {
		return false, err
	}
	if po.IndentID != nil {
		indent, err := tx.LockIndent(ctx, *po.IndentID)
		if err != nil {
			return false, err
		}
		if indent.Status == IndentInProcurement {
			if err := moveIndent(ctx, tx, po.IndentID, IndentClosed); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}
