package procurement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/procurehub/procurehub/internal/shared"
)

func (s *Service) ListInvoices(ctx context.Context, f Filter) ([]Invoice, shared.Pagination, error) {
	list, total, err := s.repo.ListInvoices(ctx, f)
	return paginate(list, total, err, f)
}

func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// CreateInvoice bills the accepted quantities of an inspection at the PO
// unit prices. Each inspection carries at most one invoice that is not
// REJECTED.
func (s *Service) CreateInvoice(ctx context.Context, input InvoiceInput) (Invoice, error) {
	now := s.now().UTC()
	invoiceDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if d := input.InvoiceDate.Ptr(); d != nil {
		invoiceDate = *d
	}
	dueDate := input.DueDate.Ptr()
	if dueDate != nil && dueDate.Before(invoiceDate) {
		return Invoice{}, fmt.Errorf("%w: due date precedes invoice date", shared.ErrValidation)
	}

	var created Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		insp, err := tx.GetInspection(ctx, input.InspectionID)
		if err != nil {
			return err
		}
		if insp.Result == ResultRejected {
			return fmt.Errorf("%w: inspection %s accepted nothing", shared.ErrInvalidState, insp.Number)
		}
		grn, err := tx.LockGRN(ctx, insp.GRNID)
		if err != nil {
			return err
		}
		po, err := tx.LockPO(ctx, grn.POID)
		if err != nil {
			return err
		}
		if po.Status == POCancelled || po.Status == POClosed {
			return fmt.Errorf("%w: purchase order %s is %s", shared.ErrInvalidState, po.Number, po.Status)
		}
		subtotal, err := invoiceSubtotal(insp, grn, po)
		if err != nil {
			return err
		}
		tax := roundMoney(subtotal * po.TaxPercent / 100)
		created, err = tx.InsertInvoice(ctx, Invoice{
			Number:          shared.GenerateNumber("INV", now),
			VendorInvoiceNo: strings.TrimSpace(input.VendorInvoiceNo),
			POID:            po.ID,
			GRNID:           grn.ID,
			InspectionID:    insp.ID,
			VendorID:        po.VendorID,
			Subtotal:        subtotal,
			TaxAmount:       tax,
			Total:           roundMoney(subtotal + tax),
			Status:          InvoicePending,
			InvoiceDate:     invoiceDate,
			DueDate:         dueDate,
		})
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, "invoice.create", "invoice", created.ID, map[string]any{"number": created.Number, "total": created.Total})
	return created, nil
}

func invoiceSubtotal(insp Inspection, grn GRN, po PurchaseOrder) (float64, error) {
	poLineOf := make(map[int64]int64, len(grn.Lines))
	for _, gl := range grn.Lines {
		poLineOf[gl.ID] = gl.POLineID
	}
	var subtotal float64
	for _, l := range insp.Lines {
		line, ok := po.Line(poLineOf[l.GRNLineID])
		if !ok {
			return 0, fmt.Errorf("%w: grn line %d has no purchase order line", shared.ErrInvalidState, l.GRNLineID)
		}
		subtotal += l.AcceptedQty * line.UnitPrice
	}
	return roundMoney(subtotal), nil
}

// ApproveInvoice clears a PENDING invoice for payment.
func (s *Service) ApproveInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.changeInvoice(ctx, id, "invoice.approve", InvoiceApproved)
}

// RejectInvoice disputes a PENDING invoice. The inspection it billed can be
// invoiced again.
func (s *Service) RejectInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.changeInvoice(ctx, id, "invoice.reject", InvoiceRejected)
}

// MarkInvoicePaid settles an APPROVED invoice. Paying the last open invoice
// of a fully received PO closes the PO and its indent.
func (s *Service) MarkInvoicePaid(ctx context.Context, id int64) (Invoice, error) {
	return s.changeInvoice(ctx, id, "invoice.paid", InvoicePaid)
}

func (s *Service) changeInvoice(ctx context.Context, id int64, action string, to InvoiceStatus) (Invoice, error) {
	var (
		result   Invoice
		poClosed bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		if err := transition("invoice", invoiceFlow, inv.Status, to); err != nil {
			return err
		}
		inv.Status = to
		if to == InvoicePaid {
			paid := s.now().UTC()
			inv.PaidAt = &paid
		}
		if err := tx.SetInvoiceStatus(ctx, inv); err != nil {
			return err
		}
		result = inv
		if to != InvoicePaid {
			return nil
		}
		poClosed, err = closePOIfSettled(ctx, tx, inv.POID)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, action, "invoice", id, map[string]any{"total": result.Total, "po_closed": poClosed})
	return result, nil
}
