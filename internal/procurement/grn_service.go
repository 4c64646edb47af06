package procurement

import (
	"context"
	"fmt"
	"strings"

	"github.com/procurehub/procurehub/internal/shared"
)

func (s *Service) ListGRNs(ctx context.Context, f Filter) ([]GRN, shared.Pagination, error) {
	list, total, err := s.repo.ListGRNs(ctx, f)
	return paginate(list, total, err, f)
}

func (s *Service) GetGRN(ctx context.Context, id int64) (GRN, error) {
	return s.repo.GetGRN(ctx, id)
}

// CreateGRN records a delivery against an approved PO. The PO row stays
// locked while the line counters and the PO status are updated.
func (s *Service) CreateGRN(ctx context.Context, input GRNInput) (GRN, error) {
	if len(input.Lines) == 0 {
		return GRN{}, fmt.Errorf("%w: grn needs at least one line", shared.ErrValidation)
	}
	var created GRN
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockPO(ctx, input.POID)
		if err != nil {
			return err
		}
		if po.Status != POApproved && po.Status != POPartiallyReceived {
			return fmt.Errorf("%w: purchase order %s is %s", shared.ErrInvalidState, po.Number, po.Status)
		}

		grn := GRN{
			Number:       shared.GenerateNumber("GRN", s.now().UTC()),
			POID:         po.ID,
			Status:       GRNPendingInspection,
			ReceivedBy:   shared.ActorID(ctx),
			ReceivedAt:   s.now().UTC(),
			DeliveryNote: strings.TrimSpace(input.DeliveryNote),
			Note:         strings.TrimSpace(input.Note),
		}
		seen := make(map[int64]struct{}, len(input.Lines))
		for _, in := range input.Lines {
			if _, dup := seen[in.POLineID]; dup {
				return fmt.Errorf("%w: po line %d listed twice", shared.ErrValidation, in.POLineID)
			}
			seen[in.POLineID] = struct{}{}
			line, ok := po.Line(in.POLineID)
			if !ok {
				return fmt.Errorf("%w: po line %d does not belong to %s", shared.ErrValidation, in.POLineID, po.Number)
			}
			if in.ReceivedQty <= 0 {
				return fmt.Errorf("%w: received quantity must be positive", shared.ErrValidation)
			}
			if in.ReceivedQty > line.Remaining()+qtyEpsilon {
				return fmt.Errorf("%w: po line %d: received %.3f exceeds outstanding %.3f",
					shared.ErrValidation, line.ID, in.ReceivedQty, line.Remaining())
			}
			if err := tx.SetPOLineReceived(ctx, line.ID, line.ReceivedQty+in.ReceivedQty); err != nil {
				return err
			}
			grn.Lines = append(grn.Lines, GRNLine{POLineID: line.ID, ItemID: line.ItemID, ReceivedQty: in.ReceivedQty})
			for i := range po.Lines {
				if po.Lines[i].ID == line.ID {
					po.Lines[i].ReceivedQty += in.ReceivedQty
				}
			}
		}

		if err := setReceiptStatus(ctx, tx, po); err != nil {
			return err
		}
		created, err = tx.InsertGRN(ctx, grn)
		return err
	})
	if err != nil {
		return GRN{}, err
	}
	s.record(ctx, "grn.create", "grn", created.ID, map[string]any{"number": created.Number, "po_id": created.POID})
	return created, nil
}

func setReceiptStatus(ctx context.Context, tx TxRepository, po PurchaseOrder) error {
	next := po.receiptStatus()
	if next == po.Status {
		return nil
	}
	if err := transition("purchase order", poFlow, po.Status, next); err != nil {
		return err
	}
	po.Status = next
	return tx.SetPOStatus(ctx, po)
}

// DeleteGRN removes an uninspected GRN and rolls the PO counters back.
func (s *Service) DeleteGRN(ctx context.Context, id int64) error {
	var poID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		grn, err := tx.LockGRN(ctx, id)
		if err != nil {
			return err
		}
		if grn.Status != GRNPendingInspection {
			return fmt.Errorf("%w: inspected grns cannot be deleted", shared.ErrInvalidState)
		}
		po, err := tx.LockPO(ctx, grn.POID)
		if err != nil {
			return err
		}
		poID = po.ID
		for _, gl := range grn.Lines {
			for i := range po.Lines {
				if po.Lines[i].ID != gl.POLineID {
					continue
				}
				po.Lines[i].ReceivedQty -= gl.ReceivedQty
				if po.Lines[i].ReceivedQty < qtyEpsilon {
					po.Lines[i].ReceivedQty = 0
				}
				if err := tx.SetPOLineReceived(ctx, po.Lines[i].ID, po.Lines[i].ReceivedQty); err != nil {
					return err
				}
			}
		}
		if err := tx.DeleteGRN(ctx, id); err != nil {
			return err
		}
		return setReceiptStatus(ctx, tx, po)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "grn.delete", "grn", id, map[string]any{"po_id": poID})
	return nil
}
