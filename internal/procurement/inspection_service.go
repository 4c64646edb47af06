package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/procurehub/procurehub/internal/inventory"
	"github.com/procurehub/procurehub/internal/shared"
)

const inspectionRefModule = "inspection"

func (s *Service) ListInspections(ctx context.Context, f Filter) ([]Inspection, shared.Pagination, error) {
	list, total, err := s.repo.ListInspections(ctx, f)
	return paginate(list, total, err, f)
}

func (s *Service) GetInspection(ctx context.Context, id int64) (Inspection, error) {
	return s.repo.GetInspection(ctx, id)
}

// CreateInspection records the quality check of a GRN. Each GRN line must be
// inspected exactly once. Accepted quantities are posted to stock after the
// inspection is committed; a failed posting is logged and can be retried with
// PostStock.
func (s *Service) CreateInspection(ctx context.Context, input InspectionInput) (Inspection, error) {
	var created Inspection
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		grn, err := tx.LockGRN(ctx, input.GRNID)
		if err != nil {
			return err
		}
		if err := transition("grn", grnFlow, grn.Status, GRNInspected); err != nil {
			return err
		}
		lines, err := inspectLines(grn, input.Lines)
		if err != nil {
			return err
		}
		created, err = tx.InsertInspection(ctx, Inspection{
			Number:      shared.GenerateNumber("INS", s.now().UTC()),
			GRNID:       grn.ID,
			Result:      inspectionResult(lines),
			InspectedBy: shared.ActorID(ctx),
			InspectedAt: s.now().UTC(),
			Remarks:     strings.TrimSpace(input.Remarks),
			Lines:       lines,
		})
		if err != nil {
			return err
		}
		if err := tx.SetGRNStatus(ctx, grn.ID, GRNInspected); err != nil {
			return err
		}
		_, err = closePOIfSettled(ctx, tx, grn.POID)
		return err
	})
	if err != nil {
		return Inspection{}, err
	}
	s.record(ctx, "inspection.create", "inspection", created.ID, map[string]any{"grn_id": created.GRNID, "result": created.Result})
	if _, err := s.postStock(ctx, created); err != nil {
		s.logger.Error("post accepted stock", slog.String("inspection", created.Number), slog.Any("error", err))
	}
	return created, nil
}

func inspectLines(grn GRN, in []InspectionLineInput) ([]InspectionLine, error) {
	byLine := make(map[int64]InspectionLineInput, len(in))
	for _, l := range in {
		if _, dup := byLine[l.GRNLineID]; dup {
			return nil, fmt.Errorf("%w: grn line %d inspected twice", shared.ErrValidation, l.GRNLineID)
		}
		byLine[l.GRNLineID] = l
	}
	lines := make([]InspectionLine, 0, len(grn.Lines))
	for _, gl := range grn.Lines {
		l, ok := byLine[gl.ID]
		if !ok {
			return nil, fmt.Errorf("%w: grn line %d was not inspected", shared.ErrValidation, gl.ID)
		}
		delete(byLine, gl.ID)
		if l.InspectedQty < 0 || l.AcceptedQty < 0 || l.RejectedQty < 0 {
			return nil, fmt.Errorf("%w: grn line %d: quantities must not be negative", shared.ErrValidation, gl.ID)
		}
		if l.InspectedQty > gl.ReceivedQty+qtyEpsilon {
			return nil, fmt.Errorf("%w: grn line %d: inspected %.3f exceeds received %.3f",
				shared.ErrValidation, gl.ID, l.InspectedQty, gl.ReceivedQty)
		}
		if l.AcceptedQty+l.RejectedQty > l.InspectedQty+qtyEpsilon {
			return nil, fmt.Errorf("%w: grn line %d: accepted plus rejected exceeds inspected",
				shared.ErrValidation, gl.ID)
		}
		reason := strings.TrimSpace(l.Reason)
		if l.RejectedQty > qtyEpsilon && reason == "" {
			return nil, fmt.Errorf("%w: grn line %d: rejected quantity needs a reason", shared.ErrValidation, gl.ID)
		}
		lines = append(lines, InspectionLine{
			GRNLineID:    gl.ID,
			ItemID:       gl.ItemID,
			InspectedQty: l.InspectedQty,
			AcceptedQty:  l.AcceptedQty,
			RejectedQty:  l.RejectedQty,
			Reason:       reason,
		})
	}
	if len(byLine) > 0 {
		return nil, fmt.Errorf("%w: inspection lists lines outside grn %s", shared.ErrValidation, grn.Number)
	}
	return lines, nil
}

func inspectionResult(lines []InspectionLine) InspectionResult {
	var inspected, accepted, rejected float64
	for _, l := range lines {
		inspected += l.InspectedQty
		accepted += l.AcceptedQty
		rejected += l.RejectedQty
	}
	switch {
	case accepted <= qtyEpsilon:
		return ResultRejected
	case rejected <= qtyEpsilon && accepted+qtyEpsilon >= inspected:
		return ResultAccepted
	default:
		return ResultPartial
	}
}

// StockCode is the idempotency key of the movement posted for one line.
func StockCode(inspectionNumber string, grnLineID int64) string {
	return inspectionNumber + "-L" + strconv.FormatInt(grnLineID, 10)
}

// PostStock posts the accepted quantities of an inspection to inventory.
// Lines already posted are returned unchanged.
func (s *Service) PostStock(ctx context.Context, id int64) ([]inventory.Movement, error) {
	insp, err := s.repo.GetInspection(ctx, id)
	if err != nil {
		return nil, err
	}
	movements, err := s.postStock(ctx, insp)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "inspection.post_stock", "inspection", id, map[string]any{"movements": len(movements)})
	return movements, nil
}

func (s *Service) postStock(ctx context.Context, insp Inspection) ([]inventory.Movement, error) {
	var out []inventory.Movement
	for _, l := range insp.Lines {
		if l.AcceptedQty <= qtyEpsilon {
			continue
		}
		m, err := s.inventory.PostInbound(ctx, inventory.InboundInput{
			Code:      StockCode(insp.Number, l.GRNLineID),
			ItemID:    l.ItemID,
			Qty:       l.AcceptedQty,
			Note:      "accepted on inspection " + insp.Number,
			ActorID:   shared.ActorID(ctx),
			RefModule: inspectionRefModule,
			RefID:     strconv.FormatInt(insp.ID, 10),
		})
		if err != nil {
			return out, fmt.Errorf("post grn line %d: %w", l.GRNLineID, err)
		}
		out = append(out, m)
	}
	return out, nil
}
