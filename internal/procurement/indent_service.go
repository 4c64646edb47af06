package procurement

import (
	"context"
	"fmt"
	"strings"

	"github.com/procurehub/procurehub/internal/shared"
)

// SystemDepartment is used for indents raised by the reorder scan.
const SystemDepartment = "STORES"

func (s *Service) ListIndents(ctx context.Context, f Filter) ([]Indent, shared.Pagination, error) {
	list, total, err := s.repo.ListIndents(ctx, f)
	return paginate(list, total, err, f)
}

func (s *Service) GetIndent(ctx context.Context, id int64) (Indent, error) {
	return s.repo.GetIndent(ctx, id)
}

func indentLines(in []IndentLineInput) ([]IndentLine, []int64) {
	lines := make([]IndentLine, 0, len(in))
	ids := make([]int64, 0, len(in))
	for _, l := range in {
		lines = append(lines, IndentLine{ItemID: l.ItemID, Qty: l.Qty, Note: strings.TrimSpace(l.Note)})
		ids = append(ids, l.ItemID)
	}
	return lines, ids
}

func validateIndentLines(lines []IndentLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: indent needs at least one line", shared.ErrValidation)
	}
	for i, l := range lines {
		if l.Qty <= 0 {
			return fmt.Errorf("%w: line %d quantity must be positive", shared.ErrValidation, i+1)
		}
	}
	return nil
}

// CreateIndent raises a PENDING indent for the current user.
func (s *Service) CreateIndent(ctx context.Context, input IndentInput) (Indent, error) {
	lines, ids := indentLines(input.Lines)
	if err := validateIndentLines(lines); err != nil {
		return Indent{}, err
	}
	if err := s.requireItems(ctx, ids...); err != nil {
		return Indent{}, err
	}
	indent := Indent{
		Number:      shared.GenerateNumber("IND", s.now().UTC()),
		RequestedBy: shared.ActorID(ctx),
		Department:  strings.TrimSpace(input.Department),
		Purpose:     strings.TrimSpace(input.Purpose),
		RequiredBy:  input.RequiredBy.Ptr(),
		Status:      IndentPending,
		Lines:       lines,
	}
	return s.insertIndent(ctx, indent)
}

func (s *Service) insertIndent(ctx context.Context, indent Indent) (Indent, error) {
	var created Indent
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertIndent(ctx, indent)
		return err
	})
	if err != nil {
		return Indent{}, err
	}
	s.record(ctx, "indent.create", "indent", created.ID, map[string]any{"number": created.Number, "lines": len(created.Lines)})
	return created, nil
}

// UpdateIndent replaces header and lines of a PENDING indent.
func (s *Service) UpdateIndent(ctx context.Context, id int64, input IndentInput) (Indent, error) {
	lines, ids := indentLines(input.Lines)
	if err := validateIndentLines(lines); err != nil {
		return Indent{}, err
	}
	if err := s.requireItems(ctx, ids...); err != nil {
		return Indent{}, err
	}
	var updated Indent
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		indent, err := tx.LockIndent(ctx, id)
		if err != nil {
			return err
		}
		if indent.Status != IndentPending {
			return fmt.Errorf("%w: only pending indents can be edited", shared.ErrInvalidState)
		}
		indent.Department = strings.TrimSpace(input.Department)
		indent.Purpose = strings.TrimSpace(input.Purpose)
		indent.RequiredBy = input.RequiredBy.Ptr()
		indent.Lines = lines
		if err := tx.UpdateIndent(ctx, indent); err != nil {
			return err
		}
		updated, err = tx.LockIndent(ctx, id)
		return err
	})
	if err != nil {
		return Indent{}, err
	}
	s.record(ctx, "indent.update", "indent", id, nil)
	return updated, nil
}

// ApproveIndent moves a PENDING indent to APPROVED.
func (s *Service) ApproveIndent(ctx context.Context, id int64) (Indent, error) {
	return s.changeIndent(ctx, id, "indent.approve", func(indent *Indent) error {
		if err := transition("indent", indentFlow, indent.Status, IndentApproved); err != nil {
			return err
		}
		now := s.now().UTC()
		indent.Status = IndentApproved
		indent.ApprovedBy = ptr(shared.ActorID(ctx))
		indent.ApprovedAt = &now
		return nil
	})
}

// RejectIndent moves a PENDING indent to REJECTED with remarks.
func (s *Service) RejectIndent(ctx context.Context, id int64, remarks string) (Indent, error) {
	remarks = strings.TrimSpace(remarks)
	if remarks == "" {
		return Indent{}, fmt.Errorf("%w: remarks are required to reject an indent", shared.ErrValidation)
	}
	return s.changeIndent(ctx, id, "indent.reject", func(indent *Indent) error {
		if err := transition("indent", indentFlow, indent.Status, IndentRejected); err != nil {
			return err
		}
		indent.Status = IndentRejected
		indent.Remarks = remarks
		return nil
	})
}

// CancelIndent withdraws a PENDING indent.
func (s *Service) CancelIndent(ctx context.Context, id int64, remarks string) (Indent, error) {
	return s.changeIndent(ctx, id, "indent.cancel", func(indent *Indent) error {
		if err := transition("indent", indentFlow, indent.Status, IndentCancelled); err != nil {
			return err
		}
		indent.Status = IndentCancelled
		indent.Remarks = strings.TrimSpace(remarks)
		return nil
	})
}

func (s *Service) changeIndent(ctx context.Context, id int64, action string, mutate func(*Indent) error) (Indent, error) {
	var result Indent
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		indent, err := tx.LockIndent(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(&indent); err != nil {
			return err
		}
		if err := tx.SetIndentStatus(ctx, indent); err != nil {
			return err
		}
		result = indent
		return nil
	})
	if err != nil {
		return Indent{}, err
	}
	s.record(ctx, action, "indent", id, map[string]any{"status": result.Status})
	return result, nil
}

// DeleteIndent removes a PENDING indent.
func (s *Service) DeleteIndent(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		indent, err := tx.LockIndent(ctx, id)
		if err != nil {
			return err
		}
		if indent.Status != IndentPending {
			return fmt.Errorf("%w: only pending indents can be deleted", shared.ErrInvalidState)
		}
		return tx.DeleteIndent(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "indent.delete", "indent", id, nil)
	return nil
}

// moveIndent applies a side-effect transition from another document's flow.
func moveIndent(ctx context.Context, tx TxRepository, id *int64, to IndentStatus) error {
	if id == nil {
		return nil
	}
	indent, err := tx.LockIndent(ctx, *id)
	if err != nil {
		return err
	}
	if err := transition("indent", indentFlow, indent.Status, to); err != nil {
		return err
	}
	indent.Status = to
	return tx.SetIndentStatus(ctx, indent)
}

// releaseIndent hands an IN_PROCUREMENT indent back to APPROVED once no open
// RFQ or live purchase order refers to it any more.
func releaseIndent(ctx context.Context, tx TxRepository, id *int64) error {
	if id == nil {
		return nil
	}
	indent, err := tx.LockIndent(ctx, *id)
	if err != nil {
		return err
	}
	if indent.Status != IndentInProcurement {
		return nil
	}
	inUse, err := tx.IndentInUse(ctx, *id)
	if err != nil || inUse {
		return err
	}
	return moveIndent(ctx, tx, id, IndentApproved)
}

// RaiseReorderIndents creates one system indent covering every active item at
// or under its reorder level that no open indent already requests. Each line
// orders up to twice the reorder level. It returns the number of lines raised.
func (s *Service) RaiseReorderIndents(ctx context.Context) (Indent, int, error) {
	candidates, err := s.repo.ReorderCandidates(ctx)
	if err != nil {
		return Indent{}, 0, err
	}
	var lines []IndentLine
	for _, c := range candidates {
		if !c.Due() {
			continue
		}
		qty := 2*c.ReorderLevel - c.QuantityOnHand
		if qty <= qtyEpsilon {
			continue
		}
		lines = append(lines, IndentLine{ItemID: c.ItemID, Qty: qty, Note: "reorder level reached"})
	}
	if len(lines) == 0 {
		return Indent{}, 0, nil
	}
	indent, err := s.insertIndent(ctx, Indent{
		Number:     shared.GenerateNumber("IND", s.now().UTC()),
		Department: SystemDepartment,
		Purpose:    "Automatic reorder",
		Status:     IndentPending,
		Lines:      lines,
	})
	if err != nil {
		return Indent{}, 0, err
	}
	return indent, len(lines), nil
}
