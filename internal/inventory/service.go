package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/procurehub/procurehub/internal/shared"
)

const qtyEpsilon = 1e-9

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ItemCache drops cached items whose stock changed.
type ItemCache interface {
	Invalidate(ctx context.Context, id int64)
}

// Service coordinates stock movements. Every movement locks the item row,
// writes the new on-hand quantity and the movement in one transaction.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	cache  ItemCache
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. audit and cache may be nil.
func NewService(repo RepositoryPort, audit AuditPort, cache ItemCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger, now: time.Now}
}

// PostInbound adds accepted goods to stock. Posting the same code twice
// returns the original movement without touching stock.
func (s *Service) PostInbound(ctx context.Context, input InboundInput) (Movement, error) {
	if input.ItemID <= 0 {
		return Movement{}, fmt.Errorf("%w: item required", shared.ErrValidation)
	}
	if input.Qty <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	return s.post(ctx, movementParams{
		Code:      input.Code,
		ItemID:    input.ItemID,
		Change:    input.Qty,
		Type:      MovementIn,
		Note:      input.Note,
		ActorID:   input.ActorID,
		RefModule: input.RefModule,
		RefID:     input.RefID,
	})
}

// Issue hands stock out of the store, optionally against an indent.
func (s *Service) Issue(ctx context.Context, input IssueInput) (Movement, error) {
	if input.Qty <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	params := movementParams{
		ItemID:  input.ItemID,
		Change:  -input.Qty,
		Type:    MovementOut,
		Note:    input.Note,
		ActorID: shared.ActorID(ctx),
	}
	if input.IndentID != nil {
		params.RefModule = "indent"
		params.RefID = strconv.FormatInt(*input.IndentID, 10)
	}
	return s.post(ctx, params)
}

// Adjust applies a signed correction.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (Movement, error) {
	if math.Abs(input.Qty) < qtyEpsilon {
		return Movement{}, ErrInvalidQuantity
	}
	return s.post(ctx, movementParams{
		ItemID:  input.ItemID,
		Change:  input.Qty,
		Type:    MovementAdjust,
		Note:    input.Note,
		ActorID: shared.ActorID(ctx),
	})
}

// ListMovements pages through the stock card.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, shared.Pagination, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown movement type %q", shared.ErrValidation, filter.Type)
	}
	list, total, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filter.Page, filter.Limit, total), nil
}

type movementParams struct {
	Code      string
	ItemID    int64
	Change    float64
	Type      MovementType
	Note      string
	ActorID   int64
	RefModule string
	RefID     string
}

func (s *Service) post(ctx context.Context, params movementParams) (Movement, error) {
	code := params.Code
	if code == "" {
		code = shared.GenerateNumber("MOV", s.now().UTC())
	}

	var (
		movement Movement
		replayed bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, found, err := tx.GetMovementByCode(ctx, code)
		if err != nil {
			return err
		}
		if found {
			if existing.ItemID != params.ItemID || existing.Type != params.Type {
				return fmt.Errorf("%w: movement code %s already used", shared.ErrDuplicate, code)
			}
			movement, replayed = existing, true
			return nil
		}

		onHand, err := tx.LockItemQuantity(ctx, params.ItemID)
		if err != nil {
			return err
		}
		balance := onHand + params.Change
		if balance < -qtyEpsilon {
			return fmt.Errorf("%w: on hand %.3f, requested %.3f", ErrNegativeStock, onHand, math.Abs(params.Change))
		}
		if math.Abs(balance) < qtyEpsilon {
			balance = 0
		}
		if err := tx.SetItemQuantity(ctx, params.ItemID, balance); err != nil {
			return err
		}
		movement, err = tx.InsertMovement(ctx, Movement{
			Code:         code,
			ItemID:       params.ItemID,
			Type:         params.Type,
			Qty:          params.Change,
			BalanceAfter: balance,
			RefModule:    params.RefModule,
			RefID:        params.RefID,
			Note:         params.Note,
			CreatedBy:    params.ActorID,
		})
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	if replayed {
		s.logger.Debug("stock movement replayed", slog.String("code", code))
		return movement, nil
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, params.ItemID)
	}
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  params.ActorID,
			Action:   fmt.Sprintf("inventory:%s", params.Type),
			Entity:   "stock_movement",
			EntityID: code,
			Meta: map[string]any{
				"item_id":       params.ItemID,
				"qty":           params.Change,
				"balance_after": movement.BalanceAfter,
				"ref_module":    params.RefModule,
				"ref_id":        params.RefID,
			},
		})
		if err != nil {
			s.logger.Warn("inventory audit", slog.String("code", code), slog.Any("error", err))
		}
	}
	return movement, nil
}
