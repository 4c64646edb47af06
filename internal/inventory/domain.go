package inventory

import (
	"fmt"
	"time"

	"github.com/procurehub/procurehub/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn is an inbound receipt, e.g. accepted inspection quantities.
	MovementIn MovementType = "IN"
	// MovementOut is an issue to a department or indent.
	MovementOut MovementType = "OUT"
	// MovementAdjust is a manual correction in either direction.
	MovementAdjust MovementType = "ADJUST"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjust:
		return true
	}
	return false
}

// Movement is one row of an item's stock card.
type Movement struct {
	ID           int64        `json:"id"`
	Code         string       `json:"code"`
	ItemID       int64        `json:"item_id"`
	Type         MovementType `json:"type"`
	Qty          float64      `json:"qty"`
	BalanceAfter float64      `json:"balance_after"`
	RefModule    string       `json:"ref_module"`
	RefID        string       `json:"ref_id"`
	Note         string       `json:"note"`
	CreatedBy    int64        `json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
}

// InboundInput is used when accepted goods enter stock.
type InboundInput struct {
	Code      string
	ItemID    int64
	Qty       float64
	Note      string
	ActorID   int64
	RefModule string
	RefID     string
}

// IssueInput describes stock handed out of the store.
type IssueInput struct {
	ItemID   int64   `json:"item_id" validate:"required,gt=0"`
	Qty      float64 `json:"qty" validate:"gt=0"`
	IndentID *int64  `json:"indent_id" validate:"omitempty,gt=0"`
	Note     string  `json:"note" validate:"max=500"`
}

// AdjustInput describes a signed manual correction.
type AdjustInput struct {
	ItemID int64   `json:"item_id" validate:"required,gt=0"`
	Qty    float64 `json:"qty" validate:"required"`
	Note   string  `json:"note" validate:"required,max=500"`
}

// MovementFilter narrows stock card listings.
type MovementFilter struct {
	shared.ListFilters
	ItemID int64
	Type   MovementType
}

var (
	// ErrNegativeStock is returned when a movement would take stock below zero.
	ErrNegativeStock = fmt.Errorf("%w: stock cannot go negative", shared.ErrInvalidState)
	// ErrInvalidQuantity is returned for zero or wrongly signed quantities.
	ErrInvalidQuantity = fmt.Errorf("%w: invalid quantity", shared.ErrValidation)
)
