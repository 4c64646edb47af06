package items

import (
	"time"

	"github.com/procurehub/procurehub/internal/shared"
)

// Item is a stocked article. QuantityOnHand is owned by the inventory
// module and is read-only here.
type Item struct {
	ID             int64     `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	UOM            string    `json:"uom"`
	UnitPrice      float64   `json:"unit_price"`
	ReorderLevel   float64   `json:"reorder_level"`
	QuantityOnHand float64   `json:"quantity_on_hand"`
	Location       string    `json:"location"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BelowReorder reports whether stock has fallen to or under the reorder level.
func (i Item) BelowReorder() bool {
	return i.ReorderLevel > 0 && i.QuantityOnHand <= i.ReorderLevel
}

// ItemInput is the create/update payload.
type ItemInput struct {
	Code         string  `json:"code" validate:"required,max=50"`
	Name         string  `json:"name" validate:"required,max=200"`
	Description  string  `json:"description" validate:"max=2000"`
	Category     string  `json:"category" validate:"max=100"`
	UOM          string  `json:"uom" validate:"max=20"`
	UnitPrice    float64 `json:"unit_price" validate:"gte=0"`
	ReorderLevel float64 `json:"reorder_level" validate:"gte=0"`
	Location     string  `json:"location" validate:"max=100"`
	IsActive     *bool   `json:"is_active"`
}

// Filters narrows item listings.
type Filters struct {
	shared.ListFilters
	Category string
	LowStock bool
	IsActive *bool
}
