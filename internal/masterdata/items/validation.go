package items

import (
	"fmt"
	"strings"

	"github.com/procurehub/procurehub/internal/shared"
)

func normalize(input ItemInput) Item {
	item := Item{
		Code:         strings.ToUpper(strings.TrimSpace(input.Code)),
		Name:         strings.TrimSpace(input.Name),
		Description:  strings.TrimSpace(input.Description),
		Category:     strings.TrimSpace(input.Category),
		UOM:          strings.ToUpper(strings.TrimSpace(input.UOM)),
		UnitPrice:    input.UnitPrice,
		ReorderLevel: input.ReorderLevel,
		Location:     strings.TrimSpace(input.Location),
		IsActive:     true,
	}
	if item.UOM == "" {
		item.UOM = "NOS"
	}
	if input.IsActive != nil {
		item.IsActive = *input.IsActive
	}
	return item
}

func validate(item Item) error {
	if item.Code == "" {
		return fmt.Errorf("%w: item code is required", shared.ErrValidation)
	}
	if item.Name == "" {
		return fmt.Errorf("%w: item name is required", shared.ErrValidation)
	}
	if item.UnitPrice < 0 {
		return fmt.Errorf("%w: unit price cannot be negative", shared.ErrValidation)
	}
	if item.ReorderLevel < 0 {
		return fmt.Errorf("%w: reorder level cannot be negative", shared.ErrValidation)
	}
	return nil
}
