package vendors

import (
	"fmt"
	"strings"

	"github.com/procurehub/procurehub/internal/shared"
)

func normalize(input VendorInput) Vendor {
	v := Vendor{
		Code:          strings.ToUpper(strings.TrimSpace(input.Code)),
		Name:          strings.TrimSpace(input.Name),
		ContactPerson: strings.TrimSpace(input.ContactPerson),
		Email:         strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:         strings.TrimSpace(input.Phone),
		TaxID:         strings.ToUpper(strings.TrimSpace(input.TaxID)),
		Address:       input.Address,
		Bank:          input.Bank,
		Status:        strings.ToUpper(strings.TrimSpace(input.Status)),
	}
	v.Bank.IFSC = strings.ToUpper(strings.TrimSpace(v.Bank.IFSC))
	if v.Status == "" {
		v.Status = StatusActive
	}
	return v
}

func validate(v Vendor) error {
	if v.Code == "" {
		return fmt.Errorf("%w: vendor code is required", shared.ErrValidation)
	}
	if v.Name == "" {
		return fmt.Errorf("%w: vendor name is required", shared.ErrValidation)
	}
	if v.Status != StatusActive && v.Status != StatusInactive {
		return fmt.Errorf("%w: unknown vendor status %q", shared.ErrValidation, v.Status)
	}
	if v.Bank.AccountNumber != "" && v.Bank.BankName == "" {
		return fmt.Errorf("%w: bank name is required with an account number", shared.ErrValidation)
	}
	return nil
}
