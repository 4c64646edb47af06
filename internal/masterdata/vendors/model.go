package vendors

import (
	"time"

	"github.com/procurehub/procurehub/internal/shared"
)

// Status values of a vendor.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// Address is stored as a nested JSON object.
type Address struct {
	Line1      string `json:"line1" validate:"max=200"`
	Line2      string `json:"line2" validate:"max=200"`
	City       string `json:"city" validate:"max=100"`
	State      string `json:"state" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"max=20"`
	Country    string `json:"country" validate:"max=100"`
}

// BankDetails is stored as a nested JSON object.
type BankDetails struct {
	AccountName   string `json:"account_name" validate:"max=200"`
	AccountNumber string `json:"account_number" validate:"max=50"`
	BankName      string `json:"bank_name" validate:"max=200"`
	IFSC          string `json:"ifsc" validate:"max=20"`
}

// Vendor is a supplier that receives RFQs and purchase orders.
type Vendor struct {
	ID            int64       `json:"id"`
	Code          string      `json:"code"`
	Name          string      `json:"name"`
	ContactPerson string      `json:"contact_person"`
	Email         string      `json:"email"`
	Phone         string      `json:"phone"`
	TaxID         string      `json:"tax_id"`
	Address       Address     `json:"address"`
	Bank          BankDetails `json:"bank_details"`
	Status        string      `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// IsActive reports whether documents may be raised against the vendor.
func (v Vendor) IsActive() bool {
	return v.Status == StatusActive
}

// VendorInput is the create/update payload.
type VendorInput struct {
	Code          string      `json:"code" validate:"required,max=50"`
	Name          string      `json:"name" validate:"required,max=200"`
	ContactPerson string      `json:"contact_person" validate:"max=200"`
	Email         string      `json:"email" validate:"omitempty,email"`
	Phone         string      `json:"phone" validate:"max=50"`
	TaxID         string      `json:"tax_id" validate:"max=50"`
	Address       Address     `json:"address"`
	Bank          BankDetails `json:"bank_details"`
	Status        string      `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}

// Filters narrows vendor listings.
type Filters struct {
	shared.ListFilters
	City string
}
