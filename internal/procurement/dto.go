package procurement

import "github.com/procurehub/procurehub/internal/shared"

// IndentInput creates or edits an indent.
type IndentInput struct {
	Department string            `json:"department" validate:"required,max=100"`
	Purpose    string            `json:"purpose" validate:"max=500"`
	RequiredBy *shared.Date      `json:"required_by"`
	Lines      []IndentLineInput `json:"lines" validate:"required,min=1,dive"`
}

// IndentLineInput is one requested item.
type IndentLineInput struct {
	ItemID int64   `json:"item_id" validate:"required,gt=0"`
	Qty    float64 `json:"qty" validate:"gt=0"`
	Note   string  `json:"note" validate:"max=500"`
}

// RemarksInput carries a reason for rejections and cancellations.
type RemarksInput struct {
	Remarks string `json:"remarks" validate:"required,max=1000"`
}

// RFQInput creates an RFQ, either from an approved indent or from explicit lines.
type RFQInput struct {
	IndentID  *int64         `json:"indent_id" validate:"omitempty,gt=0"`
	VendorIDs []int64        `json:"vendor_ids" validate:"required,min=1,dive,gt=0"`
	DueDate   *shared.Date   `json:"due_date"`
	Note      string         `json:"note" validate:"max=1000"`
	Lines     []RFQLineInput `json:"lines" validate:"omitempty,dive"`
}

// RFQLineInput is one item to be quoted.
type RFQLineInput struct {
	ItemID int64   `json:"item_id" validate:"required,gt=0"`
	Qty    float64 `json:"qty" validate:"gt=0"`
}

// QuoteInput is a vendor's response to an RFQ.
type QuoteInput struct {
	VendorID     int64            `json:"vendor_id" validate:"required,gt=0"`
	LeadTimeDays int              `json:"lead_time_days" validate:"gte=0"`
	Note         string           `json:"note" validate:"max=1000"`
	Lines        []QuoteLineInput `json:"lines" validate:"required,min=1,dive"`
}

// QuoteLineInput prices one RFQ line.
type QuoteLineInput struct {
	RFQLineID int64   `json:"rfq_line_id" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// AwardInput selects the winning quote.
type AwardInput struct {
	QuoteID int64 `json:"quote_id" validate:"required,gt=0"`
}

// POInput creates or edits a purchase order. With FromRFQID set, vendor and
// lines come from the awarded quote and VendorID/Lines must be empty.
type POInput struct {
	FromRFQID    *int64        `json:"from_rfq_id" validate:"omitempty,gt=0"`
	VendorID     int64         `json:"vendor_id" validate:"omitempty,gt=0"`
	IndentID     *int64        `json:"indent_id" validate:"omitempty,gt=0"`
	Currency     string        `json:"currency" validate:"omitempty,len=3"`
	TaxPercent   float64       `json:"tax_percent" validate:"gte=0,lte=100"`
	ExpectedDate *shared.Date  `json:"expected_date"`
	PaymentTerms string        `json:"payment_terms" validate:"max=200"`
	Note         string        `json:"note" validate:"max=1000"`
	Lines        []POLineInput `json:"lines" validate:"omitempty,dive"`
}

// POLineInput is one ordered item.
type POLineInput struct {
	ItemID    int64   `json:"item_id" validate:"required,gt=0"`
	Qty       float64 `json:"qty" validate:"gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// GRNInput records a delivery.
type GRNInput struct {
	POID         int64          `json:"po_id" validate:"required,gt=0"`
	DeliveryNote string         `json:"delivery_note" validate:"max=100"`
	Note         string         `json:"note" validate:"max=1000"`
	Lines        []GRNLineInput `json:"lines" validate:"required,min=1,dive"`
}

// GRNLineInput is the quantity received for one PO line.
type GRNLineInput struct {
	POLineID    int64   `json:"po_line_id" validate:"required,gt=0"`
	ReceivedQty float64 `json:"received_qty" validate:"gt=0"`
}

// InspectionInput records the quality check of a GRN.
type InspectionInput struct {
	GRNID   int64                 `json:"grn_id" validate:"required,gt=0"`
	Remarks string                `json:"remarks" validate:"max=1000"`
	Lines   []InspectionLineInput `json:"lines" validate:"required,min=1,dive"`
}

// InspectionLineInput is the outcome for one GRN line.
type InspectionLineInput struct {
	GRNLineID    int64   `json:"grn_line_id" validate:"required,gt=0"`
	InspectedQty float64 `json:"inspected_qty" validate:"gte=0"`
	AcceptedQty  float64 `json:"accepted_qty" validate:"gte=0"`
	RejectedQty  float64 `json:"rejected_qty" validate:"gte=0"`
	Reason       string  `json:"reason" validate:"max=500"`
}

// InvoiceInput bills the accepted quantities of an inspection.
type InvoiceInput struct {
	InspectionID    int64        `json:"inspection_id" validate:"required,gt=0"`
	VendorInvoiceNo string       `json:"vendor_invoice_no" validate:"required,max=100"`
	InvoiceDate     *shared.Date `json:"invoice_date"`
	DueDate         *shared.Date `json:"due_date"`
}
