package procurement

import (
	"fmt"
	"math"
	"time"

	"github.com/procurehub/procurehub/internal/masterdata/items"
	"github.com/procurehub/procurehub/internal/shared"
)

// IndentStatus tracks an internal purchase request.
type IndentStatus string

const (
	IndentPending       IndentStatus = "PENDING"
	IndentApproved      IndentStatus = "APPROVED"
	IndentRejected      IndentStatus = "REJECTED"
	IndentCancelled     IndentStatus = "CANCELLED"
	IndentInProcurement IndentStatus = "IN_PROCUREMENT"
	IndentClosed        IndentStatus = "CLOSED"
)

// RFQStatus tracks a request for quotation.
type RFQStatus string

const (
	RFQOpen      RFQStatus = "OPEN"
	RFQAwarded   RFQStatus = "AWARDED"
	RFQClosed    RFQStatus = "CLOSED"
	RFQCancelled RFQStatus = "CANCELLED"
)

// POStatus tracks a purchase order.
type POStatus string

const (
	PODraft             POStatus = "DRAFT"
	POApproved          POStatus = "APPROVED"
	POPartiallyReceived POStatus = "PARTIALLY_RECEIVED"
	POReceived          POStatus = "RECEIVED"
	POClosed            POStatus = "CLOSED"
	POCancelled         POStatus = "CANCELLED"
)

// GRNStatus tracks a goods receipt note.
type GRNStatus string

const (
	GRNPendingInspection GRNStatus = "PENDING_INSPECTION"
	GRNInspected         GRNStatus = "INSPECTED"
)

// InspectionResult summarises the outcome of an inspection.
type InspectionResult string

const (
	ResultAccepted InspectionResult = "ACCEPTED"
	ResultPartial  InspectionResult = "PARTIAL"
	ResultRejected InspectionResult = "REJECTED"
)

// InvoiceStatus tracks a vendor invoice.
type InvoiceStatus string

const (
	InvoicePending  InvoiceStatus = "PENDING"
	InvoiceApproved InvoiceStatus = "APPROVED"
	InvoicePaid     InvoiceStatus = "PAID"
	InvoiceRejected InvoiceStatus = "REJECTED"
)

// Allowed status moves per document. Receipt-driven PO moves run in both
// directions because deleting a GRN rolls the counters back.
var (
	indentFlow = map[IndentStatus][]IndentStatus{
		IndentPending:       {IndentApproved, IndentRejected, IndentCancelled},
		IndentApproved:      {IndentInProcurement},
		IndentInProcurement: {IndentClosed, IndentApproved},
	}
	rfqFlow = map[RFQStatus][]RFQStatus{
		RFQOpen:    {RFQAwarded, RFQCancelled},
		RFQAwarded: {RFQClosed},
	}
	poFlow = map[POStatus][]POStatus{
		PODraft:             {POApproved, POCancelled},
		POApproved:          {POPartiallyReceived, POReceived, POCancelled},
		POPartiallyReceived: {POReceived, POApproved},
		POReceived:          {POClosed, POPartiallyReceived, POApproved},
	}
	grnFlow = map[GRNStatus][]GRNStatus{
		GRNPendingInspection: {GRNInspected},
	}
	invoiceFlow = map[InvoiceStatus][]InvoiceStatus{
		InvoicePending:  {InvoiceApproved, InvoiceRejected},
		InvoiceApproved: {InvoicePaid},
	}
)

// transition reports whether a document may move from one status to another.
// Staying in the same status is not a move.
func transition[S ~string](kind string, flow map[S][]S, from, to S) error {
	for _, next := range flow[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s cannot move from %s to %s", shared.ErrInvalidState, kind, from, to)
}

// Indent is an internal purchase request.
type Indent struct {
	ID          int64        `json:"id"`
	Number      string       `json:"number"`
	RequestedBy int64        `json:"requested_by"`
	Department  string       `json:"department"`
	Purpose     string       `json:"purpose"`
	RequiredBy  *time.Time   `json:"required_by"`
	Status      IndentStatus `json:"status"`
	ApprovedBy  *int64       `json:"approved_by"`
	ApprovedAt  *time.Time   `json:"approved_at"`
	Remarks     string       `json:"remarks"`
	Lines       []IndentLine `json:"lines"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IndentLine is a requested item.
type IndentLine struct {
	ID       int64   `json:"id"`
	IndentID int64   `json:"indent_id"`
	ItemID   int64   `json:"item_id"`
	Qty      float64 `json:"qty"`
	Note     string  `json:"note"`
}

// RFQ is a request for quotation sent to invited vendors.
type RFQ struct {
	ID             int64      `json:"id"`
	Number         string     `json:"number"`
	IndentID       *int64     `json:"indent_id"`
	Status         RFQStatus  `json:"status"`
	DueDate        *time.Time `json:"due_date"`
	Note           string     `json:"note"`
	VendorIDs      []int64    `json:"vendor_ids"`
	Lines          []RFQLine  `json:"lines"`
	Quotes         []Quote    `json:"quotes"`
	AwardedQuoteID *int64     `json:"awarded_quote_id"`
	CreatedBy      int64      `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RFQLine is an item requested for quotation.
type RFQLine struct {
	ID     int64   `json:"id"`
	RFQID  int64   `json:"rfq_id"`
	ItemID int64   `json:"item_id"`
	Qty    float64 `json:"qty"`
}

// Invited reports whether vendorID was sent the RFQ.
func (r RFQ) Invited(vendorID int64) bool {
	for _, id := range r.VendorIDs {
		if id == vendorID {
			return true
		}
	}
	return false
}

// Quote returns the quote with the given id.
func (r RFQ) Quote(id int64) (Quote, bool) {
	for _, q := range r.Quotes {
		if q.ID == id {
			return q, true
		}
	}
	return Quote{}, false
}

// Quote is a vendor's priced response to an RFQ.
type Quote struct {
	ID           int64       `json:"id"`
	RFQID        int64       `json:"rfq_id"`
	VendorID     int64       `json:"vendor_id"`
	LeadTimeDays int         `json:"lead_time_days"`
	Note         string      `json:"note"`
	Total        float64     `json:"total"`
	SubmittedAt  time.Time   `json:"submitted_at"`
	Lines        []QuoteLine `json:"lines"`
}

// QuoteLine prices one RFQ line.
type QuoteLine struct {
	ID        int64   `json:"id"`
	QuoteID   int64   `json:"quote_id"`
	RFQLineID int64   `json:"rfq_line_id"`
	ItemID    int64   `json:"item_id"`
	UnitPrice float64 `json:"unit_price"`
}

// PurchaseOrder is a commitment to buy from a vendor.
type PurchaseOrder struct {
	ID           int64      `json:"id"`
	Number       string     `json:"number"`
	VendorID     int64      `json:"vendor_id"`
	RFQID        *int64     `json:"rfq_id"`
	IndentID     *int64     `json:"indent_id"`
	Status       POStatus   `json:"status"`
	Currency     string     `json:"currency"`
	TaxPercent   float64    `json:"tax_percent"`
	ExpectedDate *time.Time `json:"expected_date"`
	PaymentTerms string     `json:"payment_terms"`
	Note         string     `json:"note"`
	ApprovedBy   *int64     `json:"approved_by"`
	ApprovedAt   *time.Time `json:"approved_at"`
	CreatedBy    int64      `json:"created_by"`
	Lines        []POLine   `json:"lines"`
	Subtotal     float64    `json:"subtotal"`
	Tax          float64    `json:"tax"`
	Total        float64    `json:"total"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// POLine is an ordered item.
type POLine struct {
	ID          int64   `json:"id"`
	POID        int64   `json:"po_id"`
	ItemID      int64   `json:"item_id"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unit_price"`
	ReceivedQty float64 `json:"received_qty"`
}

// Remaining is the quantity still to be received.
func (l POLine) Remaining() float64 {
	return math.Max(l.Qty-l.ReceivedQty, 0)
}

// Line returns the PO line with the given id.
func (po PurchaseOrder) Line(id int64) (POLine, bool) {
	for _, l := range po.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return POLine{}, false
}

// ComputeTotals fills Subtotal, Tax and Total from the lines.
func (po *PurchaseOrder) ComputeTotals() {
	var subtotal float64
	for _, l := range po.Lines {
		subtotal += l.Qty * l.UnitPrice
	}
	po.Subtotal = roundMoney(subtotal)
	po.Tax = roundMoney(po.Subtotal * po.TaxPercent / 100)
	po.Total = roundMoney(po.Subtotal + po.Tax)
}

// receiptStatus derives the status of an approved PO from its counters.
func (po PurchaseOrder) receiptStatus() POStatus {
	var ordered, received float64
	for _, l := range po.Lines {
		ordered += l.Qty
		received += l.ReceivedQty
	}
	switch {
	case received <= qtyEpsilon:
		return POApproved
	case received+qtyEpsilon >= ordered:
		return POReceived
	default:
		return POPartiallyReceived
	}
}

func (po PurchaseOrder) anythingReceived() bool {
	for _, l := range po.Lines {
		if l.ReceivedQty > qtyEpsilon {
			return true
		}
	}
	return false
}

// GRN records goods delivered against a PO.
type GRN struct {
	ID           int64     `json:"id"`
	Number       string    `json:"number"`
	POID         int64     `json:"po_id"`
	Status       GRNStatus `json:"status"`
	ReceivedBy   int64     `json:"received_by"`
	ReceivedAt   time.Time `json:"received_at"`
	DeliveryNote string    `json:"delivery_note"`
	Note         string    `json:"note"`
	Lines        []GRNLine `json:"lines"`
	CreatedAt    time.Time `json:"created_at"`
}

// GRNLine is a received quantity of one PO line.
type GRNLine struct {
	ID          int64   `json:"id"`
	GRNID       int64   `json:"grn_id"`
	POLineID    int64   `json:"po_line_id"`
	ItemID      int64   `json:"item_id"`
	ReceivedQty float64 `json:"received_qty"`
}

// Inspection is the quality check of a GRN.
type Inspection struct {
	ID          int64            `json:"id"`
	Number      string           `json:"number"`
	GRNID       int64            `json:"grn_id"`
	Result      InspectionResult `json:"result"`
	InspectedBy int64            `json:"inspected_by"`
	InspectedAt time.Time        `json:"inspected_at"`
	Remarks     string           `json:"remarks"`
	Lines       []InspectionLine `json:"lines"`
	CreatedAt   time.Time        `json:"created_at"`
}

// InspectionLine records the outcome for one GRN line.
type InspectionLine struct {
	ID           int64   `json:"id"`
	InspectionID int64   `json:"inspection_id"`
	GRNLineID    int64   `json:"grn_line_id"`
	ItemID       int64   `json:"item_id"`
	InspectedQty float64 `json:"inspected_qty"`
	AcceptedQty  float64 `json:"accepted_qty"`
	RejectedQty  float64 `json:"rejected_qty"`
	Reason       string  `json:"reason"`
}

// Invoice is a vendor bill for the accepted quantities of one inspection.
type Invoice struct {
	ID              int64         `json:"id"`
	Number          string        `json:"number"`
	VendorInvoiceNo string        `json:"vendor_invoice_no"`
	POID            int64         `json:"po_id"`
	GRNID           int64         `json:"grn_id"`
	InspectionID    int64         `json:"inspection_id"`
	VendorID        int64         `json:"vendor_id"`
	Subtotal        float64       `json:"subtotal"`
	TaxAmount       float64       `json:"tax_amount"`
	Total           float64       `json:"total"`
	Status          InvoiceStatus `json:"status"`
	InvoiceDate     time.Time     `json:"invoice_date"`
	DueDate         *time.Time    `json:"due_date"`
	PaidAt          *time.Time    `json:"paid_at"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ReorderCandidate is an active item at or below its reorder level with no
// open indent.
type ReorderCandidate struct {
	ItemID         int64
	ReorderLevel   float64
	QuantityOnHand float64
}

// Due applies the same low-stock rule as the item listing.
func (c ReorderCandidate) Due() bool {
	return items.Item{ReorderLevel: c.ReorderLevel, QuantityOnHand: c.QuantityOnHand}.BelowReorder()
}

// Filter narrows document listings.
type Filter struct {
	shared.ListFilters
	VendorID int64
	IndentID int64
	POID     int64
	GRNID    int64
}

const qtyEpsilon = 1e-9

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
