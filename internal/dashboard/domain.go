package dashboard

import "time"

// Summary is the at-a-glance view shared by the store and purchase desks.
type Summary struct {
	LowStockItems         int       `json:"low_stock_items"`
	PendingIndents        int       `json:"pending_indents"`
	OpenRFQs              int       `json:"open_rfqs"`
	POsAwaitingApproval   int       `json:"pos_awaiting_approval"`
	GRNsPendingInspection int       `json:"grns_pending_inspection"`
	UnpaidInvoices        int       `json:"unpaid_invoices"`
	UnpaidInvoiceAmount   float64   `json:"unpaid_invoice_amount"`
	GeneratedAt           time.Time `json:"generated_at"`
}

// InvoiceExposure is the count and value of invoices not yet paid.
type InvoiceExposure struct {
	Count  int
	Amount float64
}
