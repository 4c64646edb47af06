package procurement

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/procurehub/procurehub/internal/inventory"
	"github.com/procurehub/procurehub/internal/masterdata/items"
	"github.com/procurehub/procurehub/internal/masterdata/vendors"
	"github.com/procurehub/procurehub/internal/shared"
)

type memoryState struct {
	indents     map[int64]Indent
	rfqs        map[int64]RFQ
	pos         map[int64]PurchaseOrder
	grns        map[int64]GRN
	inspections map[int64]Inspection
	invoices    map[int64]Invoice
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		indents:     make(map[int64]Indent, len(s.indents)),
		rfqs:        make(map[int64]RFQ, len(s.rfqs)),
		pos:         make(map[int64]PurchaseOrder, len(s.pos)),
		grns:        make(map[int64]GRN, len(s.grns)),
		inspections: make(map[int64]Inspection, len(s.inspections)),
		invoices:    maps.Clone(s.invoices),
	}
	for id, v := range s.indents {
		v.Lines = slices.Clone(v.Lines)
		out.indents[id] = v
	}
	for id, v := range s.rfqs {
		v.Lines = slices.Clone(v.Lines)
		v.VendorIDs = slices.Clone(v.VendorIDs)
		v.Quotes = slices.Clone(v.Quotes)
		for i := range v.Quotes {
			v.Quotes[i].Lines = slices.Clone(v.Quotes[i].Lines)
		}
		out.rfqs[id] = v
	}
	for id, v := range s.pos {
		v.Lines = slices.Clone(v.Lines)
		out.pos[id] = v
	}
	for id, v := range s.grns {
		v.Lines = slices.Clone(v.Lines)
		out.grns[id] = v
	}
	for id, v := range s.inspections {
		v.Lines = slices.Clone(v.Lines)
		out.inspections[id] = v
	}
	if out.invoices == nil {
		out.invoices = map[int64]Invoice{}
	}
	return out
}

// memoryRepo keeps documents in maps and restores a snapshot when a
// transaction callback fails.
type memoryRepo struct {
	mu         sync.Mutex
	seq        int64
	state      memoryState
	candidates []ReorderCandidate
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: memoryState{}.clone()}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.state.clone()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%w: %s %d", shared.ErrNotFound, what, id)
}

func (r *memoryRepo) snapshot() memoryState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

func (r *memoryRepo) GetIndent(_ context.Context, id int64) (Indent, error) {
	v, ok := r.snapshot().indents[id]
	if !ok {
		return Indent{}, notFound("indent", id)
	}
	return v, nil
}

func (r *memoryRepo) GetRFQ(_ context.Context, id int64) (RFQ, error) {
	v, ok := r.snapshot().rfqs[id]
	if !ok {
		return RFQ{}, notFound("rfq", id)
	}
	return v, nil
}

func (r *memoryRepo) GetPO(_ context.Context, id int64) (PurchaseOrder, error) {
	v, ok := r.snapshot().pos[id]
	if !ok {
		return PurchaseOrder{}, notFound("purchase order", id)
	}
	v.ComputeTotals()
	return v, nil
}

func (r *memoryRepo) GetGRN(_ context.Context, id int64) (GRN, error) {
	v, ok := r.snapshot().grns[id]
	if !ok {
		return GRN{}, notFound("grn", id)
	}
	return v, nil
}

func (r *memoryRepo) GetInspection(_ context.Context, id int64) (Inspection, error) {
	v, ok := r.snapshot().inspections[id]
	if !ok {
		return Inspection{}, notFound("inspection", id)
	}
	return v, nil
}

func (r *memoryRepo) GetInvoice(_ context.Context, id int64) (Invoice, error) {
	v, ok := r.snapshot().invoices[id]
	if !ok {
		return Invoice{}, notFound("invoice", id)
	}
	return v, nil
}

func listOf[T any](m map[int64]T, keep func(T) bool) ([]T, int, error) {
	ids := slices.Sorted(maps.Keys(m))
	var out []T
	for _, id := range ids {
		if keep(m[id]) {
			out = append(out, m[id])
		}
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListIndents(_ context.Context, f Filter) ([]Indent, int, error) {
	return listOf(r.snapshot().indents, func(v Indent) bool { return f.Status == "" || string(v.Status) == f.Status })
}

func (r *memoryRepo) ListRFQs(_ context.Context, f Filter) ([]RFQ, int, error) {
	return listOf(r.snapshot().rfqs, func(v RFQ) bool { return f.Status == "" || string(v.Status) == f.Status })
}

func (r *memoryRepo) ListPOs(_ context.Context, f Filter) ([]PurchaseOrder, int, error) {
	list, n, err := listOf(r.snapshot().pos, func(v PurchaseOrder) bool {
		return (f.Status == "" || string(v.Status) == f.Status) && (f.VendorID == 0 || v.VendorID == f.VendorID)
	})
	for i := range list {
		list[i].ComputeTotals()
	}
	return list, n, err
}

func (r *memoryRepo) ListGRNs(_ context.Context, f Filter) ([]GRN, int, error) {
	return listOf(r.snapshot().grns, func(v GRN) bool { return f.POID == 0 || v.POID == f.POID })
}

func (r *memoryRepo) ListInspections(_ context.Context, f Filter) ([]Inspection, int, error) {
	return listOf(r.snapshot().inspections, func(v Inspection) bool { return f.GRNID == 0 || v.GRNID == f.GRNID })
}

func (r *memoryRepo) ListInvoices(_ context.Context, f Filter) ([]Invoice, int, error) {
	return listOf(r.snapshot().invoices, func(v Invoice) bool { return f.Status == "" || string(v.Status) == f.Status })
}

func (r *memoryRepo) ReorderCandidates(context.Context) ([]ReorderCandidate, error) {
	return r.candidates, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) next() int64 {
	tx.repo.seq++
	return tx.repo.seq
}

func (tx *memoryTx) st() *memoryState {
	return &tx.repo.state
}

func (tx *memoryTx) LockIndent(_ context.Context, id int64) (Indent, error) {
	v, ok := tx.st().indents[id]
	if !ok {
		return Indent{}, notFound("indent", id)
	}
	v.Lines = slices.Clone(v.Lines)
	return v, nil
}

func (tx *memoryTx) numberIndentLines(id int64, lines []IndentLine) []IndentLine {
	out := slices.Clone(lines)
	for i := range out {
		out[i].ID = tx.next()
		out[i].IndentID = id
	}
	return out
}

func (tx *memoryTx) InsertIndent(_ context.Context, indent Indent) (Indent, error) {
	indent.ID = tx.next()
	indent.Lines = tx.numberIndentLines(indent.ID, indent.Lines)
	indent.CreatedAt = time.Now()
	indent.UpdatedAt = indent.CreatedAt
	tx.st().indents[indent.ID] = indent
	return indent, nil
}

func (tx *memoryTx) UpdateIndent(_ context.Context, indent Indent) error {
	cur := tx.st().indents[indent.ID]
	cur.Department, cur.Purpose, cur.RequiredBy = indent.Department, indent.Purpose, indent.RequiredBy
	cur.Lines = tx.numberIndentLines(indent.ID, indent.Lines)
	tx.st().indents[indent.ID] = cur
	return nil
}

func (tx *memoryTx) SetIndentStatus(_ context.Context, indent Indent) error {
	cur := tx.st().indents[indent.ID]
	cur.Status, cur.ApprovedBy, cur.ApprovedAt, cur.Remarks = indent.Status, indent.ApprovedBy, indent.ApprovedAt, indent.Remarks
	tx.st().indents[indent.ID] = cur
	return nil
}

func (tx *memoryTx) DeleteIndent(_ context.Context, id int64) error {
	delete(tx.st().indents, id)
	return nil
}

func (tx *memoryTx) LockRFQ(_ context.Context, id int64) (RFQ, error) {
	v, ok := tx.st().rfqs[id]
	if !ok {
		return RFQ{}, notFound("rfq", id)
	}
	return tx.repo.state.clone().rfqs[v.ID], nil
}

func (tx *memoryTx) InsertRFQ(_ context.Context, rfq RFQ) (RFQ, error) {
	rfq.ID = tx.next()
	rfq.Lines = slices.Clone(rfq.Lines)
	for i := range rfq.Lines {
		rfq.Lines[i].ID = tx.next()
		rfq.Lines[i].RFQID = rfq.ID
	}
	rfq.CreatedAt = time.Now()
	tx.st().rfqs[rfq.ID] = rfq
	return rfq, nil
}

func (tx *memoryTx) InsertQuote(_ context.Context, quote Quote) (Quote, error) {
	rfq := tx.st().rfqs[quote.RFQID]
	for _, q := range rfq.Quotes {
		if q.VendorID == quote.VendorID {
			return Quote{}, fmt.Errorf("%w: quote", shared.ErrDuplicate)
		}
	}
	quote.ID = tx.next()
	quote.SubmittedAt = time.Now()
	for i := range quote.Lines {
		quote.Lines[i].ID = tx.next()
		quote.Lines[i].QuoteID = quote.ID
	}
	rfq.Quotes = append(slices.Clone(rfq.Quotes), quote)
	tx.st().rfqs[rfq.ID] = rfq
	return quote, nil
}

func (tx *memoryTx) SetRFQStatus(_ context.Context, rfq RFQ) error {
	cur := tx.st().rfqs[rfq.ID]
	cur.Status, cur.AwardedQuoteID = rfq.Status, rfq.AwardedQuoteID
	tx.st().rfqs[rfq.ID] = cur
	return nil
}

func (tx *memoryTx) DeleteRFQ(_ context.Context, id int64) error {
	delete(tx.st().rfqs, id)
	return nil
}

func (tx *memoryTx) LockPO(_ context.Context, id int64) (PurchaseOrder, error) {
	v, ok := tx.st().pos[id]
	if !ok {
		return PurchaseOrder{}, notFound("purchase order", id)
	}
	v.Lines = slices.Clone(v.Lines)
	v.ComputeTotals()
	return v, nil
}

func (tx *memoryTx) numberPOLines(id int64, lines []POLine) []POLine {
	out := slices.Clone(lines)
	for i := range out {
		out[i].ID = tx.next()
		out[i].POID = id
	}
	return out
}

func (tx *memoryTx) InsertPO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	po.ID = tx.next()
	po.Lines = tx.numberPOLines(po.ID, po.Lines)
	po.CreatedAt = time.Now()
	tx.st().pos[po.ID] = po
	return tx.LockPO(ctx, po.ID)
}

func (tx *memoryTx) UpdatePO(_ context.Context, po PurchaseOrder) error {
	cur := tx.st().pos[po.ID]
	status, approvedBy, approvedAt := cur.Status, cur.ApprovedBy, cur.ApprovedAt
	cur = po
	cur.Status, cur.ApprovedBy, cur.ApprovedAt = status, approvedBy, approvedAt
	cur.Lines = tx.numberPOLines(po.ID, po.Lines)
	tx.st().pos[po.ID] = cur
	return nil
}

func (tx *memoryTx) SetPOStatus(_ context.Context, po PurchaseOrder) error {
	cur := tx.st().pos[po.ID]
	cur.Status, cur.ApprovedBy, cur.ApprovedAt = po.Status, po.ApprovedBy, po.ApprovedAt
	tx.st().pos[po.ID] = cur
	return nil
}

func (tx *memoryTx) SetPOLineReceived(_ context.Context, lineID int64, qty float64) error {
	for id, po := range tx.st().pos {
		for i := range po.Lines {
			if po.Lines[i].ID != lineID {
				continue
			}
			if qty < 0 || qty > po.Lines[i].Qty+qtyEpsilon {
				return fmt.Errorf("received_qty check violated on line %d", lineID)
			}
			po.Lines = slices.Clone(po.Lines)
			po.Lines[i].ReceivedQty = qty
			tx.st().pos[id] = po
			return nil
		}
	}
	return notFound("purchase order line", lineID)
}

func (tx *memoryTx) DeletePO(_ context.Context, id int64) error {
	delete(tx.st().pos, id)
	return nil
}

func (tx *memoryTx) OpenPayables(_ context.Context, poID int64) (int, error) {
	n := 0
	invoiced := map[int64]bool{}
	for _, inv := range tx.st().invoices {
		if inv.Status != InvoiceRejected {
			invoiced[inv.InspectionID] = true
		}
		if inv.POID == poID && (inv.Status == InvoicePending || inv.Status == InvoiceApproved) {
			n++
		}
	}
	for _, g := range tx.st().grns {
		if g.POID == poID && g.Status == GRNPendingInspection {
			n++
		}
	}
	for _, insp := range tx.st().inspections {
		if tx.st().grns[insp.GRNID].POID == poID && insp.Result != ResultRejected && !invoiced[insp.ID] {
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) IndentInUse(_ context.Context, indentID int64) (bool, error) {
	for _, r := range tx.st().rfqs {
		if r.IndentID != nil && *r.IndentID == indentID && (r.Status == RFQOpen || r.Status == RFQAwarded) {
			return true, nil
		}
	}
	for _, po := range tx.st().pos {
		if po.IndentID != nil && *po.IndentID == indentID && po.Status != POCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) LockGRN(_ context.Context, id int64) (GRN, error) {
	v, ok := tx.st().grns[id]
	if !ok {
		return GRN{}, notFound("grn", id)
	}
	v.Lines = slices.Clone(v.Lines)
	return v, nil
}

func (tx *memoryTx) InsertGRN(_ context.Context, grn GRN) (GRN, error) {
	grn.ID = tx.next()
	grn.Lines = slices.Clone(grn.Lines)
	for i := range grn.Lines {
		grn.Lines[i].ID = tx.next()
		grn.Lines[i].GRNID = grn.ID
	}
	grn.CreatedAt = time.Now()
	tx.st().grns[grn.ID] = grn
	return grn, nil
}

func (tx *memoryTx) SetGRNStatus(_ context.Context, id int64, status GRNStatus) error {
	cur := tx.st().grns[id]
	cur.Status = status
	tx.st().grns[id] = cur
	return nil
}

func (tx *memoryTx) DeleteGRN(_ context.Context, id int64) error {
	delete(tx.st().grns, id)
	return nil
}

func (tx *memoryTx) GetInspection(_ context.Context, id int64) (Inspection, error) {
	v, ok := tx.st().inspections[id]
	if !ok {
		return Inspection{}, notFound("inspection", id)
	}
	return v, nil
}

func (tx *memoryTx) InsertInspection(_ context.Context, insp Inspection) (Inspection, error) {
	for _, existing := range tx.st().inspections {
		if existing.GRNID == insp.GRNID {
			return Inspection{}, fmt.Errorf("%w: inspection", shared.ErrDuplicate)
		}
	}
	insp.ID = tx.next()
	insp.Lines = slices.Clone(insp.Lines)
	for i := range insp.Lines {
		insp.Lines[i].ID = tx.next()
		insp.Lines[i].InspectionID = insp.ID
	}
	tx.st().inspections[insp.ID] = insp
	return insp, nil
}

func (tx *memoryTx) LockInvoice(_ context.Context, id int64) (Invoice, error) {
	v, ok := tx.st().invoices[id]
	if !ok {
		return Invoice{}, notFound("invoice", id)
	}
	return v, nil
}

func (tx *memoryTx) InsertInvoice(_ context.Context, inv Invoice) (Invoice, error) {
	for _, existing := range tx.st().invoices {
		if existing.InspectionID == inv.InspectionID && existing.Status != InvoiceRejected {
			return Invoice{}, fmt.Errorf("%w: invoice for this inspection already exists", shared.ErrDuplicate)
		}
	}
	inv.ID = tx.next()
	inv.CreatedAt = time.Now()
	tx.st().invoices[inv.ID] = inv
	return inv, nil
}

func (tx *memoryTx) SetInvoiceStatus(_ context.Context, inv Invoice) error {
	cur := tx.st().invoices[inv.ID]
	cur.Status, cur.PaidAt = inv.Status, inv.PaidAt
	tx.st().invoices[inv.ID] = cur
	return nil
}

// stubInventory posts inbound movements once per code.
type stubInventory struct {
	mu       sync.Mutex
	byCode   map[string]inventory.Movement
	onHand   map[int64]float64
	failNext bool
}

func newStubInventory() *stubInventory {
	return &stubInventory{byCode: map[string]inventory.Movement{}, onHand: map[int64]float64{}}
}

func (s *stubInventory) PostInbound(_ context.Context, in inventory.InboundInput) (inventory.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return inventory.Movement{}, fmt.Errorf("inventory unavailable")
	}
	if m, ok := s.byCode[in.Code]; ok {
		return m, nil
	}
	s.onHand[in.ItemID] += in.Qty
	m := inventory.Movement{
		ID: int64(len(s.byCode) + 1), Code: in.Code, ItemID: in.ItemID, Type: inventory.MovementIn,
		Qty: in.Qty, BalanceAfter: s.onHand[in.ItemID], RefModule: in.RefModule, RefID: in.RefID,
	}
	s.byCode[in.Code] = m
	return m, nil
}

func (s *stubInventory) codes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Collect(maps.Keys(s.byCode))
	sort.Strings(out)
	return out
}

type stubVendors map[int64]vendors.Vendor

func (s stubVendors) Get(_ context.Context, id int64) (vendors.Vendor, error) {
	v, ok := s[id]
	if !ok {
		return vendors.Vendor{}, notFound("vendor", id)
	}
	return v, nil
}

type stubItems map[int64]items.Item

func (s stubItems) Get(_ context.Context, id int64) (items.Item, error) {
	v, ok := s[id]
	if !ok {
		return items.Item{}, notFound("item", id)
	}
	return v, nil
}

type recordingNotifier struct {
	rfqIDs []int64
}

func (n *recordingNotifier) NotifyRFQ(_ context.Context, rfqID int64) error {
	n.rfqIDs = append(n.rfqIDs, rfqID)
	return nil
}
