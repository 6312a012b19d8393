package core

import (
	"sort"
	"strings"
)

// DataSource is a named catalog of fields plus the logic to materialize rows for
// them from a snapshot. Sources are declared as column tables below; adding a
// report type means adding a table, not touching the composer.
type DataSource struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Table       string  `json:"table"`
	DateField   string  `json:"date_field,omitempty"`
	Fields      []Field `json:"fields"`

	index       map[string]int
	materialize func(*sourceContext) ([][]Value, error)
}

// Field returns the field with the given id and its column position.
func (d *DataSource) Field(id string) (Field, int, bool) {
	i, ok := d.index[id]
	if !ok {
		return Field{}, -1, false
	}
	return d.Fields[i], i, true
}

// sourceContext carries everything a materializer may read. Aggregate sources
// (no DateField) use dateRange to scope the documents they roll up.
type sourceContext struct {
	snap         *Snapshot
	dateRange    *DateRange
	asOf         Date
	depreciation DepreciationOptions
	valuation    ValuationOptions
}

type column[T any] struct {
	id      string
	display string
	typ     FieldType
	get     func(T) Value
}

func col[T any](id, display string, typ FieldType, get func(T) Value) column[T] {
	return column[T]{id: id, display: display, typ: typ, get: get}
}

func defineSource[T any](id, display, table, dateField string, load func(*sourceContext) ([]T, error), cols ...column[T]) *DataSource {
	ds := &DataSource{
		ID:          id,
		DisplayName: display,
		Table:       table,
		DateField:   dateField,
		Fields:      make([]Field, 0, len(cols)),
		index:       make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		ds.Fields = append(ds.Fields, Field{ID: c.id, Name: c.id, SourceTable: table, DisplayName: c.display, Type: c.typ})
		ds.index[c.id] = i
	}
	ds.materialize = func(sc *sourceContext) ([][]Value, error) {
		records, err := load(sc)
		if err != nil {
			return nil, err
		}
		rows := make([][]Value, len(records))
		for i, rec := range records {
			row := make([]Value, len(cols))
			for j, c := range cols {
				row[j] = c.get(rec)
			}
			rows[i] = row
		}
		return rows, nil
	}
	return ds
}

// ── Registry ──────────────────────────────────────────────────────────────────

var sources = []*DataSource{
	customersSource,
	vendorsSource,
	invoicesSource,
	billsSource,
	paymentsSource,
	inventorySource,
	assetsSource,
}

var sourceIndex = func() map[string]*DataSource {
	m := make(map[string]*DataSource, len(sources))
	for _, s := range sources {
		m[s.ID] = s
	}
	return m
}()

// Sources returns every built-in data source in catalog order.
func Sources() []*DataSource {
	out := make([]*DataSource, len(sources))
	copy(out, sources)
	return out
}

// LookupSource resolves a data source id.
func LookupSource(id string) (*DataSource, error) {
	ds, ok := sourceIndex[strings.TrimSpace(id)]
	if !ok {
		return nil, newValidationError(ErrUnknownDataSource, "data_source", "unknown data source %q", id)
	}
	return ds, nil
}

// FieldsFor returns the fields of a data source in catalog order.
func FieldsFor(dataSourceID string) ([]Field, error) {
	ds, err := LookupSource(dataSourceID)
	if err != nil {
		return nil, err
	}
	out := make([]Field, len(ds.Fields))
	copy(out, ds.Fields)
	return out, nil
}

// ── Documents (invoices, bills) ───────────────────────────────────────────────

type documentRecord struct {
	documentBalance
	partyName string
	asOf      Date
}

func (r documentRecord) daysOverdue() int {
	if !r.outstanding.IsPositive() || r.doc.DueDate.IsZero() || !r.doc.DueDate.Before(r.asOf) {
		return 0
	}
	return DaysBetween(r.doc.DueDate, r.asOf)
}

func loadDocuments(docs func(*Snapshot) []Document, parties func(*Snapshot) []Party, dir PaymentDirection) func(*sourceContext) ([]documentRecord, error) {
	return func(sc *sourceContext) ([]documentRecord, error) {
		names := partyNames(parties(sc.snap))
		payments := sc.snap.paymentsByDocument(dir)
		var out []documentRecord
		for _, doc := range docs(sc.snap) {
			bal, err := balanceAsOf(doc, payments[doc.ID], sc.asOf)
			if err != nil {
				return nil, err
			}
			out = append(out, documentRecord{documentBalance: bal, partyName: names[doc.PartyID], asOf: sc.asOf})
		}
		return out, nil
	}
}

func documentColumns(partyKey, partyLabel, dateKey, dateLabel string) []column[documentRecord] {
	return []column[documentRecord]{
		col("id", "ID", FieldText, func(r documentRecord) Value { return TextValue(r.doc.ID) }),
		col("number", "Number", FieldText, func(r documentRecord) Value { return TextValue(r.doc.Number) }),
		col(partyKey+"_id", partyLabel+" ID", FieldText, func(r documentRecord) Value { return TextValue(r.doc.PartyID) }),
		col(partyKey+"_name", partyLabel, FieldText, func(r documentRecord) Value { return optionalText(r.partyName) }),
		col(dateKey, dateLabel, FieldDate, func(r documentRecord) Value { return DateValue(r.doc.Date) }),
		col("due_date", "Due Date", FieldDate, func(r documentRecord) Value { return DateValue(r.doc.DueDate) }),
		col("status", "Status", FieldText, func(r documentRecord) Value { return TextValue(string(r.doc.Status)) }),
		col("total", "Total", FieldCurrency, func(r documentRecord) Value { return MoneyValue(r.doc.Amount) }),
		col("amount_paid", "Amount Paid", FieldCurrency, func(r documentRecord) Value { return MoneyValue(r.paid) }),
		col("balance_due", "Balance Due", FieldCurrency, func(r documentRecord) Value { return MoneyValue(r.outstanding) }),
		col("days_overdue", "Days Overdue", FieldNumber, func(r documentRecord) Value { return IntValue(r.daysOverdue()) }),
		col("is_overdue", "Overdue", FieldBoolean, func(r documentRecord) Value { return BoolValue(r.daysOverdue() > 0) }),
	}
}

var invoicesSource = defineSource("invoices", "Invoices", "invoices", "invoice_date",
	loadDocuments(func(s *Snapshot) []Document { return s.Invoices }, func(s *Snapshot) []Party { return s.Customers }, PaymentReceived),
	documentColumns("customer", "Customer", "invoice_date", "Invoice Date")...)

var billsSource = defineSource("bills", "Bills", "bills", "bill_date",
	loadDocuments(func(s *Snapshot) []Document { return s.Bills }, func(s *Snapshot) []Party { return s.Vendors }, PaymentSent),
	documentColumns("vendor", "Vendor", "bill_date", "Bill Date")...)

// ── Parties (customers, vendors) ──────────────────────────────────────────────

type partyRecord struct {
	party    Party
	total    MonetaryAmount
	paid     MonetaryAmount
	count    int
	lastDate Date
}

func (r partyRecord) outstanding() MonetaryAmount {
	out, _ := r.total.Sub(r.paid)
	return out
}

// loadParties rolls posted documents up per party. Documents are scoped to the
// date range when one is given; parties with no documents still appear with zeros.
func loadParties(parties func(*Snapshot) []Party, docs func(*Snapshot) []Document, dir PaymentDirection) func(*sourceContext) ([]partyRecord, error) {
	return func(sc *sourceContext) ([]partyRecord, error) {
		base := sc.snap.Company.BaseCurrency
		payments := sc.snap.paymentsByDocument(dir)
		list := parties(sc.snap)
		out := make([]partyRecord, len(list))
		pos := make(map[string]int, len(list))
		for i, p := range list {
			out[i] = partyRecord{party: p, total: ZeroMoney(base), paid: ZeroMoney(base)}
			pos[p.ID] = i
		}
		for _, doc := range docs(sc.snap) {
			i, ok := pos[doc.PartyID]
			if !ok || !doc.Status.IsPosted() {
				continue
			}
			if sc.dateRange != nil && !sc.dateRange.Contains(doc.Date) {
				continue
			}
			bal, err := balanceAsOf(doc, payments[doc.ID], sc.asOf)
			if err != nil {
				return nil, err
			}
			r := &out[i]
			if r.count == 0 {
				r.total, r.paid = ZeroMoney(doc.Amount.Currency), ZeroMoney(doc.Amount.Currency)
			}
			if r.total, err = r.total.Add(doc.Amount); err != nil {
				return nil, err
			}
			if r.paid, err = r.paid.Add(bal.paid); err != nil {
				return nil, err
			}
			r.count++
			if doc.Date.After(r.lastDate) {
				r.lastDate = doc.Date
			}
		}
		return out, nil
	}
}

func partyColumns(totalKey, totalLabel, countKey, countLabel, lastKey, lastLabel string) []column[partyRecord] {
	return []column[partyRecord]{
		col("id", "ID", FieldText, func(r partyRecord) Value { return TextValue(r.party.ID) }),
		col("name", "Name", FieldText, func(r partyRecord) Value { return TextValue(r.party.Name) }),
		col("email", "Email", FieldText, func(r partyRecord) Value { return optionalText(r.party.Email) }),
		col("is_active", "Active", FieldBoolean, func(r partyRecord) Value { return BoolValue(r.party.IsActive) }),
		col(totalKey, totalLabel, FieldCurrency, func(r partyRecord) Value { return MoneyValue(r.total) }),
		col("amount_paid", "Amount Paid", FieldCurrency, func(r partyRecord) Value { return MoneyValue(r.paid) }),
		col("outstanding_balance", "Outstanding Balance", FieldCurrency, func(r partyRecord) Value { return MoneyValue(r.outstanding()) }),
		col(countKey, countLabel, FieldNumber, func(r partyRecord) Value { return IntValue(r.count) }),
		col(lastKey, lastLabel, FieldDate, func(r partyRecord) Value { return DateValue(r.lastDate) }),
	}
}

var customersSource = defineSource("customers", "Customers", "customers", "",
	loadParties(func(s *Snapshot) []Party { return s.Customers }, func(s *Snapshot) []Document { return s.Invoices }, PaymentReceived),
	partyColumns("total_sales", "Total Sales", "invoice_count", "Invoices", "last_invoice_date", "Last Invoice")...)

var vendorsSource = defineSource("vendors", "Vendors", "vendors", "",
	loadParties(func(s *Snapshot) []Party { return s.Vendors }, func(s *Snapshot) []Document { return s.Bills }, PaymentSent),
	partyColumns("total_purchases", "Total Purchases", "bill_count", "Bills", "last_bill_date", "Last Bill")...)

// ── Payments ──────────────────────────────────────────────────────────────────

var paymentsSource = defineSource("payments", "Payments", "payments", "payment_date",
	func(sc *sourceContext) ([]Payment, error) { return sc.snap.Payments, nil },
	col("id", "ID", FieldText, func(p Payment) Value { return TextValue(p.ID) }),
	col("document_id", "Document ID", FieldText, func(p Payment) Value { return TextValue(p.DocumentID) }),
	col("party_id", "Party ID", FieldText, func(p Payment) Value { return TextValue(p.PartyID) }),
	col("direction", "Direction", FieldText, func(p Payment) Value { return TextValue(string(p.Direction)) }),
	col("payment_date", "Payment Date", FieldDate, func(p Payment) Value { return DateValue(p.Date) }),
	col("amount", "Amount", FieldCurrency, func(p Payment) Value { return MoneyValue(p.Amount) }),
	col("method", "Method", FieldText, func(p Payment) Value { return optionalText(p.Method) }),
)

// ── Inventory ─────────────────────────────────────────────────────────────────

type inventoryRecord struct {
	item InventoryItem
	val  ItemValuation
}

var inventorySource = defineSource("inventory", "Inventory", "inventory_items", "",
	func(sc *sourceContext) ([]inventoryRecord, error) {
		opts := sc.valuation
		opts.AsOf = sc.asOf
		opts.Currency = sc.snap.Company.BaseCurrency
		out := make([]inventoryRecord, 0, len(sc.snap.Items))
		for _, item := range sc.snap.Items {
			v, err := ValueItem(item, opts)
			if err != nil {
				return nil, err
			}
			out = append(out, inventoryRecord{item: item, val: v})
		}
		return out, nil
	},
	col("item_id", "Item ID", FieldText, func(r inventoryRecord) Value { return TextValue(r.item.ItemID) }),
	col("sku", "SKU", FieldText, func(r inventoryRecord) Value { return optionalText(r.item.SKU) }),
	col("name", "Name", FieldText, func(r inventoryRecord) Value { return TextValue(r.item.Name) }),
	col("category", "Category", FieldText, func(r inventoryRecord) Value { return optionalText(r.item.Category) }),
	col("quantity_on_hand", "Quantity On Hand", FieldNumber, func(r inventoryRecord) Value { return NumberValue(r.item.QuantityOnHand) }),
	col("standard_cost", "Standard Cost", FieldCurrency, func(r inventoryRecord) Value { return MoneyValue(r.item.StandardCost) }),
	col("valuation_method", "Valuation Method", FieldText, func(r inventoryRecord) Value { return TextValue(string(r.val.Method)) }),
	col("lot_count", "Lots", FieldNumber, func(r inventoryRecord) Value { return IntValue(r.val.LotCount) }),
	col("fifo_value", "FIFO Value", FieldCurrency, func(r inventoryRecord) Value { return MoneyValue(r.val.FIFO) }),
	col("lifo_value", "LIFO Value", FieldCurrency, func(r inventoryRecord) Value { return MoneyValue(r.val.LIFO) }),
	col("average_value", "Average Value", FieldCurrency, func(r inventoryRecord) Value { return MoneyValue(r.val.Average) }),
	col("standard_value", "Standard Value", FieldCurrency, func(r inventoryRecord) Value { return MoneyValue(r.val.Standard) }),
)

// ── Assets ────────────────────────────────────────────────────────────────────

var assetsSource = defineSource("assets", "Fixed Assets", "assets", "purchase_date",
	func(sc *sourceContext) ([]AssetDepreciation, error) {
		opts := sc.depreciation
		opts.AsOf = sc.asOf
		out := make([]AssetDepreciation, 0, len(sc.snap.Assets))
		for _, a := range sc.snap.Assets {
			d, err := DepreciateAsset(a, opts)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, nil
	},
	col("id", "ID", FieldText, func(a AssetDepreciation) Value { return TextValue(a.AssetID) }),
	col("name", "Name", FieldText, func(a AssetDepreciation) Value { return TextValue(a.Name) }),
	col("category", "Category", FieldText, func(a AssetDepreciation) Value { return optionalText(a.Category) }),
	col("method", "Method", FieldText, func(a AssetDepreciation) Value { return TextValue(string(a.Method)) }),
	col("purchase_date", "Purchase Date", FieldDate, func(a AssetDepreciation) Value { return DateValue(a.PurchaseDate) }),
	col("purchase_price", "Purchase Price", FieldCurrency, func(a AssetDepreciation) Value { return MoneyValue(a.PurchasePrice) }),
	col("residual_value", "Residual Value", FieldCurrency, func(a AssetDepreciation) Value { return MoneyValue(a.ResidualValue) }),
	col("useful_life_months", "Useful Life (Months)", FieldNumber, func(a AssetDepreciation) Value { return IntValue(a.UsefulLifeMonths) }),
	col("accumulated_depreciation", "Accumulated Depreciation", FieldCurrency, func(a AssetDepreciation) Value { return MoneyValue(a.AccumulatedDepreciation) }),
	col("book_value", "Book Value", FieldCurrency, func(a AssetDepreciation) Value { return MoneyValue(a.CurrentBookValue) }),
	col("fully_depreciated", "Fully Depreciated", FieldBoolean, func(a AssetDepreciation) Value { return BoolValue(a.FullyDepreciated) }),
)

func optionalText(s string) Value {
	if s == "" {
		return NullValue(FieldText)
	}
	return TextValue(s)
}

// sortedFieldIDs is used in error messages listing what a source offers.
func sortedFieldIDs(ds *DataSource) []string {
	ids := make([]string, 0, len(ds.Fields))
	for _, f := range ds.Fields {
		ids = append(ids, f.ID)
	}
	sort.Strings(ids)
	return ids
}
