package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

type StatementLineType string

const (
	StatementInvoice StatementLineType = "invoice"
	StatementPayment StatementLineType = "payment"
)

// StatementTransaction is one line on a customer statement. RunningBalance is the
// customer's balance after this line (positive = customer owes us).
type StatementTransaction struct {
	Date           Date              `json:"date"`
	Type           StatementLineType `json:"type"`
	DocumentID     string            `json:"document_id"`
	Reference      string            `json:"reference"`
	DueDate        Date              `json:"due_date"`
	Charge         decimal.Decimal   `json:"charge"`
	Credit         decimal.Decimal   `json:"credit"`
	RunningBalance decimal.Decimal   `json:"running_balance"`
}

type StatementSummary struct {
	OpeningBalance   decimal.Decimal `json:"opening_balance"`
	TotalInvoiced    decimal.Decimal `json:"total_invoiced"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	ClosingBalance   decimal.Decimal `json:"closing_balance"`
	TransactionCount int             `json:"transaction_count"`
}

// CustomerStatement is a customer's activity over a period plus the aging of what
// remains open at the period end.
type CustomerStatement struct {
	Customer     Party                  `json:"customer"`
	Currency     string                 `json:"currency"`
	Period       DateRange              `json:"period"`
	Summary      StatementSummary       `json:"summary"`
	Transactions []StatementTransaction `json:"transactions"`
	Aging        AgingBuckets           `json:"aging"`
}

// BuildCustomerStatement lists posted invoices and received payments for one
// customer within period, ordered by date (invoices before payments on the same
// day), with a running balance seeded by all activity before period.Start.
func BuildCustomerStatement(snap *Snapshot, customerID string, period DateRange) (*CustomerStatement, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	var customer *Party
	for i := range snap.Customers {
		if snap.Customers[i].ID == customerID {
			customer = &snap.Customers[i]
			break
		}
	}
	if customer == nil {
		return nil, newValidationError(ErrNotFound, "customer_id", "customer %s not found", customerID)
	}

	currency := ""
	checkCurrency := func(m MonetaryAmount) error {
		if currency == "" {
			currency = m.Currency
			return nil
		}
		if m.Currency != currency {
			return &CurrencyMismatchError{Op: "customer statement", Left: currency, Right: m.Currency}
		}
		return nil
	}

	type line struct {
		tx    StatementTransaction
		order int
	}
	var lines []line
	opening := decimal.Zero
	posted := make(map[string]Document)
	for _, doc := range snap.Invoices {
		if doc.PartyID != customerID || !doc.Status.IsPosted() {
			continue
		}
		if err := checkCurrency(doc.Amount); err != nil {
			return nil, err
		}
		posted[doc.ID] = doc
		switch {
		case doc.Date.Before(period.Start):
			opening = opening.Add(doc.Amount.Amount)
		case !doc.Date.After(period.End):
			lines = append(lines, line{order: len(lines), tx: StatementTransaction{
				Date: doc.Date, Type: StatementInvoice, DocumentID: doc.ID, Reference: doc.Number,
				DueDate: doc.DueDate, Charge: doc.Amount.Amount, Credit: decimal.Zero,
			}})
		}
	}
	for _, p := range snap.Payments {
		if p.PartyID != customerID || p.Direction != PaymentReceived {
			continue
		}
		if _, ok := posted[p.DocumentID]; !ok {
			continue
		}
		if err := checkCurrency(p.Amount); err != nil {
			return nil, err
		}
		switch {
		case p.Date.Before(period.Start):
			opening = opening.Sub(p.Amount.Amount)
		case !p.Date.After(period.End):
			ref := posted[p.DocumentID].Number
			if p.Method != "" {
				ref += " (" + p.Method + ")"
			}
			lines = append(lines, line{order: len(lines), tx: StatementTransaction{
				Date: p.Date, Type: StatementPayment, DocumentID: p.DocumentID, Reference: ref,
				Charge: decimal.Zero, Credit: p.Amount.Amount,
			}})
		}
	}
	if currency == "" {
		currency = snap.Company.BaseCurrency
	}

	sort.SliceStable(lines, func(i, j int) bool {
		a, b := lines[i].tx, lines[j].tx
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Type != b.Type {
			return a.Type == StatementInvoice
		}
		return lines[i].order < lines[j].order
	})

	stmt := &CustomerStatement{
		Customer:     *customer,
		Currency:     currency,
		Period:       period,
		Transactions: make([]StatementTransaction, 0, len(lines)),
		Summary:      StatementSummary{OpeningBalance: opening},
	}
	running := opening
	for _, l := range lines {
		running = running.Add(l.tx.Charge).Sub(l.tx.Credit)
		l.tx.RunningBalance = running
		stmt.Summary.TotalInvoiced = stmt.Summary.TotalInvoiced.Add(l.tx.Charge)
		stmt.Summary.TotalPaid = stmt.Summary.TotalPaid.Add(l.tx.Credit)
		stmt.Transactions = append(stmt.Transactions, l.tx)
	}
	stmt.Summary.ClosingBalance = running
	stmt.Summary.TransactionCount = len(stmt.Transactions)

	docs := make([]Document, 0, len(posted))
	for _, doc := range snap.Invoices {
		if _, ok := posted[doc.ID]; ok {
			docs = append(docs, doc)
		}
	}
	open, _, err := agingInputs(docs, snap.paymentsByDocument(PaymentReceived), map[string]string{customerID: customer.Name}, period.End)
	if err != nil {
		return nil, err
	}
	results, err := ComputeAging(AgingRequest{AsOf: period.End, DefaultCurrency: currency, Open: open})
	if err != nil {
		return nil, err
	}
	stmt.Aging = AgingBuckets{Currency: currency}
	for _, r := range results {
		if r.Currency == currency {
			stmt.Aging = r.Summary.Buckets
		}
	}
	return stmt, nil
}
