package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// The record types below are supplied by the system of record (invoicing, purchasing,
// fixed-asset and inventory modules). The engine treats them as immutable,
// already-validated input.

type Company struct {
	Code         string `json:"company_code"`
	Name         string `json:"name"`
	BaseCurrency string `json:"base_currency"`
}

// Party is a customer or a vendor.
type Party struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	IsActive bool   `json:"is_active"`
}

type DocumentStatus string

const (
	DocumentStatusDraft   DocumentStatus = "draft"
	DocumentStatusOpen    DocumentStatus = "open"
	DocumentStatusPartial DocumentStatus = "partial"
	DocumentStatusPaid    DocumentStatus = "paid"
	DocumentStatusVoid    DocumentStatus = "void"
)

// IsPosted reports whether the document affects balances (drafts and voided
// documents do not).
func (s DocumentStatus) IsPosted() bool {
	return s == DocumentStatusOpen || s == DocumentStatusPartial || s == DocumentStatusPaid
}

// Document is a customer invoice or a vendor bill.
type Document struct {
	ID      string         `json:"id"`
	Number  string         `json:"number"`
	PartyID string         `json:"party_id"`
	Date    Date           `json:"date"`
	DueDate Date           `json:"due_date"`
	Amount  MonetaryAmount `json:"amount"`
	Status  DocumentStatus `json:"status"`
}

type PaymentDirection string

const (
	PaymentReceived PaymentDirection = "received" // customer paid us
	PaymentSent     PaymentDirection = "sent"     // we paid a vendor
)

// Payment settles (part of) one document.
type Payment struct {
	ID         string           `json:"id"`
	DocumentID string           `json:"document_id"`
	PartyID    string           `json:"party_id"`
	Direction  PaymentDirection `json:"direction"`
	Date       Date             `json:"date"`
	Amount     MonetaryAmount   `json:"amount"`
	Method     string           `json:"method,omitempty"`
}

type DepreciationMethod string

const (
	StraightLine     DepreciationMethod = "straight_line"
	DecliningBalance DepreciationMethod = "declining_balance"
)

func (m DepreciationMethod) IsValid() bool {
	return m == StraightLine || m == DecliningBalance
}

// Asset is a depreciable fixed asset. ResidualValue shares PurchasePrice's currency.
type Asset struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Category         string             `json:"category"`
	PurchaseDate     Date               `json:"purchase_date"`
	PurchasePrice    MonetaryAmount     `json:"purchase_price"`
	ResidualValue    decimal.Decimal    `json:"residual_value"`
	UsefulLifeMonths int                `json:"useful_life_months"`
	Method           DepreciationMethod `json:"method"`
}

// CostLayer is one received lot. Layers are never mutated once recorded.
type CostLayer struct {
	LotNumber        string          `json:"lot_number"`
	QuantityReceived decimal.Decimal `json:"quantity_received"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	ReceivedDate     Date            `json:"received_date"`
	ExpirationDate   *Date           `json:"expiration_date,omitempty"`
}

// InventoryItem carries its lots ordered oldest-received first.
type InventoryItem struct {
	ItemID          string          `json:"item_id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	QuantityOnHand  decimal.Decimal `json:"quantity_on_hand"`
	StandardCost    MonetaryAmount  `json:"standard_cost"`
	ValuationMethod ValuationMethod `json:"valuation_method"`
	Lots            []CostLayer     `json:"lots"`
}

// Snapshot is a point-in-time, read-only view of every record a report may need.
// A report computation loads one snapshot and never goes back to the store.
type Snapshot struct {
	Company   Company         `json:"company"`
	TakenAt   time.Time       `json:"taken_at"`
	Customers []Party         `json:"customers"`
	Vendors   []Party         `json:"vendors"`
	Invoices  []Document      `json:"invoices"`
	Bills     []Document      `json:"bills"`
	Payments  []Payment       `json:"payments"`
	Assets    []Asset         `json:"assets"`
	Items     []InventoryItem `json:"items"`
}

// paymentsByDocument indexes payments of one direction by document id, preserving
// snapshot order.
func (s *Snapshot) paymentsByDocument(dir PaymentDirection) map[string][]Payment {
	out := make(map[string][]Payment)
	for _, p := range s.Payments {
		if p.Direction == dir {
			out[p.DocumentID] = append(out[p.DocumentID], p)
		}
	}
	return out
}

func partyNames(parties []Party) map[string]string {
	out := make(map[string]string, len(parties))
	for _, p := range parties {
		out[p.ID] = p.Name
	}
	return out
}

// documentBalance is a document's position as of a date.
type documentBalance struct {
	doc         Document
	paid        MonetaryAmount
	outstanding MonetaryAmount
	lastPayment Date
}

// balanceAsOf applies the document's payments dated on or before asOf (all payments
// when asOf is zero).
func balanceAsOf(doc Document, payments []Payment, asOf Date) (documentBalance, error) {
	b := documentBalance{doc: doc, paid: ZeroMoney(doc.Amount.Currency)}
	for _, p := range payments {
		if !asOf.IsZero() && p.Date.After(asOf) {
			continue
		}
		var err error
		if b.paid, err = b.paid.Add(p.Amount); err != nil {
			return documentBalance{}, err
		}
		if p.Date.After(b.lastPayment) {
			b.lastPayment = p.Date
		}
	}
	out, err := doc.Amount.Sub(b.paid)
	if err != nil {
		return documentBalance{}, err
	}
	b.outstanding = out
	return b, nil
}
