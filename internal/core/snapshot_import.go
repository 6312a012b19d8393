package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ImportSnapshot replaces the read-model rows of snap.Company with the records in
// snap, in one transaction. The company row is created or updated in place.
// Document ids are reassigned by the database; payments are linked through them.
// A posted document without a due date fails the import before anything is written.
func (s *PostgresStore) ImportSnapshot(ctx context.Context, snap *Snapshot) error {
	if err := validateDueDates(snap.Invoices); err != nil {
		return err
	}
	if err := validateDueDates(snap.Bills); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var companyID int
	err = tx.QueryRow(ctx, `
		INSERT INTO companies (company_code, name, base_currency)
		VALUES ($1, $2, $3)
		ON CONFLICT (company_code) DO UPDATE
		  SET name = EXCLUDED.name,
		      base_currency = EXCLUDED.base_currency
		RETURNING id`,
		snap.Company.Code, snap.Company.Name, snap.Company.BaseCurrency,
	).Scan(&companyID)
	if err != nil {
		return fmt.Errorf("failed to upsert company %s: %w", snap.Company.Code, err)
	}

	if err := clearCompanyRows(ctx, tx, companyID); err != nil {
		return err
	}

	customerIDs, err := insertParties(ctx, tx, "customers", companyID, snap.Customers)
	if err != nil {
		return err
	}
	vendorIDs, err := insertParties(ctx, tx, "vendors", companyID, snap.Vendors)
	if err != nil {
		return err
	}
	invoiceIDs, err := insertDocuments(ctx, tx, `
		INSERT INTO invoices (company_id, invoice_number, customer_id, invoice_date, due_date, total_amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`, companyID, snap.Invoices, customerIDs)
	if err != nil {
		return fmt.Errorf("failed to insert invoices: %w", err)
	}
	billIDs, err := insertDocuments(ctx, tx, `
		INSERT INTO bills (company_id, bill_number, vendor_id, bill_date, due_date, total_amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`, companyID, snap.Bills, vendorIDs)
	if err != nil {
		return fmt.Errorf("failed to insert bills: %w", err)
	}

	for _, p := range snap.Payments {
		var invoiceID, billID *int
		if p.Direction == PaymentReceived {
			id, ok := invoiceIDs[p.DocumentID]
			if !ok {
				return fmt.Errorf("payment %s references unknown invoice %s", p.ID, p.DocumentID)
			}
			invoiceID = &id
		} else {
			id, ok := billIDs[p.DocumentID]
			if !ok {
				return fmt.Errorf("payment %s references unknown bill %s", p.ID, p.DocumentID)
			}
			billID = &id
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO payments (company_id, invoice_id, bill_id, payment_date, amount, currency, method)
			VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))`,
			companyID, invoiceID, billID, p.Date.Time, p.Amount.Amount, p.Amount.Currency, p.Method)
		if err != nil {
			return fmt.Errorf("failed to insert payment %s: %w", p.ID, err)
		}
	}

	for _, a := range snap.Assets {
		_, err := tx.Exec(ctx, `
			INSERT INTO fixed_assets (company_id, asset_code, name, category, purchase_date, purchase_price,
			                          currency, residual_value, useful_life_months, depreciation_method)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			companyID, a.ID, a.Name, a.Category, a.PurchaseDate.Time, a.PurchasePrice.Amount,
			a.PurchasePrice.Currency, a.ResidualValue, a.UsefulLifeMonths, string(a.Method))
		if err != nil {
			return fmt.Errorf("failed to insert asset %s: %w", a.ID, err)
		}
	}

	for _, it := range snap.Items {
		var itemID int
		err := tx.QueryRow(ctx, `
			INSERT INTO inventory_items (company_id, code, sku, name, category, quantity_on_hand,
			                             standard_cost, currency, valuation_method)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9) RETURNING id`,
			companyID, it.ItemID, it.SKU, it.Name, it.Category, it.QuantityOnHand,
			it.StandardCost.Amount, it.StandardCost.Currency, string(it.ValuationMethod),
		).Scan(&itemID)
		if err != nil {
			return fmt.Errorf("failed to insert item %s: %w", it.ItemID, err)
		}
		for _, l := range it.Lots {
			var expires any
			if l.ExpirationDate != nil && !l.ExpirationDate.IsZero() {
				expires = l.ExpirationDate.Time
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO inventory_lots (item_id, lot_number, quantity_received, unit_cost, received_date, expiration_date)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				itemID, l.LotNumber, l.QuantityReceived, l.UnitCost, l.ReceivedDate.Time, expires)
			if err != nil {
				return fmt.Errorf("failed to insert lot %s of item %s: %w", l.LotNumber, it.ItemID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot import: %w", err)
	}
	return nil
}

func validateDueDates(docs []Document) error {
	for _, d := range docs {
		if d.Status.IsPosted() && d.DueDate.IsZero() {
			return newValidationError(ErrInvalidInput, "due_date", "document %s has no due date", d.Number)
		}
	}
	return nil
}

var clearStatements = []string{
	"DELETE FROM payments WHERE company_id = $1",
	"DELETE FROM invoices WHERE company_id = $1",
	"DELETE FROM bills WHERE company_id = $1",
	"DELETE FROM inventory_lots WHERE item_id IN (SELECT id FROM inventory_items WHERE company_id = $1)",
	"DELETE FROM inventory_items WHERE company_id = $1",
	"DELETE FROM fixed_assets WHERE company_id = $1",
	"DELETE FROM customers WHERE company_id = $1",
	"DELETE FROM vendors WHERE company_id = $1",
}

func clearCompanyRows(ctx context.Context, tx pgx.Tx, companyID int) error {
	for _, q := range clearStatements {
		if _, err := tx.Exec(ctx, q, companyID); err != nil {
			return fmt.Errorf("failed to clear existing rows: %w", err)
		}
	}
	return nil
}

// insertParties returns the database id of each inserted party keyed by its code.
func insertParties(ctx context.Context, tx pgx.Tx, table string, companyID int, parties []Party) (map[string]int, error) {
	ids := make(map[string]int, len(parties))
	q := fmt.Sprintf(`INSERT INTO %s (company_id, code, name, email, is_active)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5) RETURNING id`, table)
	for _, p := range parties {
		var id int
		if err := tx.QueryRow(ctx, q, companyID, p.ID, p.Name, p.Email, p.IsActive).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to insert %s %s: %w", table, p.ID, err)
		}
		ids[p.ID] = id
	}
	return ids, nil
}

// insertDocuments returns the database id of each inserted document keyed by its
// snapshot id.
func insertDocuments(ctx context.Context, tx pgx.Tx, q string, companyID int, docs []Document, partyIDs map[string]int) (map[string]int, error) {
	ids := make(map[string]int, len(docs))
	for _, d := range docs {
		partyID, ok := partyIDs[d.PartyID]
		if !ok {
			return nil, fmt.Errorf("document %s references unknown party %s", d.Number, d.PartyID)
		}
		var due any
		if !d.DueDate.IsZero() {
			due = d.DueDate.Time
		}
		var id int
		err := tx.QueryRow(ctx, q, companyID, d.Number, partyID, d.Date.Time, due,
			d.Amount.Amount, d.Amount.Currency, string(d.Status)).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", d.Number, err)
		}
		ids[d.ID] = id
	}
	return ids, nil
}
