package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordStore supplies point-in-time snapshots of a company's records. A report
// loads exactly one snapshot and never returns to the store mid-computation.
type RecordStore interface {
	LoadSnapshot(ctx context.Context, companyCode string) (*Snapshot, error)
	// LoadCompany returns only the company header.
	LoadCompany(ctx context.Context, companyCode string) (*Company, error)
	ListCompanies(ctx context.Context) ([]Company, error)
}

// ── PostgreSQL ────────────────────────────────────────────────────────────────

// PostgresStore reads the reporting read model. Every snapshot is taken inside one
// read-only REPEATABLE READ transaction so all tables reflect the same instant.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) LoadSnapshot(ctx context.Context, companyCode string) (*Snapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	snap := &Snapshot{}
	var companyID int
	if err := tx.QueryRow(ctx,
		"SELECT id, company_code, name, base_currency, now() FROM companies WHERE company_code = $1", companyCode,
	).Scan(&companyID, &snap.Company.Code, &snap.Company.Name, &snap.Company.BaseCurrency, &snap.TakenAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newValidationError(ErrNotFound, "company_code", "company %s not found", companyCode)
		}
		return nil, fmt.Errorf("failed to resolve company: %w", err)
	}
	snap.Company.BaseCurrency = strings.TrimSpace(snap.Company.BaseCurrency)

	loaders := []func(context.Context, pgx.Tx, int, *Snapshot) error{
		loadPartiesSQL("customers", func(s *Snapshot) *[]Party { return &s.Customers }),
		loadPartiesSQL("vendors", func(s *Snapshot) *[]Party { return &s.Vendors }),
		loadDocumentsSQL(`
			SELECT i.id::text, i.invoice_number, c.code, i.invoice_date::text, COALESCE(i.due_date::text, ''),
			       i.total_amount, i.currency, i.status
			FROM invoices i
			JOIN customers c ON c.id = i.customer_id
			WHERE i.company_id = $1
			ORDER BY i.invoice_date, i.id`, func(s *Snapshot) *[]Document { return &s.Invoices }),
		loadDocumentsSQL(`
			SELECT b.id::text, b.bill_number, v.code, b.bill_date::text, COALESCE(b.due_date::text, ''),
			       b.total_amount, b.currency, b.status
			FROM bills b
			JOIN vendors v ON v.id = b.vendor_id
			WHERE b.company_id = $1
			ORDER BY b.bill_date, b.id`, func(s *Snapshot) *[]Document { return &s.Bills }),
		loadPaymentsSQL,
		loadAssetsSQL,
		loadItemsSQL,
	}
	for _, load := range loaders {
		if err := load(ctx, tx, companyID, snap); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to close snapshot transaction: %w", err)
	}
	return snap, nil
}

func (s *PostgresStore) LoadCompany(ctx context.Context, companyCode string) (*Company, error) {
	var c Company
	err := s.pool.QueryRow(ctx,
		"SELECT company_code, name, base_currency FROM companies WHERE company_code = $1", companyCode,
	).Scan(&c.Code, &c.Name, &c.BaseCurrency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newValidationError(ErrNotFound, "company_code", "company %s not found", companyCode)
		}
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	c.BaseCurrency = strings.TrimSpace(c.BaseCurrency)
	return &c, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := s.pool.Query(ctx, "SELECT company_code, name, base_currency FROM companies ORDER BY company_code")
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.Code, &c.Name, &c.BaseCurrency); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		c.BaseCurrency = strings.TrimSpace(c.BaseCurrency)
		out = append(out, c)
	}
	return out, rows.Err()
}

func loadPartiesSQL(table string, target func(*Snapshot) *[]Party) func(context.Context, pgx.Tx, int, *Snapshot) error {
	q := fmt.Sprintf(`SELECT code, name, COALESCE(email, ''), is_active FROM %s WHERE company_id = $1 ORDER BY code`, table)
	return func(ctx context.Context, tx pgx.Tx, companyID int, snap *Snapshot) error {
		rows, err := tx.Query(ctx, q, companyID)
		if err != nil {
			return fmt.Errorf("failed to query %s: %w", table, err)
		}
		defer rows.Close()
		out := target(snap)
		for rows.Next() {
			var p Party
			if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.IsActive); err != nil {
				return fmt.Errorf("failed to scan %s row: %w", table, err)
			}
			*out = append(*out, p)
		}
		return rows.Err()
	}
}

func loadDocumentsSQL(q string, target func(*Snapshot) *[]Document) func(context.Context, pgx.Tx, int, *Snapshot) error {
	return func(ctx context.Context, tx pgx.Tx, companyID int, snap *Snapshot) error {
		rows, err := tx.Query(ctx, q, companyID)
		if err != nil {
			return fmt.Errorf("failed to query documents: %w", err)
		}
		defer rows.Close()
		out := target(snap)
		for rows.Next() {
			var d Document
			var date, due, currency, status string
			if err := rows.Scan(&d.ID, &d.Number, &d.PartyID, &date, &due, &d.Amount.Amount, &currency, &status); err != nil {
				return fmt.Errorf("failed to scan document row: %w", err)
			}
			if d.Date, err = ParseDate(date); err != nil {
				return err
			}
			if d.DueDate, err = ParseDate(due); err != nil {
				return err
			}
			d.Amount = NewMoney(d.Amount.Amount, currency)
			d.Status = DocumentStatus(status)
			*out = append(*out, d)
		}
		return rows.Err()
	}
}

func loadPaymentsSQL(ctx context.Context, tx pgx.Tx, companyID int, snap *Snapshot) error {
	rows, err := tx.Query(ctx, `
		SELECT p.id::text,
		       COALESCE(p.invoice_id, p.bill_id)::text,
		       COALESCE(c.code, v.code),
		       CASE WHEN p.invoice_id IS NOT NULL THEN 'received' ELSE 'sent' END,
		       p.payment_date::text, p.amount, p.currency, COALESCE(p.method, '')
		FROM payments p
		LEFT JOIN invoices i  ON i.id = p.invoice_id
		LEFT JOIN customers c ON c.id = i.customer_id
		LEFT JOIN bills b     ON b.id = p.bill_id
		LEFT JOIN vendors v   ON v.id = b.vendor_id
		WHERE p.company_id = $1
		ORDER BY p.payment_date, p.id`, companyID)
	if err != nil {
		return fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p Payment
		var dir, date, currency string
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.PartyID, &dir, &date, &p.Amount.Amount, &currency, &p.Method); err != nil {
			return fmt.Errorf("failed to scan payment row: %w", err)
		}
		if p.Date, err = ParseDate(date); err != nil {
			return err
		}
		p.Direction = PaymentDirection(dir)
		p.Amount = NewMoney(p.Amount.Amount, currency)
		snap.Payments = append(snap.Payments, p)
	}
	return rows.Err()
}

func loadAssetsSQL(ctx context.Context, tx pgx.Tx, companyID int, snap *Snapshot) error {
	rows, err := tx.Query(ctx, `
		SELECT asset_code, name, category, purchase_date::text, purchase_price, currency,
		       residual_value, useful_life_months, depreciation_method
		FROM fixed_assets
		WHERE company_id = $1
		ORDER BY asset_code`, companyID)
	if err != nil {
		return fmt.Errorf("failed to query fixed assets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a Asset
		var date, currency, method string
		if err := rows.Scan(&a.ID, &a.Name, &a.Category, &date, &a.PurchasePrice.Amount, &currency,
			&a.ResidualValue, &a.UsefulLifeMonths, &method); err != nil {
			return fmt.Errorf("failed to scan fixed asset row: %w", err)
		}
		if a.PurchaseDate, err = ParseDate(date); err != nil {
			return err
		}
		a.PurchasePrice = NewMoney(a.PurchasePrice.Amount, currency)
		a.Method = DepreciationMethod(method)
		snap.Assets = append(snap.Assets, a)
	}
	return rows.Err()
}

func loadItemsSQL(ctx context.Context, tx pgx.Tx, companyID int, snap *Snapshot) error {
	rows, err := tx.Query(ctx, `
		SELECT it.id, it.code, COALESCE(it.sku, ''), it.name, it.category, it.quantity_on_hand,
		       it.standard_cost, it.currency, it.valuation_method
		FROM inventory_items it
		WHERE it.company_id = $1
		ORDER BY it.code`, companyID)
	if err != nil {
		return fmt.Errorf("failed to query inventory items: %w", err)
	}
	byID := make(map[int]int)
	for rows.Next() {
		var id int
		var it InventoryItem
		var currency, method string
		if err := rows.Scan(&id, &it.ItemID, &it.SKU, &it.Name, &it.Category, &it.QuantityOnHand,
			&it.StandardCost.Amount, &currency, &method); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan inventory item row: %w", err)
		}
		it.StandardCost = NewMoney(it.StandardCost.Amount, currency)
		it.ValuationMethod = ValuationMethod(method)
		it.Lots = []CostLayer{}
		byID[id] = len(snap.Items)
		snap.Items = append(snap.Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read inventory items: %w", err)
	}

	// Lots oldest-received first; the valuation engine depends on this order.
	lots, err := tx.Query(ctx, `
		SELECT l.item_id, l.lot_number, l.quantity_received, l.unit_cost,
		       l.received_date::text, COALESCE(l.expiration_date::text, '')
		FROM inventory_lots l
		JOIN inventory_items it ON it.id = l.item_id
		WHERE it.company_id = $1
		ORDER BY l.item_id, l.received_date, l.id`, companyID)
	if err != nil {
		return fmt.Errorf("failed to query inventory lots: %w", err)
	}
	defer lots.Close()
	for lots.Next() {
		var itemID int
		var l CostLayer
		var received, expires string
		if err := lots.Scan(&itemID, &l.LotNumber, &l.QuantityReceived, &l.UnitCost, &received, &expires); err != nil {
			return fmt.Errorf("failed to scan inventory lot row: %w", err)
		}
		if l.ReceivedDate, err = ParseDate(received); err != nil {
			return err
		}
		if expires != "" {
			exp, err := ParseDate(expires)
			if err != nil {
				return err
			}
			l.ExpirationDate = &exp
		}
		if idx, ok := byID[itemID]; ok {
			snap.Items[idx].Lots = append(snap.Items[idx].Lots, l)
		}
	}
	return lots.Err()
}

// ── In-memory ─────────────────────────────────────────────────────────────────

// MemoryStore serves snapshots held in memory, keyed by company code. It backs the
// CLI's --data mode and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

func NewMemoryStore(snaps ...*Snapshot) *MemoryStore {
	m := &MemoryStore{snapshots: make(map[string]*Snapshot)}
	for _, s := range snaps {
		m.Put(s)
	}
	return m
}

// Put registers or replaces the snapshot for s.Company.Code.
func (m *MemoryStore) Put(s *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[s.Company.Code] = s
}

func (m *MemoryStore) LoadSnapshot(_ context.Context, companyCode string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[companyCode]
	if !ok {
		return nil, newValidationError(ErrNotFound, "company_code", "company %s not found", companyCode)
	}
	return s, nil
}

func (m *MemoryStore) LoadCompany(ctx context.Context, companyCode string) (*Company, error) {
	s, err := m.LoadSnapshot(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	c := s.Company
	return &c, nil
}

// ListCompanies returns the held companies ordered by code.
func (m *MemoryStore) ListCompanies(_ context.Context) ([]Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Company, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s.Company)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// LoadSnapshotFile reads a JSON snapshot (the Snapshot shape) from path. A missing
// taken_at is set to the file's modification time.
func LoadSnapshotFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()

	var snap Snapshot
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	if snap.Company.Code == "" {
		return nil, fmt.Errorf("snapshot %s has no company.company_code", path)
	}
	if snap.TakenAt.IsZero() {
		if info, err := f.Stat(); err == nil {
			snap.TakenAt = info.ModTime().UTC()
		} else {
			snap.TakenAt = time.Now().UTC()
		}
	}
	return &snap, nil
}
