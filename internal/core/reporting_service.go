package core

import (
	"context"
	"time"

	"accounting-reports/internal/logger"

	"github.com/shopspring/decimal"
)

// ── Report types ──────────────────────────────────────────────────────────────

// APAgingReport is the accounts-payable aging schedule. Vendors billed in a
// currency other than the report's own are aged separately in OtherCurrencies;
// amounts are never summed across currencies.
type APAgingReport struct {
	AsOfDate        Date            `json:"as_of_date"`
	Currency        string          `json:"currency"`
	Summary         AgingSummary    `json:"summary"`
	Vendors         []AgingRow      `json:"vendors"`
	OtherCurrencies []APAgingReport `json:"other_currencies,omitempty"`
}

// ARAgingReport is the accounts-receivable aging schedule, shaped like APAgingReport.
type ARAgingReport struct {
	AsOfDate        Date            `json:"as_of_date"`
	Currency        string          `json:"currency"`
	Summary         AgingSummary    `json:"summary"`
	Customers       []AgingRow      `json:"customers"`
	OtherCurrencies []ARAgingReport `json:"other_currencies,omitempty"`
}

// ── Interface ─────────────────────────────────────────────────────────────────

// ReportingService runs every report against one snapshot per call.
type ReportingService interface {
	// LoadCompany returns the company header, failing with ErrNotFound for an
	// unknown code.
	LoadCompany(ctx context.Context, companyCode string) (*Company, error)

	// ListCompanies returns every company the store holds.
	ListCompanies(ctx context.Context) ([]Company, error)

	// ValidateReport checks spec against the field catalog without reading data.
	ValidateReport(spec ReportSpecification) error

	// RunCustomReport validates spec before any data is loaded, then runs it.
	// A zero spec.AsOf means today.
	RunCustomReport(ctx context.Context, companyCode string, spec ReportSpecification) (*CustomReportResult, error)

	// GetAPAging ages open vendor bills as of asOf (today when zero). Settled bills
	// paid within [periodStart, asOf] feed the average payment days.
	GetAPAging(ctx context.Context, companyCode string, asOf, periodStart Date) (*APAgingReport, error)

	// GetARAging ages open customer invoices, as GetAPAging does for bills.
	GetARAging(ctx context.Context, companyCode string, asOf, periodStart Date) (*ARAgingReport, error)

	// GetCustomerStatement lists one customer's activity within period.
	GetCustomerStatement(ctx context.Context, companyCode, customerID string, period DateRange) (*CustomerStatement, error)

	// GetDepreciationReport depreciates every fixed asset as of asOf. A zero factor
	// uses the configured declining-balance factor.
	GetDepreciationReport(ctx context.Context, companyCode string, asOf Date, factor decimal.Decimal) (*DepreciationReport, error)

	// GetInventoryValuation values every item as of asOf. An empty method keeps
	// each item's own method.
	GetInventoryValuation(ctx context.Context, companyCode string, asOf Date, method ValuationMethod) (*InventoryValuationReport, error)
}

// ReportingConfig holds the deployment defaults reports run under.
type ReportingConfig struct {
	Calendar               FiscalCalendar
	DecliningFactor        decimal.Decimal
	DefaultValuationMethod ValuationMethod
	// Now is the clock used for "today". Nil means time.Now.
	Now func() time.Time
}

// ── Implementation ────────────────────────────────────────────────────────────

type reportingService struct {
	store RecordStore
	cfg   ReportingConfig
}

// NewReportingService constructs a ReportingService reading from store.
func NewReportingService(store RecordStore, cfg ReportingConfig) ReportingService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if !cfg.DecliningFactor.IsPositive() {
		cfg.DecliningFactor = DefaultDecliningFactor
	}
	if cfg.DefaultValuationMethod == "" {
		cfg.DefaultValuationMethod = DefaultValuationMethod
	}
	return &reportingService{store: store, cfg: cfg}
}

func (s *reportingService) today() Date {
	return DateOf(s.cfg.Now())
}

func (s *reportingService) orToday(d Date) Date {
	if d.IsZero() {
		return s.today()
	}
	return d
}

func (s *reportingService) LoadCompany(ctx context.Context, companyCode string) (*Company, error) {
	return s.store.LoadCompany(ctx, companyCode)
}

func (s *reportingService) ListCompanies(ctx context.Context) ([]Company, error) {
	return s.store.ListCompanies(ctx)
}

// ── RunCustomReport ───────────────────────────────────────────────────────────

func (s *reportingService) composeOptions() ComposeOptions {
	return ComposeOptions{
		AsOf:                   s.today(),
		Calendar:               s.cfg.Calendar,
		DecliningFactor:        s.cfg.DecliningFactor,
		DefaultValuationMethod: s.cfg.DefaultValuationMethod,
	}
}

func (s *reportingService) ValidateReport(spec ReportSpecification) error {
	_, err := Compile(spec, s.composeOptions())
	return err
}

func (s *reportingService) RunCustomReport(ctx context.Context, companyCode string, spec ReportSpecification) (*CustomReportResult, error) {
	start := time.Now()
	compiled, err := Compile(spec, s.composeOptions())
	if err != nil {
		return nil, err
	}
	snap, err := s.store.LoadSnapshot(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	result, err := compiled.Execute(ctx, snap)
	if err != nil {
		return nil, err
	}
	log := logger.WithComponent("reporting")
	log.Info().
		Str("report", "custom").
		Str("company", companyCode).
		Str("data_source", result.DataSource).
		Int("rows", result.RowCount).
		Dur("duration", time.Since(start)).
		Msg("report complete")
	return result, nil
}

// ── Aging ─────────────────────────────────────────────────────────────────────

func (s *reportingService) aging(ctx context.Context, kind, companyCode string, asOf, periodStart Date, pick func(*Snapshot) ([]Document, []Party, PaymentDirection)) ([]AgingResult, string, error) {
	start := time.Now()
	asOf = s.orToday(asOf)
	if !periodStart.IsZero() && periodStart.After(asOf) {
		return nil, "", newValidationError(ErrInvalidDateRange, "period_start", "period start %s is after as-of %s", periodStart, asOf)
	}
	snap, err := s.store.LoadSnapshot(ctx, companyCode)
	if err != nil {
		return nil, "", err
	}
	docs, parties, dir := pick(snap)
	open, settled, err := agingInputs(docs, snap.paymentsByDocument(dir), partyNames(parties), asOf)
	if err != nil {
		return nil, "", err
	}
	results, err := ComputeAging(AgingRequest{
		AsOf:            asOf,
		PeriodStart:     periodStart,
		DefaultCurrency: snap.Company.BaseCurrency,
		Open:            open,
		Settled:         settled,
	})
	if err != nil {
		return nil, "", err
	}
	log := logger.WithComponent("reporting")
	log.Info().
		Str("report", kind).
		Str("company", companyCode).
		Str("as_of", asOf.String()).
		Int("open_items", len(open)).
		Int("currencies", len(results)).
		Dur("duration", time.Since(start)).
		Msg("report complete")
	return results, snap.Company.BaseCurrency, nil
}

// primaryFirst moves the base-currency result to the front, if there is one.
func primaryFirst(results []AgingResult, base string) []AgingResult {
	for i, r := range results {
		if r.Currency == base && i > 0 {
			out := make([]AgingResult, 0, len(results))
			out = append(out, r)
			out = append(out, results[:i]...)
			return append(out, results[i+1:]...)
		}
	}
	return results
}

func (s *reportingService) GetAPAging(ctx context.Context, companyCode string, asOf, periodStart Date) (*APAgingReport, error) {
	results, base, err := s.aging(ctx, "ap_aging", companyCode, asOf, periodStart, func(snap *Snapshot) ([]Document, []Party, PaymentDirection) {
		return snap.Bills, snap.Vendors, PaymentSent
	})
	if err != nil {
		return nil, err
	}
	results = primaryFirst(results, base)
	toReport := func(r AgingResult) APAgingReport {
		return APAgingReport{AsOfDate: r.AsOfDate, Currency: r.Currency, Summary: r.Summary, Vendors: r.Rows}
	}
	report := toReport(results[0])
	for _, r := range results[1:] {
		report.OtherCurrencies = append(report.OtherCurrencies, toReport(r))
	}
	return &report, nil
}

func (s *reportingService) GetARAging(ctx context.Context, companyCode string, asOf, periodStart Date) (*ARAgingReport, error) {
	results, base, err := s.aging(ctx, "ar_aging", companyCode, asOf, periodStart, func(snap *Snapshot) ([]Document, []Party, PaymentDirection) {
		return snap.Invoices, snap.Customers, PaymentReceived
	})
	if err != nil {
		return nil, err
	}
	results = primaryFirst(results, base)
	toReport := func(r AgingResult) ARAgingReport {
		return ARAgingReport{AsOfDate: r.AsOfDate, Currency: r.Currency, Summary: r.Summary, Customers: r.Rows}
	}
	report := toReport(results[0])
	for _, r := range results[1:] {
		report.OtherCurrencies = append(report.OtherCurrencies, toReport(r))
	}
	return &report, nil
}

// ── Customer statement ────────────────────────────────────────────────────────

func (s *reportingService) GetCustomerStatement(ctx context.Context, companyCode, customerID string, period DateRange) (*CustomerStatement, error) {
	start := time.Now()
	if period.End.IsZero() {
		period.End = s.today()
	}
	if period.Start.IsZero() {
		fy := s.cfg.Calendar.PeriodFor(period.End)
		period.Start = fy.Start
	}
	if err := period.Validate(); err != nil {
		return nil, err
	}
	snap, err := s.store.LoadSnapshot(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	stmt, err := BuildCustomerStatement(snap, customerID, period)
	if err != nil {
		return nil, err
	}
	log := logger.WithComponent("reporting")
	log.Info().
		Str("report", "customer_statement").
		Str("company", companyCode).
		Str("customer", customerID).
		Int("transactions", stmt.Summary.TransactionCount).
		Dur("duration", time.Since(start)).
		Msg("report complete")
	return stmt, nil
}

// ── Depreciation ──────────────────────────────────────────────────────────────

func (s *reportingService) GetDepreciationReport(ctx context.Context, companyCode string, asOf Date, factor decimal.Decimal) (*DepreciationReport, error) {
	start := time.Now()
	if factor.IsNegative() {
		return nil, newValidationError(ErrInvalidInput, "factor", "declining-balance factor must be positive, got %s", factor)
	}
	if factor.IsZero() {
		factor = s.cfg.DecliningFactor
	}
	snap, err := s.store.LoadSnapshot(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	report, err := BuildDepreciationReport(snap.Assets, DepreciationOptions{
		AsOf:            s.orToday(asOf),
		Calendar:        s.cfg.Calendar,
		DecliningFactor: factor,
	}, snap.Company.BaseCurrency)
	if err != nil {
		return nil, err
	}
	log := logger.WithComponent("reporting")
	log.Info().
		Str("report", "depreciation").
		Str("company", companyCode).
		Int("assets", report.Summary.AssetCount).
		Dur("duration", time.Since(start)).
		Msg("report complete")
	return report, nil
}

// ── Inventory valuation ───────────────────────────────────────────────────────

func (s *reportingService) GetInventoryValuation(ctx context.Context, companyCode string, asOf Date, method ValuationMethod) (*InventoryValuationReport, error) {
	start := time.Now()
	if method != "" && !method.IsValid() {
		return nil, newValidationError(ErrInvalidInput, "method", "unknown valuation method %q", method)
	}
	snap, err := s.store.LoadSnapshot(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	report, err := BuildInventoryValuation(snap.Items, ValuationOptions{
		AsOf:          s.orToday(asOf),
		Method:        method,
		DefaultMethod: s.cfg.DefaultValuationMethod,
		Currency:      snap.Company.BaseCurrency,
	})
	if err != nil {
		return nil, err
	}
	log := logger.WithComponent("reporting")
	log.Info().
		Str("report", "inventory_valuation").
		Str("company", companyCode).
		Str("method", string(report.Method)).
		Int("items", report.Summary.ItemCount).
		Dur("duration", time.Since(start)).
		Msg("report complete")
	return report, nil
}
