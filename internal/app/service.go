package app

import (
	"context"

	"accounting-reports/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
)

// ApplicationService is the single interface all adapters (REPL, CLI, web) use
// to interact with the reporting domain. No adapter may call core reporting
// engines directly.
type ApplicationService interface {
	// ── Catalog ──────────────────────────────────────────────────────────────────

	// ListDataSources returns every data source the custom report builder can query.
	ListDataSources(ctx context.Context) (*DataSourceListResult, error)

	// FieldsFor returns the field catalog of one data source.
	// Fails with core.ErrUnknownDataSource for an unknown id.
	FieldsFor(ctx context.Context, dataSourceID string) (*FieldListResult, error)

	// OperatorsFor returns the filter operators legal for a field type.
	OperatorsFor(ctx context.Context, fieldType core.FieldType) (*OperatorListResult, error)

	// ReportSpecificationSchema returns the JSON schema of a custom report request.
	ReportSpecificationSchema(ctx context.Context) (*jsonschema.Schema, error)

	// ── Reports ──────────────────────────────────────────────────────────────────

	// RunCustomReport validates and runs a custom report specification.
	RunCustomReport(ctx context.Context, companyCode string, spec core.ReportSpecification) (*core.CustomReportResult, error)

	// GetAPAging returns the accounts-payable aging schedule as of req.AsOf.
	GetAPAging(ctx context.Context, req AgingRequest) (*core.APAgingReport, error)

	// GetARAging returns the accounts-receivable aging schedule as of req.AsOf.
	GetARAging(ctx context.Context, req AgingRequest) (*core.ARAgingReport, error)

	// GetCustomerStatement returns one customer's statement for a period.
	GetCustomerStatement(ctx context.Context, req StatementRequest) (*core.CustomerStatement, error)

	// GetDepreciationReport depreciates every fixed asset of the company.
	GetDepreciationReport(ctx context.Context, req DepreciationRequest) (*core.DepreciationReport, error)

	// GetInventoryValuation values the company's inventory.
	GetInventoryValuation(ctx context.Context, req ValuationRequest) (*core.InventoryValuationReport, error)

	// ── AI ───────────────────────────────────────────────────────────────────────

	// InterpretReportRequest turns a natural-language request into a report
	// specification, or a clarification question. With req.Run set, a valid
	// specification is also executed.
	InterpretReportRequest(ctx context.Context, req InterpretRequest) (*InterpretResult, error)

	// ── Company ──────────────────────────────────────────────────────────────────

	// LoadCompany returns the company with the given code.
	LoadCompany(ctx context.Context, companyCode string) (*core.Company, error)

	// LoadDefaultCompany loads the configured company, or the only company when
	// none is configured.
	LoadDefaultCompany(ctx context.Context) (*core.Company, error)
}

// parseFactor reads an optional declining-balance factor.
func parseFactor(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
