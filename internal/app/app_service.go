package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"accounting-reports/internal/ai"
	"accounting-reports/internal/core"

	"github.com/invopop/jsonschema"
)

// ErrInterpreterUnavailable is returned by InterpretReportRequest when no AI
// interpreter is configured (OPENAI_API_KEY unset).
var ErrInterpreterUnavailable = errors.New("report interpreter is not configured")

// ReportInterpreter turns natural-language requests into report specifications.
// *ai.Agent satisfies it.
type ReportInterpreter interface {
	InterpretReportRequest(ctx context.Context, request string, today core.Date, company core.Company) (*ai.Interpretation, error)
}

type appService struct {
	reports        core.ReportingService
	interpreter    ReportInterpreter
	defaultCompany string
	now            func() time.Time
}

// NewAppService constructs an appService that satisfies ApplicationService.
// interpreter may be nil; defaultCompany is the COMPANY_CODE setting.
func NewAppService(
	reports core.ReportingService,
	interpreter ReportInterpreter,
	defaultCompany string,
) ApplicationService {
	return &appService{
		reports:        reports,
		interpreter:    interpreter,
		defaultCompany: defaultCompany,
		now:            time.Now,
	}
}

// ListDataSources returns the data source catalog in catalog order.
func (s *appService) ListDataSources(_ context.Context) (*DataSourceListResult, error) {
	var out []DataSourceInfo
	for _, ds := range core.Sources() {
		out = append(out, DataSourceInfo{
			ID:          ds.ID,
			DisplayName: ds.DisplayName,
			DateField:   ds.DateField,
			FieldCount:  len(ds.Fields),
		})
	}
	return &DataSourceListResult{Sources: out}, nil
}

// FieldsFor returns the fields of one data source.
func (s *appService) FieldsFor(_ context.Context, dataSourceID string) (*FieldListResult, error) {
	fields, err := core.FieldsFor(dataSourceID)
	if err != nil {
		return nil, err
	}
	return &FieldListResult{DataSource: dataSourceID, Fields: fields}, nil
}

// OperatorsFor returns the operators legal for a field type.
func (s *appService) OperatorsFor(_ context.Context, fieldType core.FieldType) (*OperatorListResult, error) {
	t := core.FieldType(strings.ToLower(string(fieldType)))
	if !t.IsValid() {
		return nil, &core.ValidationError{
			Err:     core.ErrInvalidInput,
			Field:   "field_type",
			Message: fmt.Sprintf("unknown field type %q", fieldType),
		}
	}
	return &OperatorListResult{FieldType: t, Operators: core.OperatorsFor(t)}, nil
}

// ReportSpecificationSchema returns the custom report request schema.
func (s *appService) ReportSpecificationSchema(_ context.Context) (*jsonschema.Schema, error) {
	return ai.ReportSpecificationSchema(), nil
}

// RunCustomReport validates and runs spec against the company's records.
func (s *appService) RunCustomReport(ctx context.Context, companyCode string, spec core.ReportSpecification) (*core.CustomReportResult, error) {
	return s.reports.RunCustomReport(ctx, companyCode, spec)
}

// GetAPAging returns the AP aging schedule.
func (s *appService) GetAPAging(ctx context.Context, req AgingRequest) (*core.APAgingReport, error) {
	asOf, periodStart, err := parseAgingDates(req)
	if err != nil {
		return nil, err
	}
	return s.reports.GetAPAging(ctx, req.CompanyCode, asOf, periodStart)
}

// GetARAging returns the AR aging schedule.
func (s *appService) GetARAging(ctx context.Context, req AgingRequest) (*core.ARAgingReport, error) {
	asOf, periodStart, err := parseAgingDates(req)
	if err != nil {
		return nil, err
	}
	return s.reports.GetARAging(ctx, req.CompanyCode, asOf, periodStart)
}

// GetCustomerStatement returns a customer's statement.
func (s *appService) GetCustomerStatement(ctx context.Context, req StatementRequest) (*core.CustomerStatement, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, &core.ValidationError{Err: core.ErrInvalidInput, Field: "customer_id", Message: "customer id is required"}
	}
	from, err := parseOptionalDate("from", req.From)
	if err != nil {
		return nil, err
	}
	to, err := parseOptionalDate("to", req.To)
	if err != nil {
		return nil, err
	}
	return s.reports.GetCustomerStatement(ctx, req.CompanyCode, strings.TrimSpace(req.CustomerID), core.DateRange{Start: from, End: to})
}

// GetDepreciationReport returns the fixed-asset depreciation report.
func (s *appService) GetDepreciationReport(ctx context.Context, req DepreciationRequest) (*core.DepreciationReport, error) {
	asOf, err := parseOptionalDate("as_of", req.AsOf)
	if err != nil {
		return nil, err
	}
	factor, err := parseFactor(req.Factor)
	if err != nil {
		return nil, &core.ValidationError{Err: core.ErrInvalidInput, Field: "factor", Message: fmt.Sprintf("invalid factor %q", req.Factor)}
	}
	return s.reports.GetDepreciationReport(ctx, req.CompanyCode, asOf, factor)
}

// GetInventoryValuation returns the inventory valuation report.
func (s *appService) GetInventoryValuation(ctx context.Context, req ValuationRequest) (*core.InventoryValuationReport, error) {
	asOf, err := parseOptionalDate("as_of", req.AsOf)
	if err != nil {
		return nil, err
	}
	method, err := core.ParseValuationMethod(req.Method)
	if err != nil {
		return nil, err
	}
	return s.reports.GetInventoryValuation(ctx, req.CompanyCode, asOf, method)
}

// InterpretReportRequest sends the request text to the AI interpreter. A proposed
// specification is always compiled; one that fails is returned with
// ValidationError set instead of failing the call.
func (s *appService) InterpretReportRequest(ctx context.Context, req InterpretRequest) (*InterpretResult, error) {
	if s.interpreter == nil {
		return nil, ErrInterpreterUnavailable
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, &core.ValidationError{Err: core.ErrInvalidInput, Field: "text", Message: "request text is required"}
	}

	company, err := s.reports.LoadCompany(ctx, req.CompanyCode)
	if err != nil {
		return nil, err
	}

	interp, err := s.interpreter.InterpretReportRequest(ctx, req.Text, core.DateOf(s.now()), *company)
	if err != nil {
		return nil, err
	}

	if interp.IsClarification {
		return &InterpretResult{
			IsClarification:      true,
			ClarificationMessage: interp.ClarificationMessage,
		}, nil
	}

	result := &InterpretResult{Specification: interp.Specification, Reasoning: interp.Reasoning}
	if err := s.reports.ValidateReport(*interp.Specification); err != nil {
		if !core.IsCallerError(err) {
			return nil, err
		}
		result.ValidationError = err.Error()
		return result, nil
	}

	if req.Run {
		res, err := s.reports.RunCustomReport(ctx, req.CompanyCode, *interp.Specification)
		if err != nil {
			return nil, err
		}
		result.Result = res
	}
	return result, nil
}

// LoadCompany returns the company with the given code.
func (s *appService) LoadCompany(ctx context.Context, companyCode string) (*core.Company, error) {
	return s.reports.LoadCompany(ctx, companyCode)
}

// LoadDefaultCompany loads the active company, using COMPANY_CODE if set.
func (s *appService) LoadDefaultCompany(ctx context.Context) (*core.Company, error) {
	if s.defaultCompany != "" {
		return s.reports.LoadCompany(ctx, s.defaultCompany)
	}

	companies, err := s.reports.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	switch len(companies) {
	case 0:
		return nil, fmt.Errorf("no default company found, have migrations run?")
	case 1:
		c := companies[0]
		return &c, nil
	}
	return nil, fmt.Errorf("multiple companies found; set COMPANY_CODE env var (e.g. COMPANY_CODE=%s)", companies[0].Code)
}

// ── private helpers ───────────────────────────────────────────────────────────

func parseOptionalDate(field, s string) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return core.Date{}, &core.ValidationError{Err: core.ErrInvalidInput, Field: field, Message: fmt.Sprintf("invalid date %q (want YYYY-MM-DD)", s)}
	}
	return d, nil
}

func parseAgingDates(req AgingRequest) (core.Date, core.Date, error) {
	asOf, err := parseOptionalDate("as_of", req.AsOf)
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	periodStart, err := parseOptionalDate("period_start", req.PeriodStart)
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	return asOf, periodStart, nil
}
