package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"accounting-reports/internal/ai"
	"accounting-reports/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)

type stubInterpreter struct {
	interp *ai.Interpretation
	err    error

	gotRequest string
	gotToday   core.Date
	gotCompany core.Company
}

func (s *stubInterpreter) InterpretReportRequest(_ context.Context, request string, today core.Date, company core.Company) (*ai.Interpretation, error) {
	s.gotRequest, s.gotToday, s.gotCompany = request, today, company
	return s.interp, s.err
}

func newTestApp(t *testing.T, interpreter ReportInterpreter, defaultCompany string, extra ...*core.Snapshot) *appService {
	t.Helper()
	snap, err := core.LoadSnapshotFile("../core/testdata/snapshot.json")
	require.NoError(t, err)
	store := core.NewMemoryStore(append([]*core.Snapshot{snap}, extra...)...)
	reports := core.NewReportingService(store, core.ReportingConfig{Now: func() time.Time { return testNow }})
	svc := NewAppService(reports, interpreter, defaultCompany).(*appService)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestListDataSources(t *testing.T) {
	svc := newTestApp(t, nil, "")
	res, err := svc.ListDataSources(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Sources, 7)

	byID := make(map[string]DataSourceInfo)
	for _, s := range res.Sources {
		byID[s.ID] = s
	}
	assert.Equal(t, "invoice_date", byID["invoices"].DateField)
	assert.Equal(t, 12, byID["invoices"].FieldCount)
	assert.Empty(t, byID["customers"].DateField)
}

func TestOperatorsFor(t *testing.T) {
	svc := newTestApp(t, nil, "")

	res, err := svc.OperatorsFor(context.Background(), "CURRENCY")
	require.NoError(t, err)
	assert.Equal(t, core.FieldCurrency, res.FieldType)
	assert.NotContains(t, res.Operators, core.OpContains)

	_, err = svc.OperatorsFor(context.Background(), "blob")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestRequestParsing(t *testing.T) {
	svc := newTestApp(t, nil, "ACME")
	ctx := context.Background()

	_, err := svc.GetAPAging(ctx, AgingRequest{CompanyCode: "ACME", AsOf: "30/06/2026"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.GetARAging(ctx, AgingRequest{CompanyCode: "ACME", PeriodStart: "soon"})
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "period_start", ve.Field)

	_, err = svc.GetCustomerStatement(ctx, StatementRequest{CompanyCode: "ACME", CustomerID: "  "})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.GetDepreciationReport(ctx, DepreciationRequest{CompanyCode: "ACME", Factor: "double"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.GetInventoryValuation(ctx, ValuationRequest{CompanyCode: "ACME", Method: "hifo"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestReportsThroughService(t *testing.T) {
	svc := newTestApp(t, nil, "ACME")
	ctx := context.Background()

	ap, err := svc.GetAPAging(ctx, AgingRequest{CompanyCode: "ACME"})
	require.NoError(t, err)
	assert.Equal(t, "2026-06-30", ap.AsOfDate.String())
	assert.Equal(t, "2000", ap.Summary.TotalOutstanding.String())

	stmt, err := svc.GetCustomerStatement(ctx, StatementRequest{CompanyCode: "ACME", CustomerID: " C1 ", From: "2026-05-01"})
	require.NoError(t, err)
	assert.Equal(t, "1000", stmt.Summary.OpeningBalance.String())

	dep, err := svc.GetDepreciationReport(ctx, DepreciationRequest{CompanyCode: "ACME", AsOf: "2026-01-01", Factor: "1.5"})
	require.NoError(t, err)
	assert.Equal(t, "1.5", dep.DecliningFactor.String())

	val, err := svc.GetInventoryValuation(ctx, ValuationRequest{CompanyCode: "ACME", Method: "AVG"})
	require.NoError(t, err)
	assert.Equal(t, core.ValuationAverage, val.Method)
	assert.Equal(t, "1280", val.Summary.TotalValue.String())
}

func TestInterpretReportRequest(t *testing.T) {
	ctx := context.Background()
	validSpec := &core.ReportSpecification{
		DataSource:     "invoices",
		SelectedFields: []string{"number"},
		Filters:        []core.FilterClause{{FieldID: "is_overdue", Operator: core.OpEquals, Value: "true"}},
		Sorts:          []core.SortClause{{FieldID: "number"}},
	}

	t.Run("no interpreter", func(t *testing.T) {
		svc := newTestApp(t, nil, "ACME")
		_, err := svc.InterpretReportRequest(ctx, InterpretRequest{CompanyCode: "ACME", Text: "overdue invoices"})
		assert.ErrorIs(t, err, ErrInterpreterUnavailable)
	})

	t.Run("empty text", func(t *testing.T) {
		svc := newTestApp(t, &stubInterpreter{}, "ACME")
		_, err := svc.InterpretReportRequest(ctx, InterpretRequest{CompanyCode: "ACME", Text: "   "})
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})

	t.Run("clarification", func(t *testing.T) {
		stub := &stubInterpreter{interp: &ai.Interpretation{IsClarification: true, ClarificationMessage: "Which customers?"}}
		svc := newTestApp(t, stub, "ACME")
		res, err := svc.InterpretReportRequest(ctx, InterpretRequest{CompanyCode: "ACME", Text: "customer report"})
		require.NoError(t, err)
		assert.True(t, res.IsClarification)
		assert.Equal(t, "Which customers?", res.ClarificationMessage)
		assert.Nil(t, res.Specification)
	})

	t.Run("valid specification is run", func(t *testing.T) {
		stub := &stubInterpreter{interp: &ai.Interpretation{Specification: validSpec, Reasoning: "overdue means past due date"}}
		svc := newTestApp(t, stub, "ACME")
		res, err := svc.InterpretReportRequest(ctx, InterpretRequest{CompanyCode: "ACME", Text: "overdue invoices", Run: true})
		require.NoError(t, err)

		assert.Equal(t, "overdue invoices", stub.gotRequest)
		assert.Equal(t, "2026-06-30", stub.gotToday.String())
		assert.Equal(t, "ACME", stub.gotCompany.Code)

		assert.Empty(t, res.ValidationError)
		require.NotNil(t, res.Result)
		assert.Equal(t, 2, res.Result.RowCount)
	})

	t.Run("valid specification without run", func(t *testing.T) {
		stub := &stubInterpreter{interp: &ai.Interpretation{Specification: validSpec}}
		svc := newTestApp(t, stub, "ACME")
		res, err := svc.InterpretReportRequest(ctx, InterpretRequest{CompanyCode: "ACME", Text: "overdue invoices"})
		require.NoError(t, err)
		assert.NotNil(t, res.Specification)
		assert.Nil(t, res.Result)
	})

	t.Run("invalid specification is reported, not run", func(t *testing.T) {
		bad := &core.ReportSpecification{
			DataSource: "invoices",
			Filters:    []core.FilterClause{{FieldID: "balance_due", Operator: core.OpContains, Value: "5"}},
		}
		stub := &stubInterpreter{interp: &ai.Interpretation{Specification: bad}}
		svc := newTestApp(t, stub, "ACME")
		res, err := svc.InterpretReportRequest(ctx, InterpretRequest{CompanyCode: "ACME", Text: "balances with a 5", Run: true})
		require.NoError(t, err)
		assert.Contains(t, res.ValidationError, "contains")
		assert.Nil(t, res.Result)
	})

	t.Run("interpreter failure", func(t *testing.T) {
		boom := errors.New("rate limited")
		svc := newTestApp(t, &stubInterpreter{err: boom}, "ACME")
		_, err := svc.InterpretReportRequest(ctx, InterpretRequest{CompanyCode: "ACME", Text: "anything"})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("unknown company", func(t *testing.T) {
		svc := newTestApp(t, &stubInterpreter{}, "ACME")
		_, err := svc.InterpretReportRequest(ctx, InterpretRequest{CompanyCode: "NOPE", Text: "anything"})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestLoadDefaultCompany(t *testing.T) {
	ctx := context.Background()

	c, err := newTestApp(t, nil, "").LoadDefaultCompany(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ACME", c.Code)

	_, err = newTestApp(t, nil, "NOPE").LoadDefaultCompany(ctx)
	assert.ErrorIs(t, err, core.ErrNotFound)

	other := &core.Snapshot{Company: core.Company{Code: "BETA", Name: "Beta Holdings", BaseCurrency: "EUR"}}
	_, err = newTestApp(t, nil, "", other).LoadDefaultCompany(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMPANY_CODE=ACME")

	c, err = newTestApp(t, nil, "BETA", other).LoadDefaultCompany(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Beta Holdings", c.Name)
}
