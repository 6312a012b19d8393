package web

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"accounting-reports/internal/ai"
	"accounting-reports/internal/app"
	"accounting-reports/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInterpreter struct {
	interp *ai.Interpretation
	err    error
}

func (s stubInterpreter) InterpretReportRequest(_ context.Context, _ string, _ core.Date, _ core.Company) (*ai.Interpretation, error) {
	return s.interp, s.err
}

func newTestHandler(t *testing.T, interpreter app.ReportInterpreter) http.Handler {
	t.Helper()
	snap, err := core.LoadSnapshotFile("../../core/testdata/snapshot.json")
	require.NoError(t, err)
	reports := core.NewReportingService(core.NewMemoryStore(snap), core.ReportingConfig{
		Now: func() time.Time { return time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC) },
	})
	return NewHandler(app.NewAppService(reports, interpreter, ""), "", 5*time.Second)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, nil)
	rec := do(t, h, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ACME", body["company"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newTestHandler(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/reports/sources", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestCatalogEndpoints(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := do(t, h, http.MethodGet, "/api/reports/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sources app.DataSourceListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sources))
	ids := make([]string, 0, len(sources.Sources))
	for _, s := range sources.Sources {
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, "invoices")
	assert.Contains(t, ids, "inventory")

	rec = do(t, h, http.MethodGet, "/api/reports/sources/invoices/fields", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fields app.FieldListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
	assert.Equal(t, "invoices", fields.DataSource)
	assert.NotEmpty(t, fields.Fields)

	rec = do(t, h, http.MethodGet, "/api/reports/operators/currency", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ops app.OperatorListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ops))
	assert.NotContains(t, ops.Operators, core.OpContains)
	assert.Contains(t, ops.Operators, core.OpBetween)

	rec = do(t, h, http.MethodGet, "/api/reports/custom/schema", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "data_source")
}

func TestErrorMapping(t *testing.T) {
	h := newTestHandler(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unknown source", http.MethodGet, "/api/reports/sources/widgets/fields", "", http.StatusBadRequest, "UNKNOWN_DATA_SOURCE"},
		{"unknown field type", http.MethodGet, "/api/reports/operators/blob", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown company", http.MethodGet, "/api/companies/NOPE/reports/ar-aging", "", http.StatusNotFound, "NOT_FOUND"},
		{"bad as_of", http.MethodGet, "/api/companies/ACME/reports/ap-aging?as_of=June", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown customer", http.MethodGet, "/api/companies/ACME/customers/C9/statement", "", http.StatusNotFound, "NOT_FOUND"},
		{"bad method", http.MethodGet, "/api/companies/ACME/reports/inventory-valuation?method=hifo", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"illegal operator", http.MethodPost, "/api/companies/ACME/reports/custom",
			`{"data_source":"invoices","selected_fields":["number"],"filters":[{"field_id":"total","operator":"contains","value":"10"}]}`,
			http.StatusBadRequest, "INVALID_FILTER"},
		{"unknown json field", http.MethodPost, "/api/companies/ACME/reports/custom", `{"source":"invoices"}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"interpreter missing", http.MethodPost, "/api/companies/ACME/reports/interpret", `{"text":"open invoices"}`, http.StatusServiceUnavailable, "AI_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantCode, body["code"])
			assert.NotEmpty(t, body["request_id"])
		})
	}
}

func TestCustomReport(t *testing.T) {
	h := newTestHandler(t, nil)
	body := `{
		"data_source": "invoices",
		"selected_fields": ["number", "customer_name", "balance_due"],
		"filters": [{"field_id": "status", "operator": "equals", "value": "open"}],
		"sorts": [{"field_id": "balance_due", "direction": "desc"}],
		"as_of": "2026-06-30"
	}`
	rec := do(t, h, http.MethodPost, "/api/companies/ACME/reports/custom", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		DataSource string           `json:"data_source"`
		RowCount   int              `json:"row_count"`
		Rows       []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "invoices", result.DataSource)
	require.Equal(t, 2, result.RowCount)
	assert.Equal(t, "SI-1001", result.Rows[0]["number"])
	assert.Equal(t, "SI-1003", result.Rows[1]["number"])
	due := result.Rows[0]["balance_due"].(map[string]any)
	assert.Equal(t, "1000.00", due["amount"])
	assert.Equal(t, "USD", due["currency"])

	// Keys keep the selected order.
	raw := rec.Body.String()
	assert.Less(t, strings.Index(raw, `"number"`), strings.Index(raw, `"customer_name"`))
	assert.Less(t, strings.Index(raw, `"customer_name"`), strings.Index(raw, `"balance_due"`))
}

func TestCustomReportCSV(t *testing.T) {
	h := newTestHandler(t, nil)
	body := `{"data_source":"customers","selected_fields":["name","total_sales"],"sorts":[{"field_id":"name","direction":"asc"}]}`
	rec := do(t, h, http.MethodPost, "/api/companies/ACME/reports/custom?format=csv", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Alpha Corp", records[1][0])
	assert.Equal(t, "Beta LLC", records[2][0])
}

func TestAgingEndpoints(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := do(t, h, http.MethodGet, "/api/companies/ACME/reports/ar-aging?as_of=2026-06-30", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ar core.ARAgingReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ar))
	assert.Equal(t, "USD", ar.Currency)
	assert.Equal(t, "2050", ar.Summary.TotalOutstanding.String())
	assert.Len(t, ar.Customers, 2)
	assert.Empty(t, ar.OtherCurrencies)

	rec = do(t, h, http.MethodGet, "/api/companies/ACME/reports/ap-aging?as_of=2026-06-30", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ap core.APAgingReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ap))
	assert.Equal(t, "2000", ap.Summary.TotalOutstanding.String())
	assert.Equal(t, 1, ap.Summary.CriticalCount)
}

func TestStatementCSV(t *testing.T) {
	h := newTestHandler(t, nil)
	rec := do(t, h, http.MethodGet, "/api/companies/ACME/customers/C1/statement?from=2026-01-01&to=2026-06-30&format=csv", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	// header + two invoices + one payment
	require.Len(t, records, 4)
	assert.Equal(t, "1300.00", records[3][6])
}

func TestDepreciationAndValuation(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := do(t, h, http.MethodGet, "/api/companies/ACME/reports/depreciation?as_of=2026-01-01", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dep core.DepreciationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dep))
	require.Len(t, dep.Assets, 2)
	assert.Equal(t, "A1", dep.Assets[0].AssetID)
	assert.Equal(t, "8000.00", dep.Assets[0].CurrentBookValue.Amount.StringFixed(2))

	rec = do(t, h, http.MethodGet, "/api/companies/ACME/reports/depreciation?factor=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/companies/ACME/reports/inventory-valuation?as_of=2026-06-30&method=lifo", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var val core.InventoryValuationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &val))
	assert.Equal(t, core.ValuationLIFO, val.Method)
	require.Len(t, val.Items, 2)
	assert.Equal(t, "1300.00", val.Items[0].Value.Amount.StringFixed(2))
}

func TestInterpret(t *testing.T) {
	limit := 5
	spec := &core.ReportSpecification{
		DataSource:     "invoices",
		SelectedFields: []string{"number", "balance_due"},
		Limit:          &limit,
	}

	t.Run("proposal is run", func(t *testing.T) {
		h := newTestHandler(t, stubInterpreter{interp: &ai.Interpretation{Specification: spec, Reasoning: "open invoices"}})
		rec := do(t, h, http.MethodPost, "/api/companies/ACME/reports/interpret", `{"text":"show invoices","run":true}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, false, body["is_clarification"])
		assert.Equal(t, "open invoices", body["reasoning"])
		result := body["result"].(map[string]any)
		assert.Equal(t, float64(5), result["row_count"])
	})

	t.Run("invalid proposal is reported", func(t *testing.T) {
		bad := &core.ReportSpecification{DataSource: "invoices", SelectedFields: []string{"colour"}}
		h := newTestHandler(t, stubInterpreter{interp: &ai.Interpretation{Specification: bad}})
		rec := do(t, h, http.MethodPost, "/api/companies/ACME/reports/interpret", `{"text":"invoices by colour","run":true}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Contains(t, body["validation_error"], "colour")
		assert.Nil(t, body["result"])
	})

	t.Run("clarification", func(t *testing.T) {
		h := newTestHandler(t, stubInterpreter{interp: &ai.Interpretation{IsClarification: true, ClarificationMessage: "Which period?"}})
		rec := do(t, h, http.MethodPost, "/api/companies/ACME/reports/interpret", `{"text":"sales"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["is_clarification"])
		assert.Equal(t, "Which period?", body["clarification_message"])
	})

	t.Run("interpreter failure", func(t *testing.T) {
		h := newTestHandler(t, stubInterpreter{err: errors.New("upstream down")})
		rec := do(t, h, http.MethodPost, "/api/companies/ACME/reports/interpret", `{"text":"sales"}`)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "upstream down")
	})
}

func TestTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestCSVSafe(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"Alpha", "Alpha"},
		{"=SUM(A1)", "'=SUM(A1)"},
		{"-5", "'-5"},
		{"@cmd", "'@cmd"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, core.CSVSafe(tt.in))
	}
}
