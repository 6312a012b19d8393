package web

import (
	"net/http"

	"accounting-reports/internal/app"
	"accounting-reports/internal/core"

	"github.com/go-chi/chi/v5"
)

// ── Catalog ───────────────────────────────────────────────────────────────────

// apiListSources handles GET /api/reports/sources.
func (h *Handler) apiListSources(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListDataSources(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListFields handles GET /api/reports/sources/{source}/fields.
func (h *Handler) apiListFields(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.FieldsFor(r.Context(), chi.URLParam(r, "source"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListOperators handles GET /api/reports/operators/{fieldType}.
func (h *Handler) apiListOperators(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.OperatorsFor(r.Context(), core.FieldType(chi.URLParam(r, "fieldType")))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCustomReportSchema handles GET /api/reports/custom/schema.
func (h *Handler) apiCustomReportSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.svc.ReportSpecificationSchema(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, schema)
}

// ── Custom reports ────────────────────────────────────────────────────────────

// apiCustomReport handles POST /api/companies/{code}/reports/custom.
// When format=csv, streams CSV instead of JSON.
func (h *Handler) apiCustomReport(w http.ResponseWriter, r *http.Request) {
	var spec core.ReportSpecification
	if !decodeJSON(w, r, &spec) {
		return
	}

	result, err := h.svc.RunCustomReport(r.Context(), companyCode(r), spec)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		writeReportCSV(w, result)
		return
	}
	writeJSON(w, result)
}

func writeReportCSV(w http.ResponseWriter, result *core.CustomReportResult) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.DataSource+`-report.csv"`)
	_ = core.WriteReportCSV(w, result)
}

// ── Standard reports ──────────────────────────────────────────────────────────

// apiAPAging handles GET /api/companies/{code}/reports/ap-aging.
func (h *Handler) apiAPAging(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.GetAPAging(r.Context(), app.AgingRequest{
		CompanyCode: companyCode(r),
		AsOf:        q.Get("as_of"),
		PeriodStart: q.Get("period_start"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiARAging handles GET /api/companies/{code}/reports/ar-aging.
func (h *Handler) apiARAging(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.GetARAging(r.Context(), app.AgingRequest{
		CompanyCode: companyCode(r),
		AsOf:        q.Get("as_of"),
		PeriodStart: q.Get("period_start"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCustomerStatement handles GET /api/companies/{code}/customers/{id}/statement.
// When format=csv, streams the transactions as CSV.
func (h *Handler) apiCustomerStatement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stmt, err := h.svc.GetCustomerStatement(r.Context(), app.StatementRequest{
		CompanyCode: companyCode(r),
		CustomerID:  chi.URLParam(r, "id"),
		From:        q.Get("from"),
		To:          q.Get("to"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if q.Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="statement-`+stmt.Customer.ID+`.csv"`)
		_ = core.WriteStatementCSV(w, stmt)
		return
	}
	writeJSON(w, stmt)
}

// apiDepreciation handles GET /api/companies/{code}/reports/depreciation.
func (h *Handler) apiDepreciation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.GetDepreciationReport(r.Context(), app.DepreciationRequest{
		CompanyCode: companyCode(r),
		AsOf:        q.Get("as_of"),
		Factor:      q.Get("factor"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiInventoryValuation handles GET /api/companies/{code}/reports/inventory-valuation.
func (h *Handler) apiInventoryValuation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.GetInventoryValuation(r.Context(), app.ValuationRequest{
		CompanyCode: companyCode(r),
		AsOf:        q.Get("as_of"),
		Method:      q.Get("method"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// ── AI ────────────────────────────────────────────────────────────────────────

// interpretRequest is the JSON body for POST /reports/interpret.
type interpretRequest struct {
	Text string `json:"text"`
	Run  bool   `json:"run"`
}

// apiInterpret handles POST /api/companies/{code}/reports/interpret.
func (h *Handler) apiInterpret(w http.ResponseWriter, r *http.Request) {
	var req interpretRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.InterpretReportRequest(r.Context(), app.InterpretRequest{
		CompanyCode: companyCode(r),
		Text:        req.Text,
		Run:         req.Run,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
