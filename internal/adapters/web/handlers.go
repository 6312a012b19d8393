package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"accounting-reports/internal/app"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService, the chi router and the per-report deadline.
type Handler struct {
	svc           app.ApplicationService
	router        chi.Router
	reportTimeout time.Duration
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string, reportTimeout time.Duration) http.Handler {
	h := &Handler{
		svc:           svc,
		reportTimeout: reportTimeout,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// ── Catalog ───────────────────────────────────────────────────────────
		r.Get("/api/reports/sources", h.apiListSources)
		r.Get("/api/reports/sources/{source}/fields", h.apiListFields)
		r.Get("/api/reports/operators/{fieldType}", h.apiListOperators)
		r.Get("/api/reports/custom/schema", h.apiCustomReportSchema)

		// ── Reports (company-scoped, deadline-bound) ──────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(Timeout(h.reportTimeout))

			r.Post("/api/companies/{code}/reports/custom", h.apiCustomReport)
			r.Post("/api/companies/{code}/reports/interpret", h.apiInterpret)
			r.Get("/api/companies/{code}/reports/ap-aging", h.apiAPAging)
			r.Get("/api/companies/{code}/reports/ar-aging", h.apiARAging)
			r.Get("/api/companies/{code}/customers/{id}/statement", h.apiCustomerStatement)
			r.Get("/api/companies/{code}/reports/depreciation", h.apiDepreciation)
			r.Get("/api/companies/{code}/reports/inventory-valuation", h.apiInventoryValuation)
		})
	})

	h.router = r
	return r
}

// health returns service status and the loaded company code.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	company, err := h.svc.LoadDefaultCompany(r.Context())
	companyCode := ""
	if err == nil && company != nil {
		companyCode = company.Code
	}

	type response struct {
		Status  string `json:"status"`
		Company string `json:"company"`
	}

	writeJSON(w, response{Status: "ok", Company: companyCode})
}

// companyCode extracts the {code} URL parameter.
func companyCode(r *http.Request) string {
	return chi.URLParam(r, "code")
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
