package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"accounting-reports/internal/app"
	"accounting-reports/internal/core"
	"accounting-reports/internal/logger"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps an application error onto a status and error code.
// Only unexpected failures are logged; their message is not echoed to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve) && errors.Is(err, core.ErrNotFound):
		writeError(w, r, err.Error(), ve.Code(), http.StatusNotFound)
	case errors.As(err, &ve):
		writeError(w, r, err.Error(), ve.Code(), http.StatusBadRequest)
	case errors.Is(err, core.ErrCurrencyMismatch):
		writeError(w, r, err.Error(), "CURRENCY_MISMATCH", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrInsufficientLayerQuantity):
		writeError(w, r, err.Error(), "INSUFFICIENT_LAYER_QUANTITY", http.StatusUnprocessableEntity)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, "report timed out", "TIMEOUT", http.StatusGatewayTimeout)
	case errors.Is(err, context.Canceled):
		writeError(w, r, "request cancelled", "CANCELLED", http.StatusRequestTimeout)
	case errors.Is(err, app.ErrInterpreterUnavailable):
		writeError(w, r, err.Error(), "AI_UNAVAILABLE", http.StatusServiceUnavailable)
	default:
		log := logger.WithRequestID(requestIDFromContext(r.Context()))
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
