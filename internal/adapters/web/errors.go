package web

import (
	"encoding/json"
	"net/http"

	"stockroom/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// statusForKind maps business error kinds to HTTP status codes. Rule
// violations (not enough stock, bad transition) are 409: the request was
// well-formed but the current state forbids it.
var statusForKind = map[core.Kind]int{
	core.KindNotFound:              http.StatusNotFound,
	core.KindInvalidInput:          http.StatusBadRequest,
	core.KindInvalidAdjustment:     http.StatusBadRequest,
	core.KindInvalidTransfer:       http.StatusBadRequest,
	core.KindInsufficientStock:     http.StatusConflict,
	core.KindInsufficientAvailable: http.StatusConflict,
	core.KindOverUnreserve:         http.StatusConflict,
	core.KindOverReceipt:           http.StatusConflict,
	core.KindInvalidTransition:     http.StatusConflict,
	core.KindInvalidState:          http.StatusConflict,
	core.KindConflict:              http.StatusConflict,
}

// writeServiceError translates a service-layer error into a JSON response.
// Unrecognized errors are reported as 500 without leaking internals.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status, ok := statusForKind[kind]
	if !ok {
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	writeError(w, r, err.Error(), string(kind), status)
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

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes the request body into v, writing a 400 response and
// returning false on malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, "malformed JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
