package web

import (
	"net/http"
	"strconv"

	"stockroom/internal/app"
	"stockroom/internal/core"
)

// getStock handles GET /api/stock/{productID}/{locationID}.
func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := idParam(w, r, "productID")
	if !ok {
		return
	}
	locationID, ok := idParam(w, r, "locationID")
	if !ok {
		return
	}
	record, err := h.svc.GetStock(r.Context(), productID, locationID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// stockLevels handles GET /api/stock/levels.
func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetStockLevels(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// listTransactions handles GET /api/stock/transactions with optional
// product_id, location_id, reference_id, reference_type and limit query
// parameters.
func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.TransactionFilter{
		ReferenceID:   q.Get("reference_id"),
		ReferenceType: q.Get("reference_type"),
	}
	filter.ProductID, _ = strconv.Atoi(q.Get("product_id"))
	filter.LocationID, _ = strconv.Atoi(q.Get("location_id"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	result, err := h.svc.ListTransactions(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// adjustStock handles POST /api/stock/adjust.
func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req app.AdjustStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ActorID = actorID(r)

	txn, err := h.svc.AdjustStock(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// transferStock handles POST /api/stock/transfer.
func (h *Handler) transferStock(w http.ResponseWriter, r *http.Request) {
	var req app.TransferStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ActorID = actorID(r)

	txn, err := h.svc.TransferStock(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// reserveStock handles POST /api/stock/reserve.
func (h *Handler) reserveStock(w http.ResponseWriter, r *http.Request) {
	var req app.ReserveStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ActorID = actorID(r)

	txn, err := h.svc.ReserveStock(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// releaseStock handles POST /api/stock/release.
func (h *Handler) releaseStock(w http.ResponseWriter, r *http.Request) {
	var req app.ReserveStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ActorID = actorID(r)

	txn, err := h.svc.ReleaseStock(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}
