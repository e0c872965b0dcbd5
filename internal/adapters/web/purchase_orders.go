package web

import (
	"net/http"

	"stockroom/internal/app"
	"stockroom/internal/core"
)

// listPurchaseOrders handles GET /api/purchase-orders?status=SUBMITTED.
func (h *Handler) listPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	var status *core.POStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := core.POStatus(s)
		if !core.ValidPOStatus(st) {
			writeError(w, r, "unknown purchase order status "+s, "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		status = &st
	}

	result, err := h.svc.ListPurchaseOrders(r.Context(), status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// createPurchaseOrder handles POST /api/purchase-orders.
func (h *Handler) createPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePORequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ActorID = actorID(r)

	po, err := h.svc.CreatePurchaseOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, po)
}

// getPurchaseOrder handles GET /api/purchase-orders/{id}.
func (h *Handler) getPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	po, err := h.svc.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

// submitPurchaseOrder handles POST /api/purchase-orders/{id}/submit.
func (h *Handler) submitPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	po, err := h.svc.SubmitPurchaseOrder(r.Context(), id, actorID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

// cancelPurchaseOrder handles POST /api/purchase-orders/{id}/cancel.
func (h *Handler) cancelPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	po, err := h.svc.CancelPurchaseOrder(r.Context(), id, actorID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

// receivePurchaseOrder handles POST /api/purchase-orders/{id}/receive.
func (h *Handler) receivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req app.ReceivePORequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PurchaseOrderID = id
	req.ActorID = actorID(r)

	po, err := h.svc.ReceivePurchaseOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}
