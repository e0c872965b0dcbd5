package web

import (
	"net/http"
	"strconv"

	"stockroom/internal/app"
	"stockroom/internal/core"

	"github.com/go-chi/chi/v5"
)

// listOrders handles GET /api/orders?status=PENDING.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var status *core.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := core.OrderStatus(s)
		if !core.ValidOrderStatus(st) {
			writeError(w, r, "unknown order status "+s, "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		status = &st
	}

	result, err := h.svc.ListOrders(r.Context(), status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// createOrder handles POST /api/orders. The Idempotency-Key header makes
// retried requests return the originally created order.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ActorID = actorID(r)
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")

	order, err := h.svc.CreateOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// getOrder handles GET /api/orders/{id}. A non-numeric id is treated as an
// order number lookup, so /api/orders/SO-2026-00042 works too.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "id")
	if id, err := strconv.Atoi(ref); err == nil && id > 0 {
		order, err := h.svc.GetOrder(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
		return
	}

	order, err := h.svc.GetOrderByNumber(r.Context(), ref)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// getOrderStatus handles GET /api/orders/{id}/status, the cached poll
// endpoint.
func (h *Handler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetOrderStatus(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// updateOrderStatus handles POST /api/orders/{id}/status.
func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status core.OrderStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.svc.UpdateOrderStatus(r.Context(), id, req.Status, actorID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
