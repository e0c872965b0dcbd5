package web

import (
	"net/http"
	"strconv"

	"stockroom/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	jwtSecret string
	log       *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins []string, jwtSecret string, log *zap.Logger) http.Handler {
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
		log:       log,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API (401 JSON if unauthenticated) ───────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)

		// Catalog
		r.Get("/api/products", h.listProducts)
		r.Post("/api/products", h.createProduct)
		r.Get("/api/products/{id}", h.getProduct)
		r.Put("/api/products/{id}", h.updateProduct)
		r.Delete("/api/products/{id}", h.deactivateProduct)
		r.Get("/api/categories", h.listCategories)
		r.Post("/api/categories", h.createCategory)
		r.Get("/api/suppliers", h.listSuppliers)
		r.Post("/api/suppliers", h.createSupplier)
		r.Get("/api/locations", h.listLocations)
		r.Post("/api/locations", h.createLocation)
		r.Delete("/api/locations/{id}", h.deactivateLocation)
		r.Get("/api/customers", h.listCustomers)
		r.Post("/api/customers", h.createCustomer)

		// Stock ledger
		r.Get("/api/stock/levels", h.stockLevels)
		r.Get("/api/stock/{productID}/{locationID}", h.getStock)
		r.Get("/api/stock/transactions", h.listTransactions)
		r.Post("/api/stock/adjust", h.adjustStock)
		r.Post("/api/stock/transfer", h.transferStock)
		r.Post("/api/stock/reserve", h.reserveStock)
		r.Post("/api/stock/release", h.releaseStock)

		// Orders
		r.Get("/api/orders", h.listOrders)
		r.Post("/api/orders", h.createOrder)
		r.Get("/api/orders/{id}", h.getOrder)
		r.Get("/api/orders/{id}/status", h.getOrderStatus)
		r.Post("/api/orders/{id}/status", h.updateOrderStatus)

		// Purchase orders
		r.Get("/api/purchase-orders", h.listPurchaseOrders)
		r.Post("/api/purchase-orders", h.createPurchaseOrder)
		r.Get("/api/purchase-orders/{id}", h.getPurchaseOrder)
		r.Post("/api/purchase-orders/{id}/submit", h.submitPurchaseOrder)
		r.Post("/api/purchase-orders/{id}/cancel", h.cancelPurchaseOrder)
		r.Post("/api/purchase-orders/{id}/receive", h.receivePurchaseOrder)
	})

	return r
}

// health handles GET /api/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// idParam parses the named numeric URL parameter, writing a 400 response and
// returning false when it is not a positive integer.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name+" parameter", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// actorID returns the authenticated user's id. The auth middleware guarantees
// claims are present on protected routes.
func actorID(r *http.Request) int {
	claims := authFromContext(r.Context())
	if claims == nil {
		return 0
	}
	return claims.UserID
}
