package router

import (
	"net/http"
	"strings"

	"storefront-core/internal/handler"
	"storefront-core/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Orders        *handler.OrderHandler
	Inventory     *handler.InventoryHandler
	Commissions   *handler.CommissionHandler
	Notifications *handler.NotificationHandler

	// ProofFiles serves locally stored payment proofs below ProofFilesPath.
	ProofFiles     http.Handler
	ProofFilesPath string
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, apiKey, jwtSecret string, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Apply middleware in order: Recovery -> Logging -> CORS -> APIKeyAuth
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(apiKey, logger))

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	if h.ProofFiles != nil && strings.HasPrefix(h.ProofFilesPath, "/") {
		prefix := strings.TrimSuffix(h.ProofFilesPath, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix, h.ProofFiles))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Actor(jwtSecret, logger))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.Orders.Create)
			r.Get("/available", h.Orders.Available)
			r.Get("/{id}", h.Orders.GetByID)
			r.Post("/{id}/transitions", h.Orders.Transition)
			r.Post("/{id}/take", h.Orders.Take)
			r.Post("/{id}/reassign", h.Orders.Reassign)
			r.Post("/{id}/payment-proofs", h.Orders.SubmitPaymentProof)
			r.Get("/{id}/payment-proofs", h.Orders.ListPaymentProofs)
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/low-stock", h.Inventory.LowStock)
			r.Get("/{productId}", h.Inventory.Stock)
			r.Post("/{productId}/movements", h.Inventory.Move)
			r.Get("/{productId}/movements", h.Inventory.Movements)
			r.Get("/{productId}/verify", h.Inventory.VerifyChain)
		})

		r.Get("/commissions/me", h.Commissions.Me)
		r.Get("/commissions/{buyerId}/reconcile", h.Commissions.Reconcile)
		r.Post("/payouts", h.Commissions.RequestPayout)
		r.Post("/payouts/{id}/resolve", h.Commissions.ResolvePayout)

		r.Get("/notifications", h.Notifications.History)
		r.Get("/notifications/ws", h.Notifications.Stream)
	})

	return r
}
