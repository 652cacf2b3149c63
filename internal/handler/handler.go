// Package handler exposes the order lifecycle over HTTP. Handlers stay thin:
// they decode requests, delegate to the order service, and map domain errors
// to stable response kinds.
package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/chronoshop/orders-api/internal/domain/order"
)

// Handler serves the order HTTP API.
type Handler struct {
	orders *order.Service
}

// NewHandler constructs a Handler around the order service.
func NewHandler(orders *order.Service) *Handler {
	return &Handler{orders: orders}
}

// Routes mounts the order endpoints on the given router. Payment
// confirmation is deliberately unauthenticated: it is reached both by the
// customer's redirect back from the gateway and by gateway callbacks, and
// the session reference itself proves nothing without a matching paid
// session at the gateway.
func (h *Handler) Routes(r chi.Router, sec *Security) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/confirm", h.ConfirmPayment)

		r.Group(func(r chi.Router) {
			r.Use(sec.RequireAuth)
			r.Post("/", h.CreateOrder)
			r.Get("/my", h.ListMyOrders)
		})

		r.Group(func(r chi.Router) {
			r.Use(sec.RequireAuth, sec.RequireAdmin)
			r.Get("/", h.ListOrders)
			r.Put("/{id}", h.UpdateOrderStatus)
			r.Delete("/{id}", h.DeleteOrder)
		})
	})
}
