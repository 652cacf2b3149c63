package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chronoshop/orders-api/internal/domain/order"
)

type createOrderRequest struct {
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	PhoneNumber   string          `json:"phoneNumber"`
	Address       string          `json:"address"`
	Notes         string          `json:"notes"`
	PaymentMethod string          `json:"paymentMethod"`
	Items         []order.RawItem `json:"items"`
}

type updateOrderRequest struct {
	OrderStatus string `json:"orderStatus"`
}

// CreateOrder creates an order for the authenticated caller. For online
// payment the response carries the gateway checkout URL the customer must be
// redirected to; for cash on delivery checkoutUrl is null.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid request body")
		return
	}

	var ownerID string
	if id := IdentityFromContext(r.Context()); id != nil {
		ownerID = id.UserID
	}

	result, err := h.orders.Create(r.Context(), order.CreateRequest{
		OwnerID: ownerID,
		Contact: order.Contact{
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.PhoneNumber,
			Address: req.Address,
		},
		Notes:         req.Notes,
		Items:         req.Items,
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	var checkoutURL any
	if result.CheckoutURL != "" {
		checkoutURL = result.CheckoutURL
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"order":       toOrderDTO(result.Order),
		"checkoutUrl": checkoutURL,
	})
}

// ConfirmPayment reconciles the order behind the given checkout session with
// the gateway's authoritative payment state. Safe to call repeatedly for the
// same session.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	o, err := h.orders.Reconcile(r.Context(), sessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   toOrderDTO(o),
	})
}

// ListMyOrders returns the caller's own orders, most recent first.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	var ownerID string
	if id := IdentityFromContext(r.Context()); id != nil {
		ownerID = id.UserID
	}

	orders, err := h.orders.ListMine(r.Context(), ownerID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orders":  toOrderDTOs(orders),
	})
}

// ListOrders returns all orders matching the optional status and search
// filters. Administrative.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	orders, err := h.orders.ListAll(r.Context(), order.Filter{
		Status: order.Status(q.Get("status")),
		Search: q.Get("search"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orders":  toOrderDTOs(orders),
	})
}

// UpdateOrderStatus transitions an order to the requested fulfilment status.
// Administrative.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid request body")
		return
	}

	o, err := h.orders.Transition(r.Context(), chi.URLParam(r, "id"), req.OrderStatus)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   toOrderDTO(o),
	})
}

// DeleteOrder removes an order. Administrative.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "order deleted successfully",
	})
}
