package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/chronoshop/orders-api/internal/domain/auth"
	"github.com/chronoshop/orders-api/internal/domain/order"
	"github.com/chronoshop/orders-api/internal/domain/payment"
)

// Stable machine-checkable error kinds carried in the "error" field.
const (
	kindValidation   = "validation"
	kindUnauthorized = "unauthorized"
	kindForbidden    = "forbidden"
	kindNotFound     = "not_found"
	kindConflict     = "conflict"
	kindUpstream     = "upstream_gateway"
	kindInternal     = "internal"
)

type itemDTO struct {
	ProductID   string  `json:"productId"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Qty         int     `json:"qty"`
	Description string  `json:"description,omitempty"`
	Image       string  `json:"img,omitempty"`
}

type orderDTO struct {
	OrderID         string    `json:"orderId"`
	User            string    `json:"user,omitempty"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	PhoneNumber     string    `json:"phoneNumber"`
	Address         string    `json:"address"`
	Notes           string    `json:"notes,omitempty"`
	Items           []itemDTO `json:"items"`
	TotalAmount     float64   `json:"totalAmount"`
	TaxAmount       float64   `json:"taxAmount"`
	ShippingCharge  float64   `json:"shippingCharge"`
	FinalAmount     float64   `json:"finalAmount"`
	PaymentMethod   string    `json:"paymentMethod"`
	PaymentStatus   string    `json:"paymentStatus"`
	OrderStatus     string    `json:"orderStatus"`
	SessionID       string    `json:"sessionId,omitempty"`
	PaymentIntentID string    `json:"paymentIntentId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toOrderDTO(o *order.Order) orderDTO {
	items := make([]itemDTO, len(o.Items))
	for i, it := range o.Items {
		items[i] = itemDTO{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Price:       it.UnitPrice.InexactFloat64(),
			Qty:         it.Quantity,
			Description: it.Description,
			Image:       it.Image,
		}
	}
	return orderDTO{
		OrderID:         o.ID,
		User:            o.OwnerID,
		Name:            o.Contact.Name,
		Email:           o.Contact.Email,
		PhoneNumber:     o.Contact.Phone,
		Address:         o.Contact.Address,
		Notes:           o.Notes,
		Items:           items,
		TotalAmount:     o.Amounts.Subtotal.InexactFloat64(),
		TaxAmount:       o.Amounts.TaxAmount.InexactFloat64(),
		ShippingCharge:  o.Amounts.ShippingCharge.InexactFloat64(),
		FinalAmount:     o.Amounts.FinalAmount.InexactFloat64(),
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		OrderStatus:     string(o.Status),
		SessionID:       o.SessionRef,
		PaymentIntentID: o.PaymentRef,
		CreatedAt:       o.CreatedAt,
	}
}

func toOrderDTOs(orders []order.Order) []orderDTO {
	out := make([]orderDTO, len(orders))
	for i := range orders {
		out[i] = toOrderDTO(&orders[i])
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   kind,
		"message": message,
	})
}

// respondError maps a domain error to its HTTP status and stable kind.
// Unrecognized errors are logged and reported as internal without leaking
// detail to the caller.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		missingErr    *order.MissingFieldError
		unknownErr    *order.UnknownStatusError
		transitionErr *order.InvalidTransitionError
		upstreamErr   *payment.UpstreamError
	)
	switch {
	case errors.As(err, &missingErr),
		errors.As(err, &unknownErr),
		errors.As(err, &transitionErr),
		errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrSessionRequired),
		errors.Is(err, order.ErrPaymentIncomplete),
		errors.Is(err, order.ErrStatusRequired):
		writeError(w, http.StatusBadRequest, kindValidation, err.Error())
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, order.ErrOwnerRequired):
		writeError(w, http.StatusUnauthorized, kindUnauthorized, "unauthorized")
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, "order not found")
	case errors.Is(err, order.ErrConflict):
		writeError(w, http.StatusConflict, kindConflict, "conflicting write, retry the request")
	case errors.As(err, &upstreamErr):
		writeError(w, http.StatusBadGateway, kindUpstream, "payment gateway unavailable, retry later")
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, kindInternal, "internal error")
	}
}
