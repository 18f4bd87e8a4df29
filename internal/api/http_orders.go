package api

import (
	"net/http"

	"catalog-service/internal/catalog"
	"catalog-service/internal/domain"
)

// OrderItemInput is one line of a new order.
type OrderItemInput struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int32 `json:"quantity" validate:"required,gt=0,lte=1000"`
}

// OrderCreateInput is a guest checkout request.
type OrderCreateInput struct {
	CustomerEmail string           `json:"customer_email" validate:"required,email,max=255"`
	Items         []OrderItemInput `json:"items" validate:"required,min=1,max=100,dive"`
}

// orderTokenHeader carries the confirmation token when it is not in the query string.
const orderTokenHeader = "X-Order-Token"

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var input OrderCreateInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	lines := make([]catalog.OrderLine, len(input.Items))
	for i, it := range input.Items {
		lines[i] = catalog.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	placed, err := h.orders.Place(r.Context(), catalog.PlaceOrderInput{
		CustomerEmail: input.CustomerEmail,
		Lines:         lines,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to place order")
		return
	}
	h.respondWithJSON(w, http.StatusCreated, placed)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.idParam(w, r, "orderId", "order")
	if !ok {
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get(orderTokenHeader)
	}
	if token == "" {
		h.respondWithError(w, http.StatusUnauthorized, "confirmation token is required")
		return
	}

	order, err := h.orders.Get(r.Context(), orderID, token)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to retrieve order")
		return
	}
	h.respondWithJSON(w, http.StatusOK, order)
}

// OrderStatusInput moves an order to another status.
type OrderStatusInput struct {
	Status string `json:"status" validate:"required,oneof=pending paid shipped cancelled"`
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.idParam(w, r, "orderId", "order")
	if !ok {
		return
	}
	var input OrderStatusInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	order, err := h.orders.SetStatus(r.Context(), orderID, domain.OrderStatus(input.Status))
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to update order status")
		return
	}
	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.idParam(w, r, "orderId", "order")
	if !ok {
		return
	}
	if _, err := h.orders.Delete(r.Context(), orderID); err != nil {
		h.respondWithServiceError(w, r, err, "Failed to delete order")
		return
	}
	h.respondWithJSON(w, http.StatusNoContent, nil)
}
