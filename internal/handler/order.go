package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tokenapi/tokenapi/internal/service"
)

// OrderHandler serves sales order CRUD.
type OrderHandler struct {
	orders *service.OrderService
	logger *slog.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// List handles GET /orders/
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// Create handles POST /orders/
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("order created",
		slog.String("order_id", order.ID),
		slog.String("amount", order.Amount.String()),
	)
	writeJSON(w, http.StatusCreated, order)
}

// Get handles GET /orders/{id}/
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Update handles PUT /orders/{id}/ with every field required.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// Patch handles PATCH /orders/{id}/ with only the supplied fields changed.
func (h *OrderHandler) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *OrderHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Update(r.Context(), chi.URLParam(r, "id"), in, partial)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Delete handles DELETE /orders/{id}/
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.orders.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("order deleted", slog.String("order_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) decode(w http.ResponseWriter, r *http.Request) (service.OrderInput, bool) {
	p, reqErr := decodePayload(r, false)
	if reqErr != nil {
		reqErr.write(w)
		return service.OrderInput{}, false
	}
	return service.OrderInput{
		Item:     p.str("item"),
		Price:    p.raw("price"),
		Quantity: p.raw("quantity"),
	}, true
}
