package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Lixing-Zhang/storefront/internal/models"
	"github.com/Lixing-Zhang/storefront/internal/service"
)

const maxOrderBodySize = 1 << 20

// OrderHandler handles order-related HTTP requests
type OrderHandler struct {
	orderService *service.OrderService
	log          *slog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService *service.OrderService, log *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		log:          log,
	}
}

// CreateOrder handles POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest

	// Parse request body
	r.Body = http.MaxBytesReader(w, r.Body, maxOrderBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Info("failed to decode order request", "error", err)
		WriteError(w, http.StatusBadRequest, "Invalid request body", h.log)
		return
	}

	// Validate, reserve stock and record the order
	order, err := h.orderService.PlaceOrder(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err, h.log, "order rejected")
		return
	}

	WriteJSON(w, http.StatusCreated, MessageResponse{Message: "Заказ успешно отправлен", ID: order.ID}, h.log)
}

// ListOrders handles GET /api/admin/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListOrders(r.Context())
	if err != nil {
		writeDomainError(w, r, err, h.log, "failed to list orders")
		return
	}

	WriteJSON(w, http.StatusOK, orders, h.log)
}
