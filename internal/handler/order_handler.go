package handler

import (
	"net/http"

	"rental-service/internal/apperror"
	"rental-service/internal/model"
	"rental-service/internal/order"
	"rental-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// StatusRequest is the body of PATCH /orders/:id
type StatusRequest struct {
	Status string `json:"status"`
}

// ListOrders handles retrieving orders, optionally filtered by status or customer
func (h *Handler) ListOrders(c echo.Context) error {
	log := logger.FromContext(c)

	filter := order.ListFilter{Status: model.OrderStatus(c.QueryParam("status"))}
	if raw := c.QueryParam("customerId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return h.respondError(c, log, apperror.Validation("invalid customerId: %s", raw), "retrieve orders")
		}
		filter.CustomerID = &id
	}

	orders, err := h.orders.List(c.Request().Context(), filter)
	if err != nil {
		return h.respondError(c, log, err, "retrieve orders")
	}

	log.Info("Orders retrieved successfully", zap.Int("count", len(orders)))
	return ok(c, http.StatusOK, orders)
}

// GetOrder handles retrieving a single hydrated order
func (h *Handler) GetOrder(c echo.Context) error {
	log := logger.FromContext(c)
	id, err := parseID(c, "order")
	if err != nil {
		return h.respondError(c, log, err, "retrieve order")
	}

	o, err := h.orders.Get(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, log, err, "retrieve order")
	}
	return ok(c, http.StatusOK, o)
}

// CreateOrder handles creating an order with its items
func (h *Handler) CreateOrder(c echo.Context) error {
	log := logger.FromContext(c)

	var req order.CreateInput
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid request data", zap.Error(err))
		return fail(c, http.StatusBadRequest, "Invalid request data")
	}

	log.Info("Order creation request",
		zap.String("customer_id", req.CustomerID),
		zap.Int("items", len(req.Items)),
		zap.String("payment_method", string(req.PaymentMethod)))

	o, err := h.orders.Create(c.Request().Context(), req)
	if err != nil {
		return h.respondError(c, log, err, "create order")
	}
	return ok(c, http.StatusCreated, o)
}

// UpdateOrder handles a full order update, replacing items when they are supplied
func (h *Handler) UpdateOrder(c echo.Context) error {
	log := logger.FromContext(c)
	id, err := parseID(c, "order")
	if err != nil {
		return h.respondError(c, log, err, "update order")
	}

	var req order.UpdateInput
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid request data", zap.String("order_id", id.String()), zap.Error(err))
		return fail(c, http.StatusBadRequest, "Invalid request data")
	}

	o, err := h.orders.Update(c.Request().Context(), id, req)
	if err != nil {
		return h.respondError(c, log, err, "update order")
	}
	return ok(c, http.StatusOK, o)
}

// UpdateOrderStatus handles status transitions
func (h *Handler) UpdateOrderStatus(c echo.Context) error {
	log := logger.FromContext(c)
	id, err := parseID(c, "order")
	if err != nil {
		return h.respondError(c, log, err, "update order status")
	}

	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid request data", zap.String("order_id", id.String()), zap.Error(err))
		return fail(c, http.StatusBadRequest, "Invalid request data")
	}

	o, err := h.orders.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return h.respondError(c, log, err, "update order status")
	}
	return ok(c, http.StatusOK, o)
}

// DeleteOrder handles deleting an order and its items
func (h *Handler) DeleteOrder(c echo.Context) error {
	log := logger.FromContext(c)
	id, err := parseID(c, "order")
	if err != nil {
		return h.respondError(c, log, err, "delete order")
	}

	if err := h.orders.Delete(c.Request().Context(), id); err != nil {
		return h.respondError(c, log, err, "delete order")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Order deleted successfully",
	})
}

// ListOrderItems handles retrieving the line items of one order
func (h *Handler) ListOrderItems(c echo.Context) error {
	log := logger.FromContext(c)
	id, err := parseID(c, "order")
	if err != nil {
		return h.respondError(c, log, err, "retrieve order items")
	}

	items, err := h.orders.Items(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, log, err, "retrieve order items")
	}
	return ok(c, http.StatusOK, items)
}
