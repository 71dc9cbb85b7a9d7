// Package handler exposes the rental service over HTTP with Echo.
package handler

import (
	"net/http"

	"rental-service/internal/order"
	"rental-service/internal/returns"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// Handler serves the rental API. The database handle is only used directly by the
// single-table CRUD endpoints; orders and returns go through their services.
type Handler struct {
	db         *gorm.DB
	orders     *order.Service
	returns    *returns.Processor
	production bool
}

// New creates a Handler
func New(db *gorm.DB, orders *order.Service, returns *returns.Processor, production bool) *Handler {
	return &Handler{
		db:         db,
		orders:     orders,
		returns:    returns,
		production: production,
	}
}

// Register mounts every API route on e
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)

	api := e.Group("/api")

	orders := api.Group("/orders")
	orders.GET("", h.ListOrders)
	orders.POST("", h.CreateOrder)
	orders.GET("/:id", h.GetOrder)
	orders.PUT("/:id", h.UpdateOrder)
	orders.PATCH("/:id", h.UpdateOrderStatus)
	orders.DELETE("/:id", h.DeleteOrder)
	orders.GET("/:id/items", h.ListOrderItems)

	api.POST("/returns", h.ProcessReturns)

	products := api.Group("/products")
	products.GET("", h.ListProducts)
	products.POST("", h.CreateProduct)
	products.GET("/:id", h.GetProduct)
	products.PATCH("/:id", h.UpdateProduct)
	products.DELETE("/:id", h.DeleteProduct)

	customers := api.Group("/customers")
	customers.GET("", h.ListCustomers)
	customers.POST("", h.CreateCustomer)
	customers.GET("/:id", h.GetCustomer)
	customers.PUT("/:id", h.UpdateCustomer)
	customers.DELETE("/:id", h.DeleteCustomer)

	vehicles := api.Group("/vehicles")
	vehicles.GET("", h.ListVehicles)
	vehicles.POST("", h.CreateVehicle)
	vehicles.DELETE("/:id", h.DeleteVehicle)
}

// Health reports whether the service and its database are reachable
func (h *Handler) Health(c echo.Context) error {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request().Context())
	}
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
