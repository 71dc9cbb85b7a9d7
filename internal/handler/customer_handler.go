package handler

import (
	"errors"
	"net/http"
	"strings"

	"rental-service/internal/apperror"
	"rental-service/internal/model"
	"rental-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CustomerRequest is the body of customer create and update requests
type CustomerRequest struct {
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Address    string  `json:"address"`
	Aadhar     *string `json:"aadhar"`
	ReferredBy *string `json:"referredBy"`
}

// apply validates the request and copies it onto customer
func (r *CustomerRequest) apply(db *gorm.DB, customer *model.Customer) error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Phone) == "" {
		return apperror.Validation("Missing required fields. Required: name, phone")
	}

	customer.Name = strings.TrimSpace(r.Name)
	customer.Phone = strings.TrimSpace(r.Phone)
	customer.Address = r.Address
	customer.Aadhar = nil
	if r.Aadhar != nil && *r.Aadhar != "" {
		aadhar := *r.Aadhar
		customer.Aadhar = &aadhar
	}

	customer.ReferredBy = nil
	if r.ReferredBy == nil || *r.ReferredBy == "" {
		return nil
	}
	ref, err := uuid.Parse(*r.ReferredBy)
	if err != nil {
		return apperror.Validation("invalid referredBy: %s", *r.ReferredBy)
	}
	if ref == customer.ID {
		return apperror.Validation("a customer cannot refer themselves")
	}
	var count int64
	if err := db.Model(&model.Customer{}).Where("id = ?", ref).Count(&count).Error; err != nil {
		return apperror.Persistence("look up referring customer", err)
	}
	if count == 0 {
		return apperror.NotFound("referring customer", ref)
	}
	customer.ReferredBy = &ref
	return nil
}

// ListCustomers handles retrieving all customers
func (h *Handler) ListCustomers(c echo.Context) error {
	log := logger.FromContext(c)

	customers := []model.Customer{}
	if err := h.db.WithContext(c.Request().Context()).Order("created_at DESC").Find(&customers).Error; err != nil {
		return h.respondError(c, log, err, "fetch customers")
	}

	log.Info("Customers retrieved successfully", zap.Int("count", len(customers)))
	return ok(c, http.StatusOK, customers)
}

// GetCustomer handles retrieving a single customer by ID
func (h *Handler) GetCustomer(c echo.Context) error {
	log := logger.FromContext(c)
	id, err := parseID(c, "customer")
	if err != nil {
		return h.respondError(c, log, err, "fetch customer")
	}

	customer, err := h.findCustomer(c, id)
	if err != nil {
		return h.respondError(c, log, err, "fetch customer")
	}
	return ok(c, http.StatusOK, customer)
}

// CreateCustomer handles creating a new customer
func (h *Handler) CreateCustomer(c echo.Context) error {
	log := logger.FromContext(c)

	var req CustomerRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid request data", zap.Error(err))
		return fail(c, http.StatusBadRequest, "Invalid request data")
	}

	db := h.db.WithContext(c.Request().Context())
	var customer model.Customer
	if err := req.apply(db, &customer); err != nil {
		return h.respondError(c, log, err, "create customer")
	}
	if err := db.Create(&customer).Error; err != nil {
		return h.respondError(c, log, err, "create customer")
	}

	log.Info("Customer created successfully", zap.String("customer_id", customer.ID.String()))
	return ok(c, http.StatusCreated, customer)
}

// UpdateCustomer handles replacing a customer's details
func (h *Handler) UpdateCustomer(c echo.Context) error {
	log := logger.FromContext(c)
	id, err := parseID(c, "customer")
	if err != nil {
		return h.respondError(c, log, err, "update customer")
	}

	var req CustomerRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid request data", zap.String("customer_id", id.String()), zap.Error(err))
		return fail(c, http.StatusBadRequest, "Invalid request data")
	}

	customer, err := h.findCustomer(c, id)
	if err != nil {
		return h.respondError(c, log, err, "update customer")
	}
	db := h.db.WithContext(c.Request().Context())
	if err := req.apply(db, customer); err != nil {
		return h.respondError(c, log, err, "update customer")
	}
	if err := db.Save(customer).Error; err != nil {
		return h.respondError(c, log, err, "update customer")
	}

	log.Info("Customer updated successfully", zap.String("customer_id", id.String()))
	return ok(c, http.StatusOK, customer)
}

// DeleteCustomer handles deleting a customer without orders
func (h *Handler) DeleteCustomer(c echo.Context) error {
	log := logger.FromContext(c)
	id, err := parseID(c, "customer")
	if err != nil {
		return h.respondError(c, log, err, "delete customer")
	}
	db := h.db.WithContext(c.Request().Context())

	var count int64
	if err := db.Model(&model.Order{}).Where("customer_id = ?", id).Count(&count).Error; err != nil {
		return h.respondError(c, log, err, "delete customer")
	}
	if count > 0 {
		log.Warn("Cannot delete customer that has orders",
			zap.String("customer_id", id.String()),
			zap.Int64("order_count", count))
		return fail(c, http.StatusConflict, "Cannot delete customer that has orders")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Customer{}).
			Where("referred_by = ?", id).
			Update("referred_by", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.Customer{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperror.NotFound("customer", id)
		}
		return nil
	})
	if err != nil {
		return h.respondError(c, log, err, "delete customer")
	}

	log.Info("Customer deleted successfully", zap.String("customer_id", id.String()))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Customer deleted successfully",
	})
}

func (h *Handler) findCustomer(c echo.Context, id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	err := h.db.WithContext(c.Request().Context()).First(&customer, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("customer", id)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}
