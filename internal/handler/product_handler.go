package handler

import (
	"errors"
	"net/http"
	"strings"

	"rental-service/internal/apperror"
	"rental-service/internal/model"
	"rental-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const msgInvalidProduct = "Missing/invalid fields: name, quantity, rate, rate_unit"

// ProductRequest is the body of product create and partial update requests. Nil
// fields are left untouched on update.
type ProductRequest struct {
	Name     *string          `json:"name"`
	Quantity *int             `json:"quantity"`
	Rate     *decimal.Decimal `json:"rate"`
	RateUnit *model.RateUnit  `json:"rate_unit"`
}

func (r *ProductRequest) validate(create bool) error {
	if create && (r.Name == nil || r.Quantity == nil || r.Rate == nil || r.RateUnit == nil) {
		return apperror.Validation(msgInvalidProduct)
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return apperror.Validation(msgInvalidProduct)
	}
	if r.Quantity != nil && *r.Quantity < 0 {
		return apperror.Validation("quantity must be >= 0")
	}
	if r.Rate != nil && r.Rate.IsNegative() {
		return apperror.Validation("rate must be >= 0")
	}
	if r.RateUnit != nil && !r.RateUnit.Valid() {
		return apperror.Validation("rate_unit must be one of: day, hour, month")
	}
	return nil
}

// ListProducts handles retrieving all products
func (h *Handler) ListProducts(c echo.Context) error {
	log := logger.FromContext(c)

	products := []model.Product{}
	if err := h.db.WithContext(c.Request().Context()).Order("name").Find(&products).Error; err != nil {
		return h.respondError(c, log, err, "fetch products")
	}

	log.Info("Products retrieved successfully", zap.Int("count", len(products)))
	return ok(c, http.StatusOK, products)
}

// GetProduct handles retrieving a single product by ID
func (h *Handler) GetProduct(c echo.Context) error {
	log := logger.FromContext(c)
	id, err := parseID(c, "product")
	if err != nil {
		return h.respondError(c, log, err, "fetch product")
	}

	var product model.Product
	err = h.db.WithContext(c.Request().Context()).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return h.respondError(c, log, apperror.NotFound("product", id), "fetch product")
	}
	if err != nil {
		return h.respondError(c, log, err, "fetch product")
	}
	return ok(c, http.StatusOK, product)
}

// CreateProduct handles creating a new product
func (h *Handler) CreateProduct(c echo.Context) error {
	log := logger.FromContext(c)

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid request data", zap.Error(err))
		return fail(c, http.StatusBadRequest, msgInvalidProduct)
	}
	if err := req.validate(true); err != nil {
		return h.respondError(c, log, err, "create product")
	}

	product := model.Product{
		Name:     strings.TrimSpace(*req.Name),
		Quantity: *req.Quantity,
		Rate:     *req.Rate,
		RateUnit: *req.RateUnit,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(&product).Error; err != nil {
		return h.respondError(c, log, err, "create product")
	}

	log.Info("Product created successfully",
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
		zap.Int("quantity", product.Quantity))
	return ok(c, http.StatusCreated, product)
}

// UpdateProduct handles a partial product update
func (h *Handler) UpdateProduct(c echo.Context) error {
	log := logger.FromContext(c)
	id, err := parseID(c, "product")
	if err != nil {
		return h.respondError(c, log, err, "update product")
	}

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid request data", zap.String("product_id", id.String()), zap.Error(err))
		return fail(c, http.StatusBadRequest, "Invalid request data")
	}
	if err := req.validate(false); err != nil {
		return h.respondError(c, log, err, "update product")
	}

	cols := map[string]interface{}{}
	if req.Name != nil {
		cols["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Quantity != nil {
		cols["quantity"] = *req.Quantity
	}
	if req.Rate != nil {
		cols["rate"] = *req.Rate
	}
	if req.RateUnit != nil {
		cols["rate_unit"] = *req.RateUnit
	}
	if len(cols) == 0 {
		return fail(c, http.StatusBadRequest, "No fields to update")
	}

	db := h.db.WithContext(c.Request().Context())
	result := db.Model(&model.Product{}).Where("id = ?", id).Updates(cols)
	if result.Error != nil {
		return h.respondError(c, log, result.Error, "update product")
	}
	if result.RowsAffected == 0 {
		return h.respondError(c, log, apperror.NotFound("product", id), "update product")
	}

	var product model.Product
	if err := db.First(&product, "id = ?", id).Error; err != nil {
		return h.respondError(c, log, err, "fetch product")
	}

	log.Info("Product updated successfully", zap.String("product_id", id.String()))
	return ok(c, http.StatusOK, product)
}

// DeleteProduct handles deleting a product no order item references
func (h *Handler) DeleteProduct(c echo.Context) error {
	log := logger.FromContext(c)
	id, err := parseID(c, "product")
	if err != nil {
		return h.respondError(c, log, err, "delete product")
	}
	db := h.db.WithContext(c.Request().Context())

	var count int64
	if err := db.Model(&model.OrderItem{}).Where("product_id = ?", id).Count(&count).Error; err != nil {
		return h.respondError(c, log, err, "delete product")
	}
	if count > 0 {
		log.Warn("Cannot delete product that is used by order items",
			zap.String("product_id", id.String()),
			zap.Int64("item_count", count))
		return fail(c, http.StatusConflict, "Cannot delete product that is used by order items")
	}

	result := db.Delete(&model.Product{}, "id = ?", id)
	if result.Error != nil {
		return h.respondError(c, log, result.Error, "delete product")
	}
	if result.RowsAffected == 0 {
		return h.respondError(c, log, apperror.NotFound("product", id), "delete product")
	}

	log.Info("Product deleted successfully", zap.String("product_id", id.String()))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Product deleted successfully",
	})
}
