package handler

import (
	"errors"
	"net/http"
	"strings"

	"rental-service/internal/apperror"
	"rental-service/internal/model"
	"rental-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VehicleRequest is the body of POST /vehicles
type VehicleRequest struct {
	Number string  `json:"number"`
	Type   *string `json:"type"`
}

// ListVehicles handles retrieving all vehicles, newest first
func (h *Handler) ListVehicles(c echo.Context) error {
	log := logger.FromContext(c)

	vehicles := []model.Vehicle{}
	if err := h.db.WithContext(c.Request().Context()).Order("created_at DESC").Find(&vehicles).Error; err != nil {
		return h.respondError(c, log, err, "fetch vehicles")
	}
	return ok(c, http.StatusOK, vehicles)
}

// CreateVehicle handles registering a vehicle with a unique number
func (h *Handler) CreateVehicle(c echo.Context) error {
	log := logger.FromContext(c)

	var req VehicleRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid request data", zap.Error(err))
		return fail(c, http.StatusBadRequest, "Invalid request data")
	}
	number := strings.TrimSpace(req.Number)
	if number == "" {
		return fail(c, http.StatusBadRequest, "Vehicle number is required")
	}

	vehicle := model.Vehicle{Number: number}
	if req.Type != nil && *req.Type != "" {
		vehicle.Type = req.Type
	}

	// the unique index on number decides duplicates, so concurrent creates of the
	// same number cannot both succeed
	err := h.db.WithContext(c.Request().Context()).Create(&vehicle).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		log.Warn("Vehicle number already exists", zap.String("number", number))
		return fail(c, http.StatusConflict, "Vehicle number already exists")
	}
	if err != nil {
		return h.respondError(c, log, err, "create vehicle")
	}

	log.Info("Vehicle created successfully",
		zap.String("vehicle_id", vehicle.ID.String()),
		zap.String("number", vehicle.Number))
	return ok(c, http.StatusCreated, vehicle)
}

// DeleteVehicle handles deleting a vehicle; orders that used it keep existing with
// no vehicle
func (h *Handler) DeleteVehicle(c echo.Context) error {
	log := logger.FromContext(c)
	id, err := parseID(c, "vehicle")
	if err != nil {
		return h.respondError(c, log, err, "delete vehicle")
	}

	var detached int64
	err = h.db.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Order{}).Where("vehicle_id = ?", id).Update("vehicle_id", nil)
		if result.Error != nil {
			return result.Error
		}
		detached = result.RowsAffected

		result = tx.Delete(&model.Vehicle{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperror.NotFound("vehicle", id)
		}
		return nil
	})
	if err != nil {
		return h.respondError(c, log, err, "delete vehicle")
	}

	log.Info("Vehicle deleted successfully",
		zap.String("vehicle_id", id.String()),
		zap.Int64("orders_detached", detached))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Vehicle deleted successfully",
	})
}
