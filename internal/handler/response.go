package handler

import (
	"errors"
	"net/http"
	"strings"

	"rental-service/internal/apperror"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func ok(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{
		"success": true,
		"data":    data,
	})
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{
		"success": false,
		"error":   message,
	})
}

// statusOf maps an error kind onto its HTTP status
func statusOf(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindInsufficientStock:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error. Client errors carry their own message;
// server errors get a generic message, with diagnostic meta outside production.
func (h *Handler) respondError(c echo.Context, log *zap.Logger, err error, fallback string) error {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.Persistence(fallback, err)
	}

	status := statusOf(appErr.Kind)
	if status < http.StatusInternalServerError {
		log.Warn("Request rejected",
			zap.String("kind", appErr.Kind.String()),
			zap.String("reason", appErr.Message))

		body := echo.Map{
			"success": false,
			"error":   appErr.Message,
		}
		if appErr.Kind == apperror.KindInsufficientStock {
			body["details"] = appErr.Fields
		}
		return c.JSON(status, body)
	}

	log.Error("Request failed", zap.String("operation", fallback), zap.Error(err))

	body := echo.Map{
		"success": false,
		"error":   capitalize(appErr.Message),
	}
	if !h.production {
		body["meta"] = echo.Map{"message": err.Error()}
	}
	return c.JSON(status, body)
}

func parseID(c echo.Context, resource string) (uuid.UUID, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		// a malformed id cannot name a stored row
		return uuid.Nil, apperror.NotFound(resource, raw)
	}
	return id, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
