package middleware

import (
	"rental-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequestIDMiddleware keeps an incoming X-Request-ID or generates one, echoes it on
// the response and binds a request-scoped logger to the context
func RequestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get(logger.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
			c.Request().Header.Set(logger.RequestIDHeader, requestID)
		}

		c.Response().Header().Set(logger.RequestIDHeader, requestID)
		c.Set("request_id", requestID)

		logger.WithLogger(c, logger.GetLogger().With(zap.String("request_id", requestID)))

		return next(c)
	}
}
