package middleware

import (
	"strconv"
	"time"

	"rental-service/prometheus"

	"github.com/labstack/echo/v4"
)

// MetricsMiddleware adds prometheus metrics to track HTTP requests
func MetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)
		if err != nil {
			// write the error response now so the recorded status is the final one
			c.Error(err)
		}

		method := c.Request().Method
		path := c.Path()
		status := strconv.Itoa(c.Response().Status)

		prometheus.RecordHTTPRequest(method, path, status, time.Since(start))
		return nil
	}
}
