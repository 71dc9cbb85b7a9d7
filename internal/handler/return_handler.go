package handler

import (
	"net/http"

	"rental-service/internal/returns"
	"rental-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ReturnRequest is the body of POST /returns
type ReturnRequest struct {
	Returns []returns.Entry `json:"returns"`
}

// ProcessReturns handles a return submission; every entry applies or none does
func (h *Handler) ProcessReturns(c echo.Context) error {
	log := logger.FromContext(c)

	var req ReturnRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid request data", zap.Error(err))
		return fail(c, http.StatusBadRequest, "Invalid request data")
	}

	summary, err := h.returns.Process(c.Request().Context(), req.Returns)
	if err != nil {
		return h.respondError(c, log, err, "process returns")
	}
	return ok(c, http.StatusOK, summary)
}
