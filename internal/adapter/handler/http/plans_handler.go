package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type PlansHandler struct {
	catalog PlanUsecase
	logger  *zap.Logger
}

func NewPlansHandler(catalog PlanUsecase, logger *zap.Logger) *PlansHandler {
	return &PlansHandler{catalog: catalog, logger: logger}
}

func (h *PlansHandler) GetPlans(c echo.Context) error {
	plans, err := h.catalog.Plans(c.Request().Context())
	if err != nil {
		return respondError(h.logger, err, "Failed to load plans")
	}

	h.logger.Debug("Plans served", zap.Int("count", len(plans)))

	return c.JSON(http.StatusOK, plans)
}
