package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AdminHandler serves the duplicate customer audit to operators holding the admin key.
type AdminHandler struct {
	auditor AuditUsecase
	logger  *zap.Logger
}

func NewAdminHandler(auditor AuditUsecase, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		auditor: auditor,
		logger:  logger,
	}
}

type DeleteDuplicateRequest struct {
	CustomerID string `json:"customerId" validate:"required"`
}

// AnalyzeDuplicates reports every customer sharing the email with a keep/delete recommendation.
// Nothing is modified.
func (h *AdminHandler) AnalyzeDuplicates(c echo.Context) error {
	email := strings.TrimSpace(c.QueryParam("email"))
	if email == "" {
		return badRequest("email query parameter is required", nil)
	}

	report, err := h.auditor.Analyze(c.Request().Context(), email)
	if err != nil {
		return respondError(h.logger, err, "Duplicate analysis failed", zap.String("email", email))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"report":             report,
		"deletionCandidates": report.DeletionCandidates(),
	})
}

// DeleteDuplicate deletes one customer after re-checking its billing history.
func (h *AdminHandler) DeleteDuplicate(c echo.Context) error {
	var req DeleteDuplicateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body", err)
	}
	if err := c.Validate(&req); err != nil {
		return badRequest("customerId is required", err)
	}

	result, err := h.auditor.Delete(c.Request().Context(), req.CustomerID)
	if err != nil {
		return respondError(h.logger, err, "Duplicate deletion failed", zap.String("customer_id", req.CustomerID))
	}

	h.logger.Info("Duplicate customer deleted", zap.String("customer_id", result.CustomerID))

	return c.JSON(http.StatusOK, result)
}
