package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/descartex/faturamento-api/internal/application/dto"
	"github.com/descartex/faturamento-api/internal/application/payments"
)

// ReconciliationHandler dispara a sincronização manual do extrato bancário.
type ReconciliationHandler struct {
	recon *payments.Reconciliation
}

func NewReconciliationHandler(recon *payments.Reconciliation) *ReconciliationHandler {
	return &ReconciliationHandler{recon: recon}
}

// SyncStatement puxa o extrato do período e materializa no razão.
// POST /api/reconciliation/statement
func (h *ReconciliationHandler) SyncStatement(c *fiber.Ctx) error {
	var in dto.StatementSyncRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}

	from, err := time.Parse("2006-01-02", in.From)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "from inválido (YYYY-MM-DD)"})
	}
	to, err := time.Parse("2006-01-02", in.To)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "to inválido (YYYY-MM-DD)"})
	}

	sum, err := h.recon.SyncStatement(c.Context(), from, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(sum)
}
