package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/descartex/faturamento-api/internal/application/billing"
	"github.com/descartex/faturamento-api/internal/application/dto"
	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/domain/repository"
)

// BillingHandler dispara e consulta lotes de faturamento.
type BillingHandler struct {
	engine  *billing.BatchEngine
	batches repository.BillingBatchRepository
}

func NewBillingHandler(engine *billing.BatchEngine, batches repository.BillingBatchRepository) *BillingHandler {
	return &BillingHandler{engine: engine, batches: batches}
}

// RunBatch executa o lote da competência informada.
// POST /api/billing/batches
func (h *BillingHandler) RunBatch(c *fiber.Ctx) error {
	var in dto.RunBatchRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	batch, err := h.engine.Run(c.Context(), billing.RunInput{
		CompetenceMonth: in.CompetenceMonth,
		CompetenceYear:  in.CompetenceYear,
		BillingGroupID:  in.BillingGroupID,
		DayFrom:         in.DayFrom,
		DayTo:           in.DayTo,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		if batch != nil {
			// Lote criado mas interrompido; devolve o estado persistido.
			return c.Status(fiber.StatusInternalServerError).JSON(h.toResponse(c, batch))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(h.toResponse(c, batch))
}

// GetBatch devolve o resumo do lote com os erros por contrato.
// GET /api/billing/batches/:id
func (h *BillingHandler) GetBatch(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id obrigatório"})
	}
	batch, err := h.batches.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "lote não encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(h.toResponse(c, batch))
}

func (h *BillingHandler) toResponse(c *fiber.Ctx, b *entity.BillingBatch) dto.BatchResponse {
	out := dto.BatchResponse{
		ID:              b.ID,
		CompetenceMonth: b.CompetenceMonth,
		CompetenceYear:  b.CompetenceYear,
		BillingGroupID:  b.BillingGroupID,
		Status:          b.Status,
		ContractCount:   b.ContractCount,
		BilledCount:     b.BilledCount,
		SkippedCount:    b.SkippedCount,
		ErrorCount:      b.ErrorCount,
		InvoicedAmount:  b.InvoicedAmount,
		SkippedAmount:   b.SkippedAmount,
		StartedAt:       b.StartedAt,
		FinishedAt:      b.FinishedAt,
	}
	if b.ErrorCount > 0 {
		if errs, err := h.batches.ListErrors(c.Context(), b.ID); err == nil {
			for _, e := range errs {
				out.Errors = append(out.Errors, dto.BatchError{ContractID: e.ContractID, Message: e.Message})
			}
		}
	}
	return out
}
