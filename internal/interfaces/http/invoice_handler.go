package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/descartex/faturamento-api/internal/application/billing"
	"github.com/descartex/faturamento-api/internal/application/dto"
	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/entity"
)

// InvoiceHandler consulta e mantém faturas: itens, cancelamento e retry
// manual dos artefatos (NFS-e, boleto).
type InvoiceHandler struct {
	svc    *billing.InvoiceService
	fiscal billing.FiscalEmitter
	issuer billing.InstrumentIssuer
}

func NewInvoiceHandler(svc *billing.InvoiceService, fiscal billing.FiscalEmitter, issuer billing.InstrumentIssuer) *InvoiceHandler {
	return &InvoiceHandler{svc: svc, fiscal: fiscal, issuer: issuer}
}

// GetByID devolve a fatura com itens, artefatos e erros pendentes.
// GET /api/invoices/:id
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	inv, items, err := h.svc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toInvoiceResponse(inv, items))
}

// Cancel cancela a fatura e cascateia para recebível e boleto.
// POST /api/invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *fiber.Ctx) error {
	if err := h.svc.Cancel(c.Context(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// EmitFiscal reemite a NFS-e da fatura (retry manual após rejeição).
// POST /api/invoices/:id/fiscal
func (h *InvoiceHandler) EmitFiscal(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.fiscal.Process(c.Context(), id); err != nil {
		return writeError(c, err)
	}
	inv, items, err := h.svc.Get(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toInvoiceResponse(inv, items))
}

// IssueBoleto reemite o boleto da fatura.
// POST /api/invoices/:id/boleto
func (h *InvoiceHandler) IssueBoleto(c *fiber.Ctx) error {
	if h.issuer == nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "CONFIG_MISSING", Message: "gateway bancário não configurado"})
	}
	id := c.Params("id")
	if err := h.issuer.Issue(c.Context(), id); err != nil {
		return writeError(c, err)
	}
	inv, items, err := h.svc.Get(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toInvoiceResponse(inv, items))
}

// AddItem insere uma linha e recalcula o total.
// POST /api/invoices/:id/items
func (h *InvoiceHandler) AddItem(c *fiber.Ctx) error {
	var in billing.ItemInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	item, err := h.svc.AddItem(c.Context(), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toItemResponse(item))
}

// UpdateItem altera uma linha e recalcula o total.
// PUT /api/invoices/:id/items/:itemId
func (h *InvoiceHandler) UpdateItem(c *fiber.Ctx) error {
	var in billing.ItemInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	item, err := h.svc.UpdateItem(c.Context(), c.Params("id"), c.Params("itemId"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toItemResponse(item))
}

// RemoveItem remove uma linha e recalcula o total.
// DELETE /api/invoices/:id/items/:itemId
func (h *InvoiceHandler) RemoveItem(c *fiber.Ctx) error {
	if err := h.svc.RemoveItem(c.Context(), c.Params("id"), c.Params("itemId")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// writeError mapeia os erros de domínio para status HTTP.
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	case errors.Is(err, domain.ErrConfigMissing):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "CONFIG_MISSING", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

func toInvoiceResponse(inv *entity.Invoice, items []*entity.InvoiceItem) dto.InvoiceResponse {
	out := dto.InvoiceResponse{
		ID:               inv.ID,
		ContractID:       inv.ContractID,
		Number:           inv.Number,
		ClientName:       inv.ClientName,
		ClientDocument:   inv.ClientDocument,
		CompetenceMonth:  inv.CompetenceMonth,
		CompetenceYear:   inv.CompetenceYear,
		IssueDate:        inv.IssueDate,
		DueDate:          inv.DueDate,
		Amount:           inv.Amount,
		Status:           inv.Status,
		FiscalDocumentID: inv.FiscalDocumentID,
		BoletoID:         inv.BoletoID,
		FiscalError:      inv.FiscalError,
		PaymentError:     inv.PaymentError,
		EmailSentAt:      inv.EmailSentAt,
		Items:            make([]dto.InvoiceItem, 0, len(items)),
	}
	for _, it := range items {
		out.Items = append(out.Items, toItemResponse(it))
	}
	return out
}

func toItemResponse(it *entity.InvoiceItem) dto.InvoiceItem {
	return dto.InvoiceItem{
		ID:          it.ID,
		Description: it.Description,
		Quantity:    it.Quantity,
		UnitPrice:   it.UnitPrice,
		TotalPrice:  it.TotalPrice,
	}
}
