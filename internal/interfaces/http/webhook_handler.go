package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/descartex/faturamento-api/internal/application/dto"
	"github.com/descartex/faturamento-api/internal/application/payments"
	"github.com/descartex/faturamento-api/internal/domain/repository"
	"github.com/descartex/faturamento-api/pkg/logger"
)

// HeaderWebhookSignature carrega o HMAC-SHA256 hex do corpo bruto.
const HeaderWebhookSignature = "X-Signature"

// WebhookHandler recebe os callbacks de pagamento do gateway. A assinatura é
// verificada sobre o corpo bruto; evento desconhecido ou instrumento
// desconhecido respondem 200 para o gateway não reenviar eternamente.
type WebhookHandler struct {
	recon    *payments.Reconciliation
	settings repository.SettingsRepository
	log      *logger.Logger
}

func NewWebhookHandler(recon *payments.Reconciliation, settings repository.SettingsRepository, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{recon: recon, settings: settings, log: log}
}

// HandlePayment processa o callback de pagamento.
// POST /webhooks/payments
func (h *WebhookHandler) HandlePayment(c *fiber.Ctx) error {
	body := c.Body()

	cfg, err := h.settings.GatewayConfig(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "configuração do gateway indisponível"})
	}
	if !verifySignature(body, c.Get(HeaderWebhookSignature), cfg.WebhookSecret) {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_SIGNATURE", Message: "assinatura do webhook inválida"})
	}

	var payload dto.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	if payload.Event != "invoice.paid" || payload.Data.Invoice.ID == "" {
		h.log.Debug().Str("event", payload.Event).Msg("webhook ignorado")
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	var paidAt time.Time
	if payload.Data.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, payload.Data.PaidAt); err == nil {
			paidAt = t
		}
	}

	err = h.recon.HandleWebhook(c.Context(), payments.PaymentNotice{
		BoletoExternalID: payload.Data.Invoice.ID,
		TransactionID:    payload.Data.TransactionID,
		PaidAt:           paidAt,
		Method:           payload.Data.Method,
	})
	if err != nil {
		// 500 faz o gateway reenviar; a baixa é idempotente.
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func verifySignature(body []byte, signature, secret string) bool {
	if secret == "" {
		// Sem segredo configurado o webhook fica aberto; registrado no boot.
		return true
	}
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
