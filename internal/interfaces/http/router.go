package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/descartex/faturamento-api/internal/application/auth"
	"github.com/descartex/faturamento-api/internal/application/billing"
	"github.com/descartex/faturamento-api/internal/application/payments"
	"github.com/descartex/faturamento-api/internal/domain/repository"
	"github.com/descartex/faturamento-api/pkg/logger"
)

// RouterDeps dependências para o router.
type RouterDeps struct {
	AuthUC      *auth.UseCase
	BatchEngine *billing.BatchEngine
	InvoiceSvc  *billing.InvoiceService
	Fiscal      billing.FiscalEmitter
	Issuer      billing.InstrumentIssuer
	Recon       *payments.Reconciliation
	Batches     repository.BillingBatchRepository
	Settings    repository.SettingsRepository
	JWTSecret   string
	Log         *logger.Logger
}

// Router registra as rotas da API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Webhook do gateway (autenticado por HMAC, não por JWT).
	webhookHandler := NewWebhookHandler(deps.Recon, deps.Settings, deps.Log)
	app.Post("/webhooks/payments", webhookHandler.HandlePayment)

	api := app.Group("/api")

	// Auth (público)
	authHandler := NewAuthHandler(deps.AuthUC)
	api.Post("/auth/login", authHandler.Login)

	// Rotas protegidas (Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Lotes de faturamento
	billingGroup := protected.Group("/billing")
	billingHandler := NewBillingHandler(deps.BatchEngine, deps.Batches)
	billingGroup.Post("/batches", billingHandler.RunBatch)
	billingGroup.Get("/batches/:id", billingHandler.GetBatch)

	// Faturas
	invoices := protected.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.InvoiceSvc, deps.Fiscal, deps.Issuer)
	invoices.Get("/:id", invoiceHandler.GetByID)
	invoices.Post("/:id/cancel", invoiceHandler.Cancel)
	invoices.Post("/:id/fiscal", invoiceHandler.EmitFiscal)
	invoices.Post("/:id/boleto", invoiceHandler.IssueBoleto)
	invoices.Post("/:id/items", invoiceHandler.AddItem)
	invoices.Put("/:id/items/:itemId", invoiceHandler.UpdateItem)
	invoices.Delete("/:id/items/:itemId", invoiceHandler.RemoveItem)

	// Conciliação
	recon := protected.Group("/reconciliation")
	reconHandler := NewReconciliationHandler(deps.Recon)
	recon.Post("/statement", reconHandler.SyncStatement)
}
