package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	appauth "github.com/descartex/faturamento-api/internal/application/auth"
	appbilling "github.com/descartex/faturamento-api/internal/application/billing"
	appfiscal "github.com/descartex/faturamento-api/internal/application/fiscal"
	apppayments "github.com/descartex/faturamento-api/internal/application/payments"
	"github.com/descartex/faturamento-api/internal/infrastructure/gateway"
	"github.com/descartex/faturamento-api/internal/infrastructure/mail"
	"github.com/descartex/faturamento-api/internal/infrastructure/nfse"
	"github.com/descartex/faturamento-api/internal/infrastructure/postgres"
	httpRouter "github.com/descartex/faturamento-api/internal/interfaces/http"
	"github.com/descartex/faturamento-api/pkg/config"
	"github.com/descartex/faturamento-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicação")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexão ao PostgreSQL")
	}
	defer pool.Close()

	contractRepo := postgres.NewContractRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	batchRepo := postgres.NewBillingBatchRepository(pool)
	receivableRepo := postgres.NewReceivableRepository(pool)
	boletoRepo := postgres.NewBoletoRepository(pool)
	fiscalRepo := postgres.NewFiscalDocumentRepository(pool)
	settingsRepo := postgres.NewSettingsRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Orquestrador fiscal: DPS XML → assinatura → transmissão à Sefin.
	fiscalOrch := appfiscal.NewOrchestrator(
		invoiceRepo, fiscalRepo, settingsRepo,
		nfse.NewXMLBuilder(), nfse.NewSigner(),
		appfiscal.DefaultTransmitterFactory, log,
	)

	// Gateway bancário: wiring condicional, como o restante dos integradores.
	// Sem configuração no banco o serviço sobe; emissão de boleto e extrato
	// respondem erro de configuração até alguém cadastrar as credenciais.
	var gwClient apppayments.GatewayClient
	if gwCfg, err := settingsRepo.GatewayConfig(ctx); err == nil {
		client, cerr := gateway.NewClient(gwCfg, settingsRepo)
		if cerr != nil {
			log.Fatal().Err(cerr).Msg("certificado mTLS do gateway")
		}
		if gwCfg.WebhookSecret == "" {
			log.Warn().Msg("webhook do gateway sem secret configurado, assinatura não será validada")
		}
		gwClient = client
	} else {
		log.Warn().Err(err).Msg("gateway bancário não configurado, emissão de boleto desabilitada")
	}

	var issuer appbilling.InstrumentIssuer
	if gwClient != nil {
		issuer = apppayments.NewIssuer(invoiceRepo, boletoRepo, receivableRepo, gwClient, txRunner, log)
	}
	recon := apppayments.NewReconciliation(boletoRepo, settingsRepo, gwClient, txRunner, log)

	var notifier appbilling.Notifier
	if cfg.Mail.Host != "" {
		notifier = appbilling.NewEmailNotifier(invoiceRepo, boletoRepo, fiscalRepo, mail.NewMailer(cfg.Mail), log)
	} else {
		log.Warn().Msg("SMTP não configurado, envio de fatura por e-mail desabilitado")
	}

	batchEngine := appbilling.NewBatchEngine(contractRepo, batchRepo, txRunner, fiscalOrch, issuer, notifier, log)
	invoiceSvc := appbilling.NewInvoiceService(invoiceRepo, boletoRepo, txRunner, log)
	authUC := appauth.NewUseCase(userRepo, cfg.JWT)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:      authUC,
		BatchEngine: batchEngine,
		InvoiceSvc:  invoiceSvc,
		Fiscal:      fiscalOrch,
		Issuer:      issuer,
		Recon:       recon,
		Batches:     batchRepo,
		Settings:    settingsRepo,
		JWTSecret:   cfg.JWT.Secret,
		Log:         log,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("sinal de desligamento recebido, encerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("encerramento do servidor")
	}

	log.Info().Msg("aplicação encerrada")
}
