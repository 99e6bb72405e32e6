package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/domain/repository"
	"github.com/descartex/faturamento-api/internal/infrastructure/gateway"
	"github.com/descartex/faturamento-api/pkg/logger"
)

// PaymentNotice é o aviso de pagamento extraído do webhook do gateway.
type PaymentNotice struct {
	// BoletoExternalID é o id do invoice no gateway (data.invoice.id).
	BoletoExternalID string
	// TransactionID é o id da transação no gateway; vazio deriva uma chave
	// determinística do boleto para manter a idempotência do razão.
	TransactionID string
	PaidAt        time.Time
	Method        string
}

// StatementSummary resume uma sincronização de extrato.
type StatementSummary struct {
	Entries int `json:"entries"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Matched int `json:"matched"`
}

// Reconciliation concilia pagamentos: webhook do gateway e extrato bancário.
// Toda baixa é idempotente — pré-checagem de status mais a unique em
// external_id do razão; entrega duplicada vira no-op, nunca crédito dobrado.
type Reconciliation struct {
	boletos  repository.BoletoRepository
	settings repository.SettingsRepository
	gw       GatewayClient
	tx       repository.TxRunner
	log      *logger.Logger
}

func NewReconciliation(
	boletos repository.BoletoRepository,
	settings repository.SettingsRepository,
	gw GatewayClient,
	tx repository.TxRunner,
	log *logger.Logger,
) *Reconciliation {
	return &Reconciliation{boletos: boletos, settings: settings, gw: gw, tx: tx, log: log}
}

// HandleWebhook baixa o pagamento avisado. Instrumento desconhecido e boleto
// já pago são no-ops (o gateway reenvia webhooks; o handler devolve 200).
func (r *Reconciliation) HandleWebhook(ctx context.Context, n PaymentNotice) error {
	bol, err := r.boletos.GetByExternalID(ctx, n.BoletoExternalID)
	if errors.Is(err, domain.ErrNotFound) {
		r.log.Debug().Str("external_id", n.BoletoExternalID).Msg("webhook de instrumento desconhecido, ignorando")
		return nil
	}
	if err != nil {
		return fmt.Errorf("localizar boleto %s: %w", n.BoletoExternalID, err)
	}
	if bol.Status == entity.BoletoStatusPaid {
		return nil
	}

	cfg, err := r.settings.GatewayConfig(ctx)
	if err != nil {
		return fmt.Errorf("configuração do gateway: %w", err)
	}

	paidAt := n.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	method := n.Method
	if method == "" {
		method = "BOLETO"
	}
	txID := n.TransactionID
	if txID == "" {
		txID = "pay-" + bol.ExternalID
	}

	err = r.tx.WithinTx(ctx, func(ctx context.Context, repos repository.TxRepos) error {
		return r.settle(ctx, repos, bol, paidAt, method, txID, cfg.CashAccountID)
	})
	if err != nil {
		return fmt.Errorf("baixar pagamento do boleto %s: %w", bol.ExternalID, err)
	}

	r.log.Info().
		Str("invoice_id", bol.InvoiceID).
		Str("external_id", bol.ExternalID).
		Str("transaction_id", txID).
		Msg("pagamento conciliado via webhook")
	return nil
}

// settle marca boleto, fatura e recebível como pagos e lança o crédito no
// razão, tudo dentro da transação corrente.
func (r *Reconciliation) settle(
	ctx context.Context,
	repos repository.TxRepos,
	bol *entity.Boleto,
	paidAt time.Time,
	method, txID, cashAccountID string,
) error {
	now := time.Now()
	bol.Status = entity.BoletoStatusPaid
	bol.UpdatedAt = now
	if err := repos.Boletos.Update(ctx, bol); err != nil {
		return fmt.Errorf("marcar boleto pago: %w", err)
	}

	inv, err := repos.Invoices.GetByID(ctx, bol.InvoiceID)
	if err != nil {
		return fmt.Errorf("carregar fatura: %w", err)
	}
	if inv.Status != entity.InvoiceStatusPaid {
		inv.Status = entity.InvoiceStatusPaid
		inv.UpdatedAt = now
		if err := repos.Invoices.Update(ctx, inv); err != nil {
			return fmt.Errorf("marcar fatura paga: %w", err)
		}
	}

	// Vínculo direto pela fatura; fallback pela referência externa do boleto.
	rec, err := repos.Receivables.GetByInvoiceID(ctx, bol.InvoiceID)
	if errors.Is(err, domain.ErrNotFound) {
		rec, err = repos.Receivables.GetByExternalRef(ctx, bol.ExternalID)
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("localizar recebível: %w", err)
	}
	if rec != nil && rec.Status != entity.ReceivableStatusReceived {
		rec.Status = entity.ReceivableStatusReceived
		rec.ReceiptDate = &paidAt
		rec.PaymentMethod = method
		rec.UpdatedAt = now
		if err := repos.Receivables.Update(ctx, rec); err != nil {
			return fmt.Errorf("baixar recebível: %w", err)
		}
	}

	// O razão é onde a idempotência é autoritativa: external_id é unique.
	exists, err := repos.Financial.ExistsByExternalID(ctx, txID)
	if err != nil {
		return fmt.Errorf("consultar razão: %w", err)
	}
	if exists {
		return nil
	}
	recID := ""
	if rec != nil {
		recID = rec.ID
	}
	err = repos.Financial.CreateTransaction(ctx, &entity.FinancialTransaction{
		Description:   fmt.Sprintf("Recebimento fatura %s", inv.Number),
		Amount:        bol.Amount,
		Type:          entity.TransactionIn,
		Date:          paidAt,
		CashAccountID: cashAccountID,
		ReceivableID:  recID,
		ExternalID:    txID,
		CreatedAt:     now,
	})
	if errors.Is(err, domain.ErrDuplicate) {
		return nil
	}
	return err
}

// SyncStatement puxa o extrato do período e materializa no razão o que ainda
// não existe, casando créditos de cobrança com os boletos.
func (r *Reconciliation) SyncStatement(ctx context.Context, from, to time.Time) (*StatementSummary, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("período invertido: %w", domain.ErrInvalidInput)
	}
	if r.gw == nil {
		return nil, fmt.Errorf("gateway não configurado: %w", domain.ErrConfigMissing)
	}
	cfg, err := r.settings.GatewayConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("configuração do gateway: %w", err)
	}
	entries, err := r.gw.Statement(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("consultar extrato: %w", err)
	}

	sum := &StatementSummary{Entries: len(entries)}
	for _, e := range entries {
		created, matched, err := r.applyEntry(ctx, cfg, e)
		if err != nil {
			r.log.Warn().Err(err).Str("external_id", e.ExternalID).Msg("lançamento do extrato falhou")
			continue
		}
		if created {
			sum.Created++
		} else {
			sum.Skipped++
		}
		if matched {
			sum.Matched++
		}
	}

	r.log.Info().
		Int("entries", sum.Entries).
		Int("created", sum.Created).
		Int("skipped", sum.Skipped).
		Int("matched", sum.Matched).
		Msg("extrato sincronizado")
	return sum, nil
}

// applyEntry materializa um lançamento do extrato. Crédito vindo de cobrança
// nossa (details.invoice_id) reaproveita a baixa do webhook; o restante vira
// lançamento avulso IN/OUT.
func (r *Reconciliation) applyEntry(ctx context.Context, cfg *entity.GatewayConfig, e gateway.StatementEntry) (created, matched bool, err error) {
	err = r.tx.WithinTx(ctx, func(ctx context.Context, repos repository.TxRepos) error {
		exists, err := repos.Financial.ExistsByExternalID(ctx, e.ExternalID)
		if err != nil {
			return fmt.Errorf("consultar razão: %w", err)
		}
		if exists {
			return nil
		}

		if e.Type == "CREDIT" && e.InvoiceExternalID != "" {
			bol, err := repos.Boletos.GetByExternalID(ctx, e.InvoiceExternalID)
			if err == nil {
				matched = true
				if bol.Status == entity.BoletoStatusPaid {
					// O webhook já baixou e lançou o crédito; relançar aqui
					// dobraria o caixa.
					return nil
				}
				created = true
				return r.settle(ctx, repos, bol, e.Date, "BOLETO", e.ExternalID, cfg.CashAccountID)
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("localizar boleto: %w", err)
			}
		}

		txType := entity.TransactionOut
		if e.Type == "CREDIT" {
			txType = entity.TransactionIn
		}
		created = true
		cerr := repos.Financial.CreateTransaction(ctx, &entity.FinancialTransaction{
			Description:   e.Description,
			Amount:        e.Amount,
			Type:          txType,
			Date:          e.Date,
			CashAccountID: cfg.CashAccountID,
			ExternalID:    e.ExternalID,
			CreatedAt:     time.Now(),
		})
		if errors.Is(cerr, domain.ErrDuplicate) {
			created = false
			return nil
		}
		return cerr
	})
	if err != nil {
		return false, false, err
	}
	return created, matched, nil
}
