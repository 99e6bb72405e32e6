package repository

import (
	"context"
	"time"

	"github.com/descartex/faturamento-api/internal/domain/entity"
)

// ReceivableRepository persiste o contas a receber.
type ReceivableRepository interface {
	// Create insere o recebível. Violação da unique em invoice_id vira
	// domain.ErrDuplicate (exatamente um recebível por fatura).
	Create(ctx context.Context, r *entity.AccountReceivable) error
	Update(ctx context.Context, r *entity.AccountReceivable) error
	GetByID(ctx context.Context, id string) (*entity.AccountReceivable, error)
	GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.AccountReceivable, error)
	GetByExternalRef(ctx context.Context, ref string) (*entity.AccountReceivable, error)
}

// FinancialRepository persiste o razão (lançamentos + saldo da conta caixa).
type FinancialRepository interface {
	// CreateTransaction insere o lançamento e ajusta o saldo da conta caixa
	// na mesma instrução SQL (CTE), para não perder updates em corrida.
	// Violação da unique em external_id vira domain.ErrDuplicate.
	CreateTransaction(ctx context.Context, t *entity.FinancialTransaction) error
	// ReverseTransaction remove o lançamento devolvendo o saldo, também em
	// instrução única.
	ReverseTransaction(ctx context.Context, id string) error
	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)
	GetCashAccount(ctx context.Context, id string) (*entity.CashAccount, error)
}

// BoletoRepository persiste instrumentos de cobrança do gateway.
type BoletoRepository interface {
	Create(ctx context.Context, b *entity.Boleto) error
	Update(ctx context.Context, b *entity.Boleto) error
	GetByExternalID(ctx context.Context, externalID string) (*entity.Boleto, error)
	// GetActiveByInvoiceID retorna o boleto não-cancelado da fatura, se houver
	// (pré-checagem de duplicidade antes de emitir de novo).
	GetActiveByInvoiceID(ctx context.Context, invoiceID string) (*entity.Boleto, error)
}

// FiscalDocumentRepository persiste NFS-e e controla a numeração.
type FiscalDocumentRepository interface {
	Create(ctx context.Context, d *entity.FiscalDocument) error
	Update(ctx context.Context, d *entity.FiscalDocument) error
	GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error)
	// GetLatestByInvoiceID retorna o documento mais recente da fatura
	// (a reemissão após rejeição cria documento novo, nunca muta o antigo).
	GetLatestByInvoiceID(ctx context.Context, invoiceID string) (*entity.FiscalDocument, error)
	// NextNumber aloca o próximo número da série do emissor sob lock.
	// Monotônico, nunca reutilizado; lacunas são aceitáveis.
	NextNumber(ctx context.Context, issuerID, series string) (int64, error)
}

// SettingsRepository carrega as linhas de configuração (perfil fiscal do
// emissor e credenciais do gateway) e persiste o cache do token OAuth2.
type SettingsRepository interface {
	FiscalIssuer(ctx context.Context) (*entity.FiscalIssuer, error)
	GatewayConfig(ctx context.Context) (*entity.GatewayConfig, error)
	UpdateGatewayToken(ctx context.Context, token string, expiresAt time.Time) error
}

// UserRepository autentica operadores da API.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
}
