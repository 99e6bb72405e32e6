package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status de conta a receber.
const (
	ReceivableStatusPending   = "PENDING"
	ReceivableStatusReceived  = "RECEIVED"
	ReceivableStatusOverdue   = "OVERDUE"
	ReceivableStatusCancelled = "CANCELLED"
)

// AccountReceivable é o espelho da fatura no contas a receber. Existe
// exatamente uma por fatura (unique em invoice_id). Data de recebimento e
// forma de pagamento só são preenchidas pela conciliação.
type AccountReceivable struct {
	ID             string
	InvoiceID      string
	ClientID       string
	Description    string
	Amount         decimal.Decimal
	DueDate        time.Time
	Status         string
	DocumentNumber string
	// ExternalRef guarda o id do boleto no gateway; é o fallback determinístico
	// de matching da conciliação quando o vínculo por fatura não basta.
	ExternalRef   string
	ReceiptDate   *time.Time
	PaymentMethod string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Tipos de movimentação no razão.
const (
	TransactionIn  = "IN"
	TransactionOut = "OUT"
)

// FinancialTransaction é um lançamento imutável no razão. Criar ou estornar
// um lançamento ajusta CashAccount.CurrentBalance na mesma transação SQL.
// ExternalID (id da transação no gateway) é unique: é a chave de idempotência
// contra o dobro de crédito por webhook duplicado.
type FinancialTransaction struct {
	ID            string
	Description   string
	Amount        decimal.Decimal
	Type          string // IN | OUT
	Date          time.Time
	CashAccountID string
	ReceivableID  string
	ExternalID    string
	CreatedAt     time.Time
}

// CashAccount é a conta caixa movimentada pela conciliação.
type CashAccount struct {
	ID             string
	Name           string
	BankName       string
	InitialBalance decimal.Decimal
	CurrentBalance decimal.Decimal
}
