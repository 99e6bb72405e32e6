package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status de um lote de faturamento.
const (
	BatchStatusProcessing = "PROCESSING"
	BatchStatusCompleted  = "COMPLETED"
	BatchStatusError      = "ERROR"
)

// BillingBatch registra uma execução do motor de faturamento para uma
// competência (mês/ano). Imutável depois de COMPLETED, exceto pelas faturas
// que ele mesmo criou.
type BillingBatch struct {
	ID              string
	CompetenceMonth int
	CompetenceYear  int
	BillingGroupID  string // vazio = todos os grupos
	DayFrom         int
	DayTo           int
	Status          string
	ContractCount   int
	BilledCount     int
	SkippedCount    int
	ErrorCount      int
	InvoicedAmount  decimal.Decimal
	SkippedAmount   decimal.Decimal
	StartedAt       time.Time
	FinishedAt      *time.Time
}

// BatchError detalha a falha de um contrato dentro do lote (relatório por
// contrato; o loop continua).
type BatchError struct {
	ContractID string
	Message    string
}
