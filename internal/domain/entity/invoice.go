package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status de fatura.
const (
	InvoiceStatusPending   = "PENDING"
	InvoiceStatusPaid      = "PAID"
	InvoiceStatusCancelled = "CANCELLED"
)

// Invoice é a fatura mensal de um contrato. A unicidade por
// (contrato, mês, ano de competência) é a invariante central de idempotência
// do faturamento — garantida por constraint no banco, não por pré-leitura.
type Invoice struct {
	ID              string
	ContractID      string
	BatchID         string
	BillingGroupID  string
	ClientID        string
	ClientName      string
	ClientDocument  string
	ClientEmail     string
	ClientCityCode  string
	CompetenceMonth int
	CompetenceYear  int
	Number          string // FAT-0001, sequência global
	IssueDate       time.Time
	DueDate         time.Time
	Amount          decimal.Decimal
	Status          string

	// Artefatos externos (best-effort; a fatura existe mesmo sem eles).
	FiscalDocumentID string
	BoletoID         string
	FiscalError      string // último erro de emissão fiscal, para retry manual
	PaymentError     string // último erro de emissão de boleto
	EmailSentAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InvoiceItem é uma linha da fatura. Invoice.Amount deve ser sempre o
// somatório de TotalPrice dos itens (recalculado a cada mutação).
type InvoiceItem struct {
	ID          string
	InvoiceID   string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// SumItems soma o total das linhas.
func SumItems(items []*InvoiceItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.TotalPrice)
	}
	return total
}
