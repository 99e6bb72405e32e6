package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status de boleto.
const (
	BoletoStatusOpen      = "OPEN"
	BoletoStatusPaid      = "PAID"
	BoletoStatusCancelled = "CANCELLED"
	BoletoStatusOverdue   = "OVERDUE"
)

// Boleto é o instrumento de cobrança emitido no gateway bancário
// (boleto registrado + PIX). ExternalID é o id do invoice no gateway,
// unique — é por ele que o webhook de pagamento localiza o boleto.
type Boleto struct {
	ID            string
	InvoiceID     string
	ClientID      string
	ExternalID    string
	Amount        decimal.Decimal
	Status        string
	Barcode       string
	DigitableLine string
	PDFURL        string
	DueDate       time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
