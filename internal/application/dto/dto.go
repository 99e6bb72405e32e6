package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ErrorResponse é o envelope padrão de erro da API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ── Auth ──

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// ── Faturamento ──

// RunBatchRequest dispara um lote para uma competência.
type RunBatchRequest struct {
	CompetenceMonth int    `json:"competence_month"`
	CompetenceYear  int    `json:"competence_year"`
	BillingGroupID  string `json:"billing_group_id"`
	DayFrom         int    `json:"day_from"`
	DayTo           int    `json:"day_to"`
}

// BatchResponse resume uma execução do lote, com os erros por contrato.
type BatchResponse struct {
	ID              string          `json:"id"`
	CompetenceMonth int             `json:"competence_month"`
	CompetenceYear  int             `json:"competence_year"`
	BillingGroupID  string          `json:"billing_group_id,omitempty"`
	Status          string          `json:"status"`
	ContractCount   int             `json:"contract_count"`
	BilledCount     int             `json:"billed_count"`
	SkippedCount    int             `json:"skipped_count"`
	ErrorCount      int             `json:"error_count"`
	InvoicedAmount  decimal.Decimal `json:"invoiced_amount"`
	SkippedAmount   decimal.Decimal `json:"skipped_amount"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`
	Errors          []BatchError    `json:"errors,omitempty"`
}

type BatchError struct {
	ContractID string `json:"contract_id"`
	Message    string `json:"message"`
}

// InvoiceResponse é o detalhe da fatura com artefatos e erros pendentes
// (fiscal_error / payment_error orientam o retry manual).
type InvoiceResponse struct {
	ID               string          `json:"id"`
	ContractID       string          `json:"contract_id"`
	Number           string          `json:"number"`
	ClientName       string          `json:"client_name"`
	ClientDocument   string          `json:"client_document"`
	CompetenceMonth  int             `json:"competence_month"`
	CompetenceYear   int             `json:"competence_year"`
	IssueDate        time.Time       `json:"issue_date"`
	DueDate          time.Time       `json:"due_date"`
	Amount           decimal.Decimal `json:"amount"`
	Status           string          `json:"status"`
	FiscalDocumentID string          `json:"fiscal_document_id,omitempty"`
	BoletoID         string          `json:"boleto_id,omitempty"`
	FiscalError      string          `json:"fiscal_error,omitempty"`
	PaymentError     string          `json:"payment_error,omitempty"`
	EmailSentAt      *time.Time      `json:"email_sent_at,omitempty"`
	Items            []InvoiceItem   `json:"items"`
}

type InvoiceItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// ── Conciliação ──

// StatementSyncRequest delimita o período do extrato (YYYY-MM-DD).
type StatementSyncRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// WebhookPayload é o callback de pagamento do gateway.
type WebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Invoice struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"invoice"`
		TransactionID string `json:"transaction_id"`
		PaidAt        string `json:"paid_at"`
		Method        string `json:"method"`
	} `json:"data"`
}
