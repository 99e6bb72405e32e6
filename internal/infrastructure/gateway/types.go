package gateway

import (
	"time"

	"github.com/shopspring/decimal"
)

// IssueRequest são os dados para emitir um boleto registrado (com PIX) no
// gateway. Valores em decimal; a conversão para centavos acontece aqui dentro,
// só na borda.
type IssueRequest struct {
	// Code é a referência da cobrança no nosso sistema (número da fatura).
	Code             string
	CustomerName     string
	CustomerDocument string // CPF ou CNPJ, com ou sem máscara
	ServiceName      string
	ServiceNote      string
	Amount           decimal.Decimal
	DueDate          time.Time
}

// IssueResult é o instrumento registrado no gateway.
type IssueResult struct {
	ExternalID    string
	Barcode       string
	DigitableLine string
	PDFURL        string
}

// StatementEntry é um lançamento do extrato bancário do gateway.
type StatementEntry struct {
	ExternalID  string
	Amount      decimal.Decimal // sempre positivo; o sinal vem em Type
	Type        string          // CREDIT | DEBIT
	Description string
	Date        time.Time
	// InvoiceExternalID é o id do boleto no gateway quando o crédito veio de
	// uma cobrança nossa (details.invoice_id).
	InvoiceExternalID string
}

// ── Payloads do wire ──

type issuePayload struct {
	Code     string         `json:"code"`
	Customer issueCustomer  `json:"customer"`
	Services []issueService `json:"services"`
	Terms    issueTerms     `json:"payment_terms"`
	Forms    []string       `json:"payment_forms"`
}

type issueCustomer struct {
	Name     string        `json:"name"`
	Document issueDocument `json:"document"`
}

type issueDocument struct {
	Identity string `json:"identity"`
	Type     string `json:"type"` // CPF | CNPJ
}

type issueService struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Amount      int64  `json:"amount"` // centavos
}

type issueTerms struct {
	DueDate  string         `json:"due_date"`
	Fine     *issueFine     `json:"fine,omitempty"`
	Interest *issueInterest `json:"interest,omitempty"`
}

type issueFine struct {
	Date   string `json:"date"`
	Amount int64  `json:"amount"` // centavos
}

type issueInterest struct {
	Date string  `json:"date"`
	Rate float64 `json:"rate"` // % ao mês
}

type issueResponse struct {
	ID             string `json:"id"`
	PaymentOptions struct {
		BankSlip struct {
			Barcode   string `json:"barcode"`
			Digitable string `json:"digitable"`
			URL       string `json:"url"`
		} `json:"bank_slip"`
	} `json:"payment_options"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type statementResponse struct {
	Items []statementItem `json:"items"`
}

type statementItem struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"` // centavos
	Type        string `json:"type"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	Details     struct {
		InvoiceID string `json:"invoice_id"`
	} `json:"details"`
}

var hundred = decimal.NewFromInt(100)

func toCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(hundred)
}
