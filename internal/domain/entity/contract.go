package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status de contrato (colaborador externo — somente leitura para o faturamento).
const (
	ContractStatusActive    = "ACTIVE"
	ContractStatusInactive  = "INACTIVE"
	ContractStatusCancelled = "CANCELLED"
	ContractStatusExpired   = "EXPIRED"
)

// Contract é a origem da cobrança recorrente. O motor de faturamento só lê
// contratos; quem os mantém é o módulo comercial, fora deste serviço.
type Contract struct {
	ID             string
	ClientID       string
	ClientName     string
	ClientDocument string // CPF ou CNPJ (com ou sem máscara)
	ClientEmail    string
	ClientCityCode string // código IBGE do município do tomador
	BillingGroupID string
	// GroupDueDay é o dia de vencimento do grupo de faturamento, quando o
	// contrato pertence a um grupo com override. Tem precedência sobre DueDay.
	GroupDueDay *int
	DueDay      int
	Value       decimal.Decimal
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ResolvedDueDay aplica a precedência grupo > contrato.
func (c *Contract) ResolvedDueDay() int {
	if c.GroupDueDay != nil && *c.GroupDueDay > 0 {
		return *c.GroupDueDay
	}
	return c.DueDay
}

// ContractItem é uma linha de serviço do contrato. Contratos sem itens geram
// uma fatura com um único item sintético no valor do contrato.
type ContractItem struct {
	ID          string
	ContractID  string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}
