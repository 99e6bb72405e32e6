package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/descartex/faturamento-api/internal/domain/entity"
)

// ContractFilter restringe a seleção de contratos elegíveis de um lote.
type ContractFilter struct {
	BillingGroupID string // vazio = todos
	DayFrom        int    // faixa do dia de vencimento resolvido (1..31)
	DayTo          int
}

// ContractRepository lê contratos do módulo comercial (colaborador externo).
type ContractRepository interface {
	// ListEligible retorna os contratos ATIVOS dentro do filtro que ainda não
	// possuem fatura para a competência (mês, ano). A exclusão por pré-leitura
	// é só para o relatório: a guarda autoritativa é a constraint única da
	// fatura.
	ListEligible(ctx context.Context, month, year int, f ContractFilter) ([]*entity.Contract, error)
	// CountAlreadyBilled conta os contratos ATIVOS do filtro que JÁ possuem
	// fatura para a competência, com a soma dos valores. Alimenta o relatório
	// de pulados ao reexecutar um lote da mesma competência.
	CountAlreadyBilled(ctx context.Context, month, year int, f ContractFilter) (int, decimal.Decimal, error)
	GetByID(ctx context.Context, id string) (*entity.Contract, error)
	ListItems(ctx context.Context, contractID string) ([]*entity.ContractItem, error)
}
