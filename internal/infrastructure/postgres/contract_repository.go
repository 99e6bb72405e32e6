package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/domain/repository"
)

var _ repository.ContractRepository = (*ContractRepo)(nil)

// ContractRepo leitura de contratos (usável com pool ou tx).
type ContractRepo struct {
	q Querier
}

// NewContractRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewContractRepository(q Querier) *ContractRepo {
	return &ContractRepo{q: q}
}

const contractColumns = `
	c.id, c.client_id, c.client_name, c.client_document, c.client_email,
	c.client_city_code, COALESCE(c.billing_group_id, ''), g.due_day,
	c.due_day, c.value, c.status, c.created_at, c.updated_at`

// ListEligible retorna contratos ATIVOS no filtro que ainda não têm fatura
// para a competência. O dia de vencimento efetivo (grupo > contrato) entra na
// faixa [DayFrom, DayTo].
func (r *ContractRepo) ListEligible(ctx context.Context, month, year int, f repository.ContractFilter) ([]*entity.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM contracts c
		LEFT JOIN billing_groups g ON g.id = c.billing_group_id
		WHERE c.status = 'ACTIVE'
		  AND COALESCE(g.due_day, c.due_day) BETWEEN $1 AND $2
		  AND ($3 = '' OR c.billing_group_id = $3)
		  AND NOT EXISTS (
			SELECT 1 FROM invoices i
			WHERE i.contract_id = c.id
			  AND i.competence_month = $4 AND i.competence_year = $5
		  )
		ORDER BY c.client_name, c.id`
	rows, err := r.q.Query(ctx, query, f.DayFrom, f.DayTo, f.BillingGroupID, month, year)
	if err != nil {
		return nil, fmt.Errorf("list eligible contracts: %w", err)
	}
	defer rows.Close()
	var list []*entity.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// CountAlreadyBilled conta os contratos do filtro que já têm fatura para a
// competência. Espelho invertido do NOT EXISTS de ListEligible.
func (r *ContractRepo) CountAlreadyBilled(ctx context.Context, month, year int, f repository.ContractFilter) (int, decimal.Decimal, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(c.value), 0)
		FROM contracts c
		LEFT JOIN billing_groups g ON g.id = c.billing_group_id
		WHERE c.status = 'ACTIVE'
		  AND COALESCE(g.due_day, c.due_day) BETWEEN $1 AND $2
		  AND ($3 = '' OR c.billing_group_id = $3)
		  AND EXISTS (
			SELECT 1 FROM invoices i
			WHERE i.contract_id = c.id
			  AND i.competence_month = $4 AND i.competence_year = $5
		  )`
	var count int
	var total decimal.Decimal
	if err := r.q.QueryRow(ctx, query, f.DayFrom, f.DayTo, f.BillingGroupID, month, year).Scan(&count, &total); err != nil {
		return 0, decimal.Zero, fmt.Errorf("count already billed: %w", err)
	}
	return count, total, nil
}

// GetByID obtém um contrato por ID.
func (r *ContractRepo) GetByID(ctx context.Context, id string) (*entity.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM contracts c
		LEFT JOIN billing_groups g ON g.id = c.billing_group_id
		WHERE c.id = $1`
	c, err := scanContract(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get contract: %w", err)
	}
	return c, nil
}

// ListItems obtém as linhas de serviço do contrato.
func (r *ContractRepo) ListItems(ctx context.Context, contractID string) ([]*entity.ContractItem, error) {
	query := `
		SELECT id, contract_id, description, quantity, unit_price, total
		FROM contract_items WHERE contract_id = $1 ORDER BY id`
	rows, err := r.q.Query(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("list contract items: %w", err)
	}
	defer rows.Close()
	var list []*entity.ContractItem
	for rows.Next() {
		var it entity.ContractItem
		if err := rows.Scan(&it.ID, &it.ContractID, &it.Description, &it.Quantity, &it.UnitPrice, &it.Total); err != nil {
			return nil, fmt.Errorf("scan contract item: %w", err)
		}
		list = append(list, &it)
	}
	return list, rows.Err()
}

func scanContract(row pgx.Row) (*entity.Contract, error) {
	var c entity.Contract
	if err := row.Scan(
		&c.ID, &c.ClientID, &c.ClientName, &c.ClientDocument, &c.ClientEmail,
		&c.ClientCityCode, &c.BillingGroupID, &c.GroupDueDay,
		&c.DueDay, &c.Value, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}
