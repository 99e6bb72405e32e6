package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/domain/repository"
)

var _ repository.FinancialRepository = (*FinancialRepo)(nil)

// FinancialRepo implementação de FinancialRepository. Lançamento e ajuste de
// saldo viajam na mesma instrução SQL (CTE) para não perder updates em
// corrida, mesmo quando o chamador não abriu transação.
type FinancialRepo struct {
	q Querier
}

// NewFinancialRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewFinancialRepository(q Querier) *FinancialRepo {
	return &FinancialRepo{q: q}
}

// CreateTransaction insere o lançamento e credita/debita a conta caixa.
// Unique em external_id: webhook duplicado vira domain.ErrDuplicate, sem
// tocar no saldo.
func (r *FinancialRepo) CreateTransaction(ctx context.Context, t *entity.FinancialTransaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	query := `
		WITH ins AS (
			INSERT INTO financial_transactions (id, description, amount, type, date,
				cash_account_id, receivable_id, external_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING cash_account_id, amount, type
		)
		UPDATE cash_accounts a
		SET current_balance = a.current_balance
			+ CASE WHEN ins.type = 'IN' THEN ins.amount ELSE -ins.amount END
		FROM ins
		WHERE a.id = ins.cash_account_id`
	_, err := r.q.Exec(ctx, query,
		t.ID, t.Description, t.Amount, t.Type, t.Date,
		t.CashAccountID, nullIfEmpty(t.ReceivableID), nullIfEmpty(t.ExternalID), t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("lançamento já registrado para a transação externa: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert financial transaction: %w", err)
	}
	return nil
}

// ReverseTransaction remove o lançamento devolvendo o saldo, em instrução única.
func (r *FinancialRepo) ReverseTransaction(ctx context.Context, id string) error {
	query := `
		WITH del AS (
			DELETE FROM financial_transactions
			WHERE id = $1
			RETURNING cash_account_id, amount, type
		)
		UPDATE cash_accounts a
		SET current_balance = a.current_balance
			- CASE WHEN del.type = 'IN' THEN del.amount ELSE -del.amount END
		FROM del
		WHERE a.id = del.cash_account_id`
	tag, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("reverse financial transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ExistsByExternalID checa se já há lançamento para a transação do gateway.
func (r *FinancialRepo) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM financial_transactions WHERE external_id = $1)`,
		externalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check external transaction: %w", err)
	}
	return exists, nil
}

// GetCashAccount obtém a conta caixa com o saldo corrente.
func (r *FinancialRepo) GetCashAccount(ctx context.Context, id string) (*entity.CashAccount, error) {
	query := `
		SELECT id, name, COALESCE(bank_name, ''), initial_balance, current_balance
		FROM cash_accounts WHERE id = $1`
	var a entity.CashAccount
	err := r.q.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Name, &a.BankName, &a.InitialBalance, &a.CurrentBalance,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get cash account: %w", err)
	}
	return &a, nil
}
