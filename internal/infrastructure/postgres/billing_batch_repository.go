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

var _ repository.BillingBatchRepository = (*BillingBatchRepo)(nil)

// BillingBatchRepo implementação de BillingBatchRepository.
type BillingBatchRepo struct {
	q Querier
}

// NewBillingBatchRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewBillingBatchRepository(q Querier) *BillingBatchRepo {
	return &BillingBatchRepo{q: q}
}

// Create persiste o lote recém-iniciado (status PROCESSING).
func (r *BillingBatchRepo) Create(ctx context.Context, b *entity.BillingBatch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	query := `
		INSERT INTO billing_batches (id, competence_month, competence_year, billing_group_id,
			day_from, day_to, status, contract_count, billed_count, skipped_count,
			error_count, invoiced_amount, skipped_amount, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.q.Exec(ctx, query,
		b.ID, b.CompetenceMonth, b.CompetenceYear, nullIfEmpty(b.BillingGroupID),
		b.DayFrom, b.DayTo, b.Status, b.ContractCount, b.BilledCount, b.SkippedCount,
		b.ErrorCount, b.InvoicedAmount, b.SkippedAmount, b.StartedAt, b.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert billing batch: %w", err)
	}
	return nil
}

// Update grava os contadores finais e o status do lote.
func (r *BillingBatchRepo) Update(ctx context.Context, b *entity.BillingBatch) error {
	query := `
		UPDATE billing_batches
		SET status          = $2,
		    contract_count  = $3,
		    billed_count    = $4,
		    skipped_count   = $5,
		    error_count     = $6,
		    invoiced_amount = $7,
		    skipped_amount  = $8,
		    finished_at     = $9
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		b.ID, b.Status, b.ContractCount, b.BilledCount, b.SkippedCount,
		b.ErrorCount, b.InvoicedAmount, b.SkippedAmount, b.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update billing batch: %w", err)
	}
	return nil
}

// GetByID obtém um lote por ID.
func (r *BillingBatchRepo) GetByID(ctx context.Context, id string) (*entity.BillingBatch, error) {
	query := `
		SELECT id, competence_month, competence_year, COALESCE(billing_group_id, ''),
		       day_from, day_to, status, contract_count, billed_count, skipped_count,
		       error_count, invoiced_amount, skipped_amount, started_at, finished_at
		FROM billing_batches WHERE id = $1`
	var b entity.BillingBatch
	err := r.q.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.CompetenceMonth, &b.CompetenceYear, &b.BillingGroupID,
		&b.DayFrom, &b.DayTo, &b.Status, &b.ContractCount, &b.BilledCount, &b.SkippedCount,
		&b.ErrorCount, &b.InvoicedAmount, &b.SkippedAmount, &b.StartedAt, &b.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get billing batch: %w", err)
	}
	return &b, nil
}

// AddError registra a falha de um contrato dentro do lote.
func (r *BillingBatchRepo) AddError(ctx context.Context, batchID string, e entity.BatchError) error {
	query := `
		INSERT INTO billing_batch_errors (id, batch_id, contract_id, message)
		VALUES ($1, $2, $3, $4)`
	_, err := r.q.Exec(ctx, query, uuid.New().String(), batchID, e.ContractID, e.Message)
	if err != nil {
		return fmt.Errorf("insert batch error: %w", err)
	}
	return nil
}

// ListErrors obtém o relatório de falhas do lote.
func (r *BillingBatchRepo) ListErrors(ctx context.Context, batchID string) ([]entity.BatchError, error) {
	query := `
		SELECT contract_id, message FROM billing_batch_errors
		WHERE batch_id = $1 ORDER BY id`
	rows, err := r.q.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch errors: %w", err)
	}
	defer rows.Close()
	var list []entity.BatchError
	for rows.Next() {
		var e entity.BatchError
		if err := rows.Scan(&e.ContractID, &e.Message); err != nil {
			return nil, fmt.Errorf("scan batch error: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
