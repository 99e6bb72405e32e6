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

var _ repository.ReceivableRepository = (*ReceivableRepo)(nil)

// ReceivableRepo implementação de ReceivableRepository.
type ReceivableRepo struct {
	q Querier
}

// NewReceivableRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewReceivableRepository(q Querier) *ReceivableRepo {
	return &ReceivableRepo{q: q}
}

const receivableColumns = `
	id, invoice_id, client_id, description, amount, due_date, status,
	COALESCE(document_number, ''), COALESCE(external_ref, ''),
	receipt_date, COALESCE(payment_method, ''), created_at, updated_at`

// Create persiste o recebível. Unique em invoice_id: um por fatura.
func (r *ReceivableRepo) Create(ctx context.Context, rec *entity.AccountReceivable) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	query := `
		INSERT INTO accounts_receivable (id, invoice_id, client_id, description, amount,
			due_date, status, document_number, external_ref, receipt_date,
			payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		rec.ID, rec.InvoiceID, rec.ClientID, rec.Description, rec.Amount,
		rec.DueDate, rec.Status, nullIfEmpty(rec.DocumentNumber), nullIfEmpty(rec.ExternalRef),
		rec.ReceiptDate, nullIfEmpty(rec.PaymentMethod), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("recebível já existe para a fatura: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert receivable: %w", err)
	}
	return nil
}

// Update atualiza status, baixa e referência externa.
func (r *ReceivableRepo) Update(ctx context.Context, rec *entity.AccountReceivable) error {
	query := `
		UPDATE accounts_receivable
		SET amount         = $2,
		    due_date       = $3,
		    status         = $4,
		    external_ref   = $5,
		    receipt_date   = $6,
		    payment_method = $7,
		    updated_at     = $8
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		rec.ID, rec.Amount, rec.DueDate, rec.Status,
		nullIfEmpty(rec.ExternalRef), rec.ReceiptDate, nullIfEmpty(rec.PaymentMethod),
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update receivable: %w", err)
	}
	return nil
}

// GetByID obtém um recebível por ID.
func (r *ReceivableRepo) GetByID(ctx context.Context, id string) (*entity.AccountReceivable, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

// GetByInvoiceID obtém o recebível da fatura.
func (r *ReceivableRepo) GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.AccountReceivable, error) {
	return r.getOne(ctx, `WHERE invoice_id = $1`, invoiceID)
}

// GetByExternalRef obtém o recebível pelo id do boleto no gateway (fallback
// de matching da conciliação).
func (r *ReceivableRepo) GetByExternalRef(ctx context.Context, ref string) (*entity.AccountReceivable, error) {
	return r.getOne(ctx, `WHERE external_ref = $1`, ref)
}

func (r *ReceivableRepo) getOne(ctx context.Context, where string, arg any) (*entity.AccountReceivable, error) {
	query := `SELECT ` + receivableColumns + ` FROM accounts_receivable ` + where
	var rec entity.AccountReceivable
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&rec.ID, &rec.InvoiceID, &rec.ClientID, &rec.Description, &rec.Amount,
		&rec.DueDate, &rec.Status, &rec.DocumentNumber, &rec.ExternalRef,
		&rec.ReceiptDate, &rec.PaymentMethod, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get receivable: %w", err)
	}
	return &rec, nil
}
