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

var _ repository.BoletoRepository = (*BoletoRepo)(nil)

// BoletoRepo implementação de BoletoRepository.
type BoletoRepo struct {
	q Querier
}

// NewBoletoRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewBoletoRepository(q Querier) *BoletoRepo {
	return &BoletoRepo{q: q}
}

const boletoColumns = `
	id, invoice_id, client_id, external_id, amount, status,
	COALESCE(barcode, ''), COALESCE(digitable_line, ''), COALESCE(pdf_url, ''),
	due_date, created_at, updated_at`

// Create persiste o boleto emitido no gateway. Unique em external_id.
func (r *BoletoRepo) Create(ctx context.Context, b *entity.Boleto) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	query := `
		INSERT INTO boletos (id, invoice_id, client_id, external_id, amount, status,
			barcode, digitable_line, pdf_url, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		b.ID, b.InvoiceID, b.ClientID, b.ExternalID, b.Amount, b.Status,
		nullIfEmpty(b.Barcode), nullIfEmpty(b.DigitableLine), nullIfEmpty(b.PDFURL),
		b.DueDate, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("boleto já registrado para o id externo: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert boleto: %w", err)
	}
	return nil
}

// Update atualiza o status do boleto.
func (r *BoletoRepo) Update(ctx context.Context, b *entity.Boleto) error {
	query := `
		UPDATE boletos
		SET status = $2, barcode = $3, digitable_line = $4, pdf_url = $5, updated_at = $6
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		b.ID, b.Status, nullIfEmpty(b.Barcode), nullIfEmpty(b.DigitableLine),
		nullIfEmpty(b.PDFURL), b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update boleto: %w", err)
	}
	return nil
}

// GetByExternalID obtém o boleto pelo id do gateway (chave do webhook).
func (r *BoletoRepo) GetByExternalID(ctx context.Context, externalID string) (*entity.Boleto, error) {
	return r.getOne(ctx, `WHERE external_id = $1`, externalID)
}

// GetActiveByInvoiceID obtém o boleto não-cancelado da fatura, se houver.
func (r *BoletoRepo) GetActiveByInvoiceID(ctx context.Context, invoiceID string) (*entity.Boleto, error) {
	query := `SELECT ` + boletoColumns + `
		FROM boletos
		WHERE invoice_id = $1 AND status <> 'CANCELLED'
		ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(r.q.QueryRow(ctx, query, invoiceID))
}

func (r *BoletoRepo) getOne(ctx context.Context, where string, arg any) (*entity.Boleto, error) {
	query := `SELECT ` + boletoColumns + ` FROM boletos ` + where
	return r.scanOne(r.q.QueryRow(ctx, query, arg))
}

func (r *BoletoRepo) scanOne(row pgx.Row) (*entity.Boleto, error) {
	var b entity.Boleto
	err := row.Scan(
		&b.ID, &b.InvoiceID, &b.ClientID, &b.ExternalID, &b.Amount, &b.Status,
		&b.Barcode, &b.DigitableLine, &b.PDFURL,
		&b.DueDate, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get boleto: %w", err)
	}
	return &b, nil
}
