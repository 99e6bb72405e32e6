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

var _ repository.FiscalDocumentRepository = (*FiscalDocumentRepo)(nil)

// FiscalDocumentRepo implementação de FiscalDocumentRepository.
type FiscalDocumentRepo struct {
	q Querier
}

// NewFiscalDocumentRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewFiscalDocumentRepository(q Querier) *FiscalDocumentRepo {
	return &FiscalDocumentRepo{q: q}
}

const fiscalDocColumns = `
	id, invoice_id, issuer_id, series, number, status,
	COALESCE(access_key, ''), COALESCE(signed_xml, ''), COALESCE(returned_xml, ''),
	COALESCE(error_payload, ''), issued_at, created_at, updated_at`

// Create persiste a NFS-e recém-gerada.
func (r *FiscalDocumentRepo) Create(ctx context.Context, d *entity.FiscalDocument) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	query := `
		INSERT INTO fiscal_documents (id, invoice_id, issuer_id, series, number, status,
			access_key, signed_xml, returned_xml, error_payload, issued_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		d.ID, d.InvoiceID, d.IssuerID, d.Series, d.Number, d.Status,
		nullIfEmpty(d.AccessKey), nullIfEmpty(d.SignedXML), nullIfEmpty(d.ReturnedXML),
		nullIfEmpty(d.ErrorPayload), d.IssuedAt, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("número fiscal já utilizado: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert fiscal document: %w", err)
	}
	return nil
}

// Update grava o desfecho da transmissão (autorização ou rejeição).
func (r *FiscalDocumentRepo) Update(ctx context.Context, d *entity.FiscalDocument) error {
	query := `
		UPDATE fiscal_documents
		SET status        = $2,
		    access_key    = $3,
		    signed_xml    = $4,
		    returned_xml  = $5,
		    error_payload = $6,
		    updated_at    = $7
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		d.ID, d.Status, nullIfEmpty(d.AccessKey), nullIfEmpty(d.SignedXML),
		nullIfEmpty(d.ReturnedXML), nullIfEmpty(d.ErrorPayload), d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update fiscal document: %w", err)
	}
	return nil
}

// GetByID obtém uma NFS-e por ID.
func (r *FiscalDocumentRepo) GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	query := `SELECT ` + fiscalDocColumns + ` FROM fiscal_documents WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id))
}

// GetLatestByInvoiceID obtém o documento mais recente da fatura.
func (r *FiscalDocumentRepo) GetLatestByInvoiceID(ctx context.Context, invoiceID string) (*entity.FiscalDocument, error) {
	query := `SELECT ` + fiscalDocColumns + `
		FROM fiscal_documents
		WHERE invoice_id = $1
		ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(r.q.QueryRow(ctx, query, invoiceID))
}

// NextNumber aloca o próximo número da série sob lock de linha. Monotônico;
// lacunas ficam quando a emissão falha depois da alocação.
func (r *FiscalDocumentRepo) NextNumber(ctx context.Context, issuerID, series string) (int64, error) {
	query := `
		UPDATE fiscal_number_sequences
		SET last_number = last_number + 1
		WHERE issuer_id = $1 AND series = $2
		RETURNING last_number`
	var n int64
	err := r.q.QueryRow(ctx, query, issuerID, series).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("sequência fiscal não configurada para emissor %s série %s: %w",
				issuerID, series, domain.ErrConfigMissing)
		}
		return 0, fmt.Errorf("next fiscal number: %w", err)
	}
	return n, nil
}

func (r *FiscalDocumentRepo) scanOne(row pgx.Row) (*entity.FiscalDocument, error) {
	var d entity.FiscalDocument
	err := row.Scan(
		&d.ID, &d.InvoiceID, &d.IssuerID, &d.Series, &d.Number, &d.Status,
		&d.AccessKey, &d.SignedXML, &d.ReturnedXML,
		&d.ErrorPayload, &d.IssuedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get fiscal document: %w", err)
	}
	return &d, nil
}
