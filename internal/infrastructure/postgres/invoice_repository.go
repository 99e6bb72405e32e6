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

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementação de InvoiceRepository (usável com pool ou tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// Create persiste a fatura. A constraint única
// (contract_id, competence_month, competence_year) é a guarda de idempotência
// do faturamento: violação vira domain.ErrDuplicate.
func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoices (id, contract_id, batch_id, billing_group_id, client_id,
			client_name, client_document, client_email, client_city_code,
			competence_month, competence_year, number, issue_date, due_date,
			amount, status, fiscal_document_id, boleto_id, fiscal_error,
			payment_error, email_sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23)`
	_, err := r.q.Exec(ctx, query,
		inv.ID, inv.ContractID, nullIfEmpty(inv.BatchID), nullIfEmpty(inv.BillingGroupID), inv.ClientID,
		inv.ClientName, inv.ClientDocument, inv.ClientEmail, inv.ClientCityCode,
		inv.CompetenceMonth, inv.CompetenceYear, inv.Number, inv.IssueDate, inv.DueDate,
		inv.Amount, inv.Status, nullIfEmpty(inv.FiscalDocumentID), nullIfEmpty(inv.BoletoID), nullIfEmpty(inv.FiscalError),
		nullIfEmpty(inv.PaymentError), inv.EmailSentAt, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("fatura já existe para a competência: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// Update atualiza status, valor e os vínculos com artefatos externos.
func (r *InvoiceRepo) Update(ctx context.Context, inv *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET amount             = $2,
		    status             = $3,
		    due_date           = $4,
		    fiscal_document_id = $5,
		    boleto_id          = $6,
		    fiscal_error       = $7,
		    payment_error      = $8,
		    email_sent_at      = $9,
		    updated_at         = $10
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		inv.ID, inv.Amount, inv.Status, inv.DueDate,
		nullIfEmpty(inv.FiscalDocumentID), nullIfEmpty(inv.BoletoID),
		nullIfEmpty(inv.FiscalError), nullIfEmpty(inv.PaymentError),
		inv.EmailSentAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	return nil
}

// GetByID obtém uma fatura completa por ID.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `
		SELECT id, contract_id, COALESCE(batch_id, ''), COALESCE(billing_group_id, ''), client_id,
		       client_name, client_document, client_email, client_city_code,
		       competence_month, competence_year, number, issue_date, due_date,
		       amount, status, COALESCE(fiscal_document_id, ''), COALESCE(boleto_id, ''),
		       COALESCE(fiscal_error, ''), COALESCE(payment_error, ''), email_sent_at,
		       created_at, updated_at
		FROM invoices WHERE id = $1`
	var inv entity.Invoice
	err := r.q.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.ContractID, &inv.BatchID, &inv.BillingGroupID, &inv.ClientID,
		&inv.ClientName, &inv.ClientDocument, &inv.ClientEmail, &inv.ClientCityCode,
		&inv.CompetenceMonth, &inv.CompetenceYear, &inv.Number, &inv.IssueDate, &inv.DueDate,
		&inv.Amount, &inv.Status, &inv.FiscalDocumentID, &inv.BoletoID,
		&inv.FiscalError, &inv.PaymentError, &inv.EmailSentAt,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return &inv, nil
}

// CreateItem persiste uma linha da fatura.
func (r *InvoiceRepo) CreateItem(ctx context.Context, item *entity.InvoiceItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoice_items (id, invoice_id, description, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query,
		item.ID, item.InvoiceID, item.Description, item.Quantity, item.UnitPrice, item.TotalPrice,
	)
	if err != nil {
		return fmt.Errorf("insert invoice item: %w", err)
	}
	return nil
}

// UpdateItem atualiza uma linha da fatura.
func (r *InvoiceRepo) UpdateItem(ctx context.Context, item *entity.InvoiceItem) error {
	query := `
		UPDATE invoice_items
		SET description = $2, quantity = $3, unit_price = $4, total_price = $5
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		item.ID, item.Description, item.Quantity, item.UnitPrice, item.TotalPrice,
	)
	if err != nil {
		return fmt.Errorf("update invoice item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteItem remove uma linha da fatura.
func (r *InvoiceRepo) DeleteItem(ctx context.Context, itemID string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM invoice_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete invoice item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListItems obtém todas as linhas de uma fatura.
func (r *InvoiceRepo) ListItems(ctx context.Context, invoiceID string) ([]*entity.InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, description, quantity, unit_price, total_price
		FROM invoice_items WHERE invoice_id = $1 ORDER BY id`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoiceItem
	for rows.Next() {
		var it entity.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		list = append(list, &it)
	}
	return list, rows.Err()
}

// GetItem obtém uma linha por ID.
func (r *InvoiceRepo) GetItem(ctx context.Context, itemID string) (*entity.InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, description, quantity, unit_price, total_price
		FROM invoice_items WHERE id = $1`
	var it entity.InvoiceItem
	err := r.q.QueryRow(ctx, query, itemID).Scan(
		&it.ID, &it.InvoiceID, &it.Description, &it.Quantity, &it.UnitPrice, &it.TotalPrice,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get invoice item: %w", err)
	}
	return &it, nil
}

// NextNumber consome a sequência global de numeração de faturas.
func (r *InvoiceRepo) NextNumber(ctx context.Context) (string, error) {
	var n int64
	if err := r.q.QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&n); err != nil {
		return "", fmt.Errorf("next invoice number: %w", err)
	}
	return fmt.Sprintf("FAT-%04d", n), nil
}
