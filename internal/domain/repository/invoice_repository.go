package repository

import (
	"context"

	"github.com/descartex/faturamento-api/internal/domain/entity"
)

// InvoiceRepository persiste faturas e seus itens.
type InvoiceRepository interface {
	// Create insere a fatura. Violação da unique
	// (contract_id, competence_month, competence_year) vira domain.ErrDuplicate.
	Create(ctx context.Context, inv *entity.Invoice) error
	Update(ctx context.Context, inv *entity.Invoice) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)

	CreateItem(ctx context.Context, item *entity.InvoiceItem) error
	UpdateItem(ctx context.Context, item *entity.InvoiceItem) error
	DeleteItem(ctx context.Context, itemID string) error
	ListItems(ctx context.Context, invoiceID string) ([]*entity.InvoiceItem, error)
	GetItem(ctx context.Context, itemID string) (*entity.InvoiceItem, error)

	// NextNumber consome a sequência global e devolve "FAT-0001", "FAT-0002"...
	NextNumber(ctx context.Context) (string, error)
}

// BillingBatchRepository persiste execuções do motor de faturamento.
type BillingBatchRepository interface {
	Create(ctx context.Context, b *entity.BillingBatch) error
	Update(ctx context.Context, b *entity.BillingBatch) error
	GetByID(ctx context.Context, id string) (*entity.BillingBatch, error)
	AddError(ctx context.Context, batchID string, e entity.BatchError) error
	ListErrors(ctx context.Context, batchID string) ([]entity.BatchError, error)
}
