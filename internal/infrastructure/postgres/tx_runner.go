package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/descartex/faturamento-api/internal/domain/repository"
)

var _ repository.TxRunner = (*TxRunner)(nil)

// TxRunner executa callbacks dentro de uma transação PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner constrói o runner com o pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithinTx inicia a transação, executa fn com os repositórios atados à tx e
// faz Commit ou Rollback conforme o retorno.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.TxRepos) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	repos := repository.TxRepos{
		Invoices:    NewInvoiceRepository(tx),
		Batches:     NewBillingBatchRepository(tx),
		Receivables: NewReceivableRepository(tx),
		Boletos:     NewBoletoRepository(tx),
		Fiscal:      NewFiscalDocumentRepository(tx),
		Financial:   NewFinancialRepository(tx),
	}

	if err := fn(ctx, repos); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
