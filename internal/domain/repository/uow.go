package repository

import "context"

// TxRepos agrupa os repositórios ligados a uma transação aberta.
// Tudo que for chamado através dele compartilha o mesmo tx.
type TxRepos struct {
	Invoices    InvoiceRepository
	Batches     BillingBatchRepository
	Receivables ReceivableRepository
	Boletos     BoletoRepository
	Fiscal      FiscalDocumentRepository
	Financial   FinancialRepository
}

// TxRunner executa fn dentro de uma transação. Erro de fn causa rollback;
// retorno nil causa commit.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos TxRepos) error) error
}
