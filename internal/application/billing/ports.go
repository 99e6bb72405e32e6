package billing

import "context"

// Pós-processadores best-effort do lote: rodam depois do commit da fatura e
// nunca desfazem nada. Cada um registra a própria falha na fatura.
type (
	// FiscalEmitter emite a NFS-e da fatura.
	FiscalEmitter interface {
		Process(ctx context.Context, invoiceID string) error
	}

	// InstrumentIssuer emite o boleto/PIX da fatura no gateway.
	InstrumentIssuer interface {
		Issue(ctx context.Context, invoiceID string) error
	}

	// Notifier envia a fatura por e-mail ao cliente.
	Notifier interface {
		Notify(ctx context.Context, invoiceID string) error
	}
)
