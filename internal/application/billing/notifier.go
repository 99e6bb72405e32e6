package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/domain/repository"
	"github.com/descartex/faturamento-api/pkg/logger"
)

// InvoiceSender abstrai o transporte de e-mail (SMTP em produção).
type InvoiceSender interface {
	SendInvoice(inv *entity.Invoice, boletoURL, accessKey string) error
}

// EmailNotifier envia a fatura por e-mail com o link do boleto e da NFS-e,
// carimbando email_sent_at. Reenvio para fatura já notificada é no-op.
type EmailNotifier struct {
	invoices repository.InvoiceRepository
	boletos  repository.BoletoRepository
	fiscal   repository.FiscalDocumentRepository
	sender   InvoiceSender
	log      *logger.Logger
}

func NewEmailNotifier(
	invoices repository.InvoiceRepository,
	boletos repository.BoletoRepository,
	fiscal repository.FiscalDocumentRepository,
	sender InvoiceSender,
	log *logger.Logger,
) *EmailNotifier {
	return &EmailNotifier{invoices: invoices, boletos: boletos, fiscal: fiscal, sender: sender, log: log}
}

func (n *EmailNotifier) Notify(ctx context.Context, invoiceID string) error {
	inv, err := n.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("carregar fatura %s: %w", invoiceID, err)
	}
	if inv.EmailSentAt != nil {
		return nil
	}
	if inv.ClientEmail == "" {
		return fmt.Errorf("fatura %s sem e-mail do cliente: %w", invoiceID, domain.ErrInvalidInput)
	}

	var boletoURL string
	if bol, err := n.boletos.GetActiveByInvoiceID(ctx, invoiceID); err == nil {
		boletoURL = bol.PDFURL
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("boleto da fatura: %w", err)
	}

	var accessKey string
	if doc, err := n.fiscal.GetLatestByInvoiceID(ctx, invoiceID); err == nil {
		if doc.Status == entity.FiscalStatusAuthorized {
			accessKey = doc.AccessKey
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("documento fiscal da fatura: %w", err)
	}

	if err := n.sender.SendInvoice(inv, boletoURL, accessKey); err != nil {
		return fmt.Errorf("enviar e-mail: %w", err)
	}

	now := time.Now()
	inv.EmailSentAt = &now
	inv.UpdatedAt = now
	if err := n.invoices.Update(ctx, inv); err != nil {
		n.log.Error().Err(err).Str("invoice_id", invoiceID).Msg("carimbar email_sent_at")
	}
	n.log.Info().Str("invoice_id", invoiceID).Str("to", inv.ClientEmail).Msg("fatura enviada por e-mail")
	return nil
}
