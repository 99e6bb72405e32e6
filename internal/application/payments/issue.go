package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/domain/repository"
	"github.com/descartex/faturamento-api/internal/infrastructure/gateway"
	"github.com/descartex/faturamento-api/pkg/logger"
)

// Issuer emite o boleto/PIX de uma fatura no gateway bancário. A falha de
// emissão fica registrada em payment_error da fatura; fatura e recebível
// permanecem intactos para retry manual.
type Issuer struct {
	invoices    repository.InvoiceRepository
	boletos     repository.BoletoRepository
	receivables repository.ReceivableRepository
	gw          GatewayClient
	tx          repository.TxRunner
	log         *logger.Logger
}

func NewIssuer(
	invoices repository.InvoiceRepository,
	boletos repository.BoletoRepository,
	receivables repository.ReceivableRepository,
	gw GatewayClient,
	tx repository.TxRunner,
	log *logger.Logger,
) *Issuer {
	return &Issuer{
		invoices:    invoices,
		boletos:     boletos,
		receivables: receivables,
		gw:          gw,
		tx:          tx,
		log:         log,
	}
}

// Issue emite o boleto da fatura. Boleto não-cancelado já existente é no-op.
func (s *Issuer) Issue(ctx context.Context, invoiceID string) error {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("carregar fatura %s: %w", invoiceID, err)
	}
	if inv.Status == entity.InvoiceStatusCancelled {
		return fmt.Errorf("fatura %s cancelada: %w", invoiceID, domain.ErrConflict)
	}

	// Pré-checagem de duplicidade; a emissão no gateway não é transacional,
	// então não emitimos de novo enquanto houver instrumento vivo.
	if _, err := s.boletos.GetActiveByInvoiceID(ctx, invoiceID); err == nil {
		s.log.Debug().Str("invoice_id", invoiceID).Msg("boleto já emitido, pulando")
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("boleto da fatura: %w", err)
	}

	result, err := s.gw.IssueBoleto(ctx, &gateway.IssueRequest{
		Code:             inv.Number,
		CustomerName:     inv.ClientName,
		CustomerDocument: inv.ClientDocument,
		ServiceName:      fmt.Sprintf("Fatura %s", inv.Number),
		ServiceNote:      fmt.Sprintf("Competência %02d/%d", inv.CompetenceMonth, inv.CompetenceYear),
		Amount:           inv.Amount,
		DueDate:          inv.DueDate,
	})
	if err != nil {
		return s.recordPaymentError(ctx, inv, fmt.Errorf("emitir boleto no gateway: %w", err))
	}

	now := time.Now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.TxRepos) error {
		bol := &entity.Boleto{
			InvoiceID:     inv.ID,
			ClientID:      inv.ClientID,
			ExternalID:    result.ExternalID,
			Amount:        inv.Amount,
			Status:        entity.BoletoStatusOpen,
			Barcode:       result.Barcode,
			DigitableLine: result.DigitableLine,
			PDFURL:        result.PDFURL,
			DueDate:       inv.DueDate,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := repos.Boletos.Create(ctx, bol); err != nil {
			return fmt.Errorf("persistir boleto: %w", err)
		}

		inv.BoletoID = bol.ID
		inv.PaymentError = ""
		inv.UpdatedAt = now
		if err := repos.Invoices.Update(ctx, inv); err != nil {
			return fmt.Errorf("vincular boleto à fatura: %w", err)
		}

		rec, err := repos.Receivables.GetByInvoiceID(ctx, inv.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("recebível da fatura: %w", err)
		}
		if rec != nil {
			rec.ExternalRef = result.ExternalID
			rec.UpdatedAt = now
			if err := repos.Receivables.Update(ctx, rec); err != nil {
				return fmt.Errorf("vincular boleto ao recebível: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return s.recordPaymentError(ctx, inv, err)
	}

	s.log.Info().
		Str("invoice_id", inv.ID).
		Str("external_id", result.ExternalID).
		Msg("boleto emitido")
	return nil
}

func (s *Issuer) recordPaymentError(ctx context.Context, inv *entity.Invoice, cause error) error {
	inv.PaymentError = cause.Error()
	inv.UpdatedAt = time.Now()
	if err := s.invoices.Update(ctx, inv); err != nil {
		s.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("persistir payment_error")
	}
	return cause
}
