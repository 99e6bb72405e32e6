package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/domain/repository"
	"github.com/descartex/faturamento-api/pkg/logger"
)

// ItemInput é a linha de fatura vinda da API.
type ItemInput struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// InvoiceService mantém faturas já geradas: mutação de itens (sempre
// recalculando o total) e cancelamento com cascata.
type InvoiceService struct {
	invoices repository.InvoiceRepository
	boletos  repository.BoletoRepository
	tx       repository.TxRunner
	log      *logger.Logger
}

func NewInvoiceService(
	invoices repository.InvoiceRepository,
	boletos repository.BoletoRepository,
	tx repository.TxRunner,
	log *logger.Logger,
) *InvoiceService {
	return &InvoiceService{invoices: invoices, boletos: boletos, tx: tx, log: log}
}

// Get devolve a fatura com itens e erros de artefato (para retry manual).
func (s *InvoiceService) Get(ctx context.Context, id string) (*entity.Invoice, []*entity.InvoiceItem, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.invoices.ListItems(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("itens da fatura: %w", err)
	}
	return inv, items, nil
}

// AddItem insere a linha e recalcula o total na mesma transação.
func (s *InvoiceService) AddItem(ctx context.Context, invoiceID string, in ItemInput) (*entity.InvoiceItem, error) {
	if err := validateItem(in); err != nil {
		return nil, err
	}
	item := &entity.InvoiceItem{
		InvoiceID:   invoiceID,
		Description: in.Description,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		TotalPrice:  in.Quantity.Mul(in.UnitPrice),
	}
	err := s.mutate(ctx, invoiceID, func(ctx context.Context, repos repository.TxRepos) error {
		return repos.Invoices.CreateItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem altera a linha e recalcula o total na mesma transação.
func (s *InvoiceService) UpdateItem(ctx context.Context, invoiceID, itemID string, in ItemInput) (*entity.InvoiceItem, error) {
	if err := validateItem(in); err != nil {
		return nil, err
	}
	var item *entity.InvoiceItem
	err := s.mutate(ctx, invoiceID, func(ctx context.Context, repos repository.TxRepos) error {
		cur, err := repos.Invoices.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if cur.InvoiceID != invoiceID {
			return fmt.Errorf("item %s não pertence à fatura %s: %w", itemID, invoiceID, domain.ErrNotFound)
		}
		cur.Description = in.Description
		cur.Quantity = in.Quantity
		cur.UnitPrice = in.UnitPrice
		cur.TotalPrice = in.Quantity.Mul(in.UnitPrice)
		item = cur
		return repos.Invoices.UpdateItem(ctx, cur)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// RemoveItem remove a linha e recalcula o total na mesma transação.
func (s *InvoiceService) RemoveItem(ctx context.Context, invoiceID, itemID string) error {
	return s.mutate(ctx, invoiceID, func(ctx context.Context, repos repository.TxRepos) error {
		cur, err := repos.Invoices.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if cur.InvoiceID != invoiceID {
			return fmt.Errorf("item %s não pertence à fatura %s: %w", itemID, invoiceID, domain.ErrNotFound)
		}
		return repos.Invoices.DeleteItem(ctx, itemID)
	})
}

// mutate aplica fn e em seguida recalcula Invoice.Amount = Σ itens, espelhando
// o valor no recebível ainda pendente. Tudo numa transação.
func (s *InvoiceService) mutate(ctx context.Context, invoiceID string, fn func(ctx context.Context, repos repository.TxRepos) error) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.TxRepos) error {
		inv, err := repos.Invoices.GetByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != entity.InvoiceStatusPending {
			return fmt.Errorf("fatura %s não está pendente: %w", invoiceID, domain.ErrConflict)
		}
		if err := fn(ctx, repos); err != nil {
			return err
		}

		items, err := repos.Invoices.ListItems(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("itens da fatura: %w", err)
		}
		inv.Amount = entity.SumItems(items)
		inv.UpdatedAt = time.Now()
		if err := repos.Invoices.Update(ctx, inv); err != nil {
			return fmt.Errorf("recalcular total: %w", err)
		}

		rec, err := repos.Receivables.GetByInvoiceID(ctx, invoiceID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nil
		case err != nil:
			return fmt.Errorf("recebível da fatura: %w", err)
		}
		if rec.Status == entity.ReceivableStatusPending {
			rec.Amount = inv.Amount
			rec.UpdatedAt = time.Now()
			if err := repos.Receivables.Update(ctx, rec); err != nil {
				return fmt.Errorf("espelhar total no recebível: %w", err)
			}
		}
		return nil
	})
}

// Cancel cancela a fatura. Fatura paga não se cancela (ErrConflict). A cascata
// alcança o recebível não recebido e marca localmente o boleto em aberto —
// a baixa no gateway é manual, fora deste serviço.
func (s *InvoiceService) Cancel(ctx context.Context, invoiceID string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.TxRepos) error {
		inv, err := repos.Invoices.GetByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == entity.InvoiceStatusPaid {
			return fmt.Errorf("fatura %s já paga: %w", invoiceID, domain.ErrConflict)
		}
		if inv.Status == entity.InvoiceStatusCancelled {
			return nil
		}

		inv.Status = entity.InvoiceStatusCancelled
		inv.UpdatedAt = time.Now()
		if err := repos.Invoices.Update(ctx, inv); err != nil {
			return fmt.Errorf("cancelar fatura: %w", err)
		}

		rec, err := repos.Receivables.GetByInvoiceID(ctx, invoiceID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("recebível da fatura: %w", err)
		}
		if rec != nil && rec.Status != entity.ReceivableStatusReceived {
			rec.Status = entity.ReceivableStatusCancelled
			rec.UpdatedAt = time.Now()
			if err := repos.Receivables.Update(ctx, rec); err != nil {
				return fmt.Errorf("cancelar recebível: %w", err)
			}
		}

		bol, err := repos.Boletos.GetActiveByInvoiceID(ctx, invoiceID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("boleto da fatura: %w", err)
		}
		if bol != nil && bol.Status == entity.BoletoStatusOpen {
			bol.Status = entity.BoletoStatusCancelled
			bol.UpdatedAt = time.Now()
			if err := repos.Boletos.Update(ctx, bol); err != nil {
				return fmt.Errorf("cancelar boleto: %w", err)
			}
		}
		return nil
	})
}

func validateItem(in ItemInput) error {
	if in.Description == "" {
		return fmt.Errorf("descrição obrigatória: %w", domain.ErrInvalidInput)
	}
	if !in.Quantity.IsPositive() || in.UnitPrice.IsNegative() {
		return fmt.Errorf("quantidade/preço inválidos: %w", domain.ErrInvalidInput)
	}
	return nil
}
