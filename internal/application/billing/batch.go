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

// RunInput parametriza uma execução do motor de faturamento.
type RunInput struct {
	CompetenceMonth int
	CompetenceYear  int
	BillingGroupID  string // vazio = todos os grupos
	DayFrom         int    // faixa do dia de vencimento resolvido; 0 = 1..31
	DayTo           int
}

// BatchEngine gera as faturas de uma competência em lote. A falha de um
// contrato é contada e reportada; o loop nunca para. A guarda de idempotência
// é a unique (contrato, mês, ano) da fatura: a segunda execução da mesma
// competência conta skipped, não duplica.
type BatchEngine struct {
	contracts repository.ContractRepository
	batches   repository.BillingBatchRepository
	tx        repository.TxRunner
	fiscal    FiscalEmitter
	issuer    InstrumentIssuer
	notifier  Notifier
	log       *logger.Logger
}

// NewBatchEngine constrói o motor. fiscal, issuer e notifier podem ser nil
// (o passo correspondente é pulado).
func NewBatchEngine(
	contracts repository.ContractRepository,
	batches repository.BillingBatchRepository,
	tx repository.TxRunner,
	fiscal FiscalEmitter,
	issuer InstrumentIssuer,
	notifier Notifier,
	log *logger.Logger,
) *BatchEngine {
	return &BatchEngine{
		contracts: contracts,
		batches:   batches,
		tx:        tx,
		fiscal:    fiscal,
		issuer:    issuer,
		notifier:  notifier,
		log:       log,
	}
}

// Run executa o lote e devolve o resumo final (sempre persistido, mesmo com
// erros por contrato).
func (e *BatchEngine) Run(ctx context.Context, in RunInput) (*entity.BillingBatch, error) {
	if in.CompetenceMonth < 1 || in.CompetenceMonth > 12 {
		return nil, fmt.Errorf("competência inválida %02d/%d: %w", in.CompetenceMonth, in.CompetenceYear, domain.ErrInvalidInput)
	}
	if in.DayFrom == 0 && in.DayTo == 0 {
		in.DayFrom, in.DayTo = 1, 31
	}
	if in.DayFrom < 1 || in.DayTo > 31 || in.DayFrom > in.DayTo {
		return nil, fmt.Errorf("faixa de vencimento inválida %d..%d: %w", in.DayFrom, in.DayTo, domain.ErrInvalidInput)
	}

	batch := &entity.BillingBatch{
		CompetenceMonth: in.CompetenceMonth,
		CompetenceYear:  in.CompetenceYear,
		BillingGroupID:  in.BillingGroupID,
		DayFrom:         in.DayFrom,
		DayTo:           in.DayTo,
		Status:          entity.BatchStatusProcessing,
		InvoicedAmount:  decimal.Zero,
		SkippedAmount:   decimal.Zero,
		StartedAt:       time.Now(),
	}
	if err := e.batches.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("criar lote: %w", err)
	}

	filter := repository.ContractFilter{
		BillingGroupID: in.BillingGroupID,
		DayFrom:        in.DayFrom,
		DayTo:          in.DayTo,
	}

	// Contratos já faturados para a competência saem da seleção, mas o resumo
	// de uma reexecução precisa reportá-los como pulados.
	if skipped, skippedTotal, err := e.contracts.CountAlreadyBilled(ctx, in.CompetenceMonth, in.CompetenceYear, filter); err != nil {
		e.log.Warn().Err(err).Str("batch_id", batch.ID).Msg("contar contratos já faturados")
	} else {
		batch.ContractCount += skipped
		batch.SkippedCount += skipped
		batch.SkippedAmount = batch.SkippedAmount.Add(skippedTotal)
	}

	contracts, err := e.contracts.ListEligible(ctx, in.CompetenceMonth, in.CompetenceYear, filter)
	if err != nil {
		batch.Status = entity.BatchStatusError
		now := time.Now()
		batch.FinishedAt = &now
		if uerr := e.batches.Update(ctx, batch); uerr != nil {
			e.log.Error().Err(uerr).Str("batch_id", batch.ID).Msg("persistir lote com erro")
		}
		return batch, fmt.Errorf("selecionar contratos: %w", err)
	}
	batch.ContractCount += len(contracts)

	var billed []string
	for _, c := range contracts {
		invoiceID, amount, err := e.billContract(ctx, batch, c)
		switch {
		case err == nil:
			batch.BilledCount++
			batch.InvoicedAmount = batch.InvoicedAmount.Add(amount)
			billed = append(billed, invoiceID)
		case errors.Is(err, domain.ErrDuplicate):
			// Corrida com outro lote: a constraint decidiu, contamos e seguimos.
			batch.SkippedCount++
			batch.SkippedAmount = batch.SkippedAmount.Add(c.Value)
		default:
			batch.ErrorCount++
			e.log.Warn().Err(err).Str("contract_id", c.ID).Str("batch_id", batch.ID).Msg("contrato falhou no lote")
			if aerr := e.batches.AddError(ctx, batch.ID, entity.BatchError{ContractID: c.ID, Message: err.Error()}); aerr != nil {
				e.log.Error().Err(aerr).Str("batch_id", batch.ID).Msg("registrar erro do lote")
			}
		}
	}

	// Fiscal, boleto e e-mail rodam fora da transação: falha fica na fatura
	// (fiscal_error / payment_error), nunca desfaz o faturado.
	for _, id := range billed {
		e.postProcess(ctx, id)
	}

	batch.Status = entity.BatchStatusCompleted
	now := time.Now()
	batch.FinishedAt = &now
	if err := e.batches.Update(ctx, batch); err != nil {
		return batch, fmt.Errorf("finalizar lote: %w", err)
	}

	e.log.Info().
		Str("batch_id", batch.ID).
		Int("contracts", batch.ContractCount).
		Int("billed", batch.BilledCount).
		Int("skipped", batch.SkippedCount).
		Int("errors", batch.ErrorCount).
		Str("invoiced", batch.InvoicedAmount.StringFixed(2)).
		Msg("lote concluído")
	return batch, nil
}

// billContract cria fatura + itens + recebível numa transação só.
func (e *BatchEngine) billContract(ctx context.Context, batch *entity.BillingBatch, c *entity.Contract) (string, decimal.Decimal, error) {
	items, err := e.contracts.ListItems(ctx, c.ID)
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("itens do contrato: %w", err)
	}

	var invoiceID string
	var amount decimal.Decimal
	err = e.tx.WithinTx(ctx, func(ctx context.Context, repos repository.TxRepos) error {
		number, err := repos.Invoices.NextNumber(ctx)
		if err != nil {
			return fmt.Errorf("numerar fatura: %w", err)
		}

		now := time.Now()
		inv := &entity.Invoice{
			ContractID:      c.ID,
			BatchID:         batch.ID,
			BillingGroupID:  c.BillingGroupID,
			ClientID:        c.ClientID,
			ClientName:      c.ClientName,
			ClientDocument:  c.ClientDocument,
			ClientEmail:     c.ClientEmail,
			ClientCityCode:  c.ClientCityCode,
			CompetenceMonth: batch.CompetenceMonth,
			CompetenceYear:  batch.CompetenceYear,
			Number:          number,
			IssueDate:       now,
			DueDate:         DueDate(batch.CompetenceYear, batch.CompetenceMonth, c.ResolvedDueDay()),
			Status:          entity.InvoiceStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		lines := invoiceLines(c, items)
		inv.Amount = entity.SumItems(lines)
		if err := repos.Invoices.Create(ctx, inv); err != nil {
			return err
		}
		for _, line := range lines {
			line.InvoiceID = inv.ID
			if err := repos.Invoices.CreateItem(ctx, line); err != nil {
				return fmt.Errorf("criar item: %w", err)
			}
		}

		rec := &entity.AccountReceivable{
			InvoiceID:      inv.ID,
			ClientID:       c.ClientID,
			Description:    fmt.Sprintf("Fatura %s - competência %02d/%d", inv.Number, inv.CompetenceMonth, inv.CompetenceYear),
			Amount:         inv.Amount,
			DueDate:        inv.DueDate,
			Status:         entity.ReceivableStatusPending,
			DocumentNumber: inv.Number,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := repos.Receivables.Create(ctx, rec); err != nil {
			return fmt.Errorf("criar recebível: %w", err)
		}

		invoiceID = inv.ID
		amount = inv.Amount
		return nil
	})
	return invoiceID, amount, err
}

func (e *BatchEngine) postProcess(ctx context.Context, invoiceID string) {
	if e.fiscal != nil {
		if err := e.fiscal.Process(ctx, invoiceID); err != nil {
			e.log.Warn().Err(err).Str("invoice_id", invoiceID).Msg("emissão fiscal falhou")
		}
	}
	if e.issuer != nil {
		if err := e.issuer.Issue(ctx, invoiceID); err != nil {
			e.log.Warn().Err(err).Str("invoice_id", invoiceID).Msg("emissão de boleto falhou")
		}
	}
	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, invoiceID); err != nil {
			e.log.Warn().Err(err).Str("invoice_id", invoiceID).Msg("envio de e-mail falhou")
		}
	}
}

// invoiceLines converte os itens do contrato em linhas da fatura; contrato sem
// itens vira uma linha sintética no valor cheio.
func invoiceLines(c *entity.Contract, items []*entity.ContractItem) []*entity.InvoiceItem {
	if len(items) == 0 {
		return []*entity.InvoiceItem{{
			Description: fmt.Sprintf("Mensalidade contrato %s", c.ID),
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   c.Value,
			TotalPrice:  c.Value,
		}}
	}
	lines := make([]*entity.InvoiceItem, 0, len(items))
	for _, it := range items {
		total := it.Total
		if total.IsZero() {
			total = it.Quantity.Mul(it.UnitPrice)
		}
		lines = append(lines, &entity.InvoiceItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  total,
		})
	}
	return lines
}

// DueDate monta o vencimento na competência, com o dia truncado ao último dia
// do mês (31 em fevereiro vira 28/29).
func DueDate(year, month, day int) time.Time {
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
