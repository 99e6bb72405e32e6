package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/descartex/faturamento-api/internal/application/billing"
	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/domain/repository"
	"github.com/descartex/faturamento-api/internal/mocks"
	"github.com/descartex/faturamento-api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "production", Level: "error"})
}

func seedContract(store *mocks.Store, id string, dueDay int, value float64) {
	store.Contracts[id] = entity.Contract{
		ID:             id,
		ClientID:       "cli-" + id,
		ClientName:     "Cliente " + id,
		ClientDocument: "12345678909",
		ClientEmail:    id + "@example.com",
		DueDay:         dueDay,
		Value:          decimal.NewFromFloat(value),
		Status:         entity.ContractStatusActive,
	}
}

func newEngine(store *mocks.Store, contracts repository.ContractRepository) *billing.BatchEngine {
	if contracts == nil {
		contracts = mocks.NewContractRepo(store)
	}
	return billing.NewBatchEngine(
		contracts, mocks.NewBatchRepo(store), &mocks.TxRunner{S: store},
		nil, nil, nil, testLogger(),
	)
}

func findReceivable(t *testing.T, store *mocks.Store, invoiceID string) entity.AccountReceivable {
	t.Helper()
	for _, rec := range store.Receivables {
		if rec.InvoiceID == invoiceID {
			return rec
		}
	}
	t.Fatalf("recebível da fatura %s não encontrado", invoiceID)
	return entity.AccountReceivable{}
}

func TestRun_FaturaContratosElegiveis(t *testing.T) {
	store := mocks.NewStore()
	seedContract(store, "c1", 10, 500)
	seedContract(store, "c2", 15, 300.50)
	store.ContractItems["c2"] = []entity.ContractItem{
		{ID: "i1", ContractID: "c2", Description: "Coleta", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromFloat(100.25), Total: decimal.NewFromFloat(200.50)},
		{ID: "i2", ContractID: "c2", Description: "Transporte", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100), Total: decimal.NewFromInt(100)},
	}

	batch, err := newEngine(store, nil).Run(context.Background(),
		billing.RunInput{CompetenceMonth: 8, CompetenceYear: 2026})
	require.NoError(t, err)

	assert.Equal(t, entity.BatchStatusCompleted, batch.Status)
	assert.Equal(t, 2, batch.ContractCount)
	assert.Equal(t, 2, batch.BilledCount)
	assert.Zero(t, batch.SkippedCount)
	assert.Zero(t, batch.ErrorCount)
	require.NotNil(t, batch.FinishedAt)

	// Uma fatura e um recebível por contrato, com os totais espelhados.
	require.Len(t, store.Invoices, 2)
	require.Len(t, store.Receivables, 2)
	for _, inv := range store.Invoices {
		assert.Equal(t, entity.InvoiceStatusPending, inv.Status)
		assert.Equal(t, 8, inv.CompetenceMonth)
		assert.NotEmpty(t, inv.Number)
		rec := findReceivable(t, store, inv.ID)
		assert.True(t, rec.Amount.Equal(inv.Amount), "recebível espelha o total da fatura")
		assert.Equal(t, entity.ReceivableStatusPending, rec.Status)
	}
	// 500 (linha sintética) + 300.50 (itens do contrato).
	assert.True(t, batch.InvoicedAmount.Equal(decimal.NewFromFloat(800.50)),
		"total faturado foi %s", batch.InvoicedAmount)
}

func TestRun_SegundaExecucaoNaoDuplicaCompetencia(t *testing.T) {
	store := mocks.NewStore()
	seedContract(store, "c1", 10, 500)
	engine := newEngine(store, nil)

	first, err := engine.Run(context.Background(), billing.RunInput{CompetenceMonth: 8, CompetenceYear: 2026})
	require.NoError(t, err)
	require.Equal(t, 1, first.BilledCount)

	// A pré-leitura exclui o contrato já faturado, mas o resumo da reexecução
	// o reporta como pulado.
	second, err := engine.Run(context.Background(), billing.RunInput{CompetenceMonth: 8, CompetenceYear: 2026})
	require.NoError(t, err)
	assert.Equal(t, 1, second.ContractCount)
	assert.Zero(t, second.BilledCount)
	assert.Equal(t, 1, second.SkippedCount, "reexecução reporta o já faturado como pulado")
	assert.True(t, second.SkippedAmount.Equal(decimal.NewFromInt(500)))
	assert.Len(t, store.Invoices, 1, "a competência nunca fatura em dobro")

	// Competência diferente volta a faturar.
	third, err := engine.Run(context.Background(), billing.RunInput{CompetenceMonth: 9, CompetenceYear: 2026})
	require.NoError(t, err)
	assert.Equal(t, 1, third.BilledCount)
}

func TestRun_CorridaComConstraintContaSkipped(t *testing.T) {
	store := mocks.NewStore()
	seedContract(store, "c1", 10, 500)

	// O contrato passa na pré-leitura, mas outro lote ganha a corrida e a
	// fatura já existe na hora do INSERT: a constraint decide e vira skipped.
	batch, err := newEngine(store, &racingContracts{store: store}).Run(context.Background(),
		billing.RunInput{CompetenceMonth: 8, CompetenceYear: 2026})
	require.NoError(t, err)

	assert.Equal(t, 1, batch.SkippedCount, "violação da unique vira skipped, não erro")
	assert.Zero(t, batch.ErrorCount)
	assert.True(t, batch.SkippedAmount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, entity.BatchStatusCompleted, batch.Status)
}

func TestRun_ErroDeUmContratoNaoParaOLote(t *testing.T) {
	store := mocks.NewStore()
	seedContract(store, "c-ok", 10, 100)
	seedContract(store, "c-ruim", 12, 200)

	batch, err := newEngine(store, &failingItemsContracts{store: store, failFor: "c-ruim"}).
		Run(context.Background(), billing.RunInput{CompetenceMonth: 8, CompetenceYear: 2026})
	require.NoError(t, err, "o lote finaliza mesmo com contrato falhando")

	assert.Equal(t, entity.BatchStatusCompleted, batch.Status)
	assert.Equal(t, 1, batch.BilledCount)
	assert.Equal(t, 1, batch.ErrorCount)

	errs, lerr := mocks.NewBatchRepo(store).ListErrors(context.Background(), batch.ID)
	require.NoError(t, lerr)
	require.Len(t, errs, 1)
	assert.Equal(t, "c-ruim", errs[0].ContractID)
}

func TestRun_CompetenciaInvalida(t *testing.T) {
	store := mocks.NewStore()
	_, err := newEngine(store, nil).Run(context.Background(),
		billing.RunInput{CompetenceMonth: 13, CompetenceYear: 2026})
	require.Error(t, err)
	assert.Empty(t, store.Batches, "validação acontece antes de criar o lote")
}

func TestDueDate_TruncaNoUltimoDiaDoMes(t *testing.T) {
	// Dia 31 em fevereiro não bissexto vira 28.
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), billing.DueDate(2026, 2, 31))
	// Bissexto vira 29.
	assert.Equal(t, time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC), billing.DueDate(2028, 2, 31))
	// Dia válido é preservado.
	assert.Equal(t, time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), billing.DueDate(2026, 8, 15))
}

// ── Fakes de cenário ──

// racingContracts devolve o contrato como elegível e em seguida planta a
// fatura da competência, forçando a violação da unique no INSERT do lote.
type racingContracts struct {
	store *mocks.Store
}

func (p *racingContracts) ListEligible(ctx context.Context, month, year int, f repository.ContractFilter) ([]*entity.Contract, error) {
	out, err := mocks.NewContractRepo(p.store).ListEligible(ctx, month, year, f)
	if err != nil {
		return nil, err
	}
	for _, c := range out {
		_ = mocks.NewInvoiceRepo(p.store).Create(ctx, &entity.Invoice{
			ContractID:      c.ID,
			CompetenceMonth: month,
			CompetenceYear:  year,
			Number:          "FAT-race",
			Status:          entity.InvoiceStatusPending,
			Amount:          c.Value,
		})
	}
	return out, nil
}

func (p *racingContracts) CountAlreadyBilled(ctx context.Context, month, year int, f repository.ContractFilter) (int, decimal.Decimal, error) {
	return mocks.NewContractRepo(p.store).CountAlreadyBilled(ctx, month, year, f)
}

func (p *racingContracts) GetByID(ctx context.Context, id string) (*entity.Contract, error) {
	return mocks.NewContractRepo(p.store).GetByID(ctx, id)
}

func (p *racingContracts) ListItems(ctx context.Context, contractID string) ([]*entity.ContractItem, error) {
	return mocks.NewContractRepo(p.store).ListItems(ctx, contractID)
}

// failingItemsContracts falha a leitura dos itens de um contrato específico.
type failingItemsContracts struct {
	store   *mocks.Store
	failFor string
}

func (p *failingItemsContracts) ListEligible(ctx context.Context, month, year int, f repository.ContractFilter) ([]*entity.Contract, error) {
	return mocks.NewContractRepo(p.store).ListEligible(ctx, month, year, f)
}

func (p *failingItemsContracts) CountAlreadyBilled(ctx context.Context, month, year int, f repository.ContractFilter) (int, decimal.Decimal, error) {
	return mocks.NewContractRepo(p.store).CountAlreadyBilled(ctx, month, year, f)
}

func (p *failingItemsContracts) GetByID(ctx context.Context, id string) (*entity.Contract, error) {
	return mocks.NewContractRepo(p.store).GetByID(ctx, id)
}

func (p *failingItemsContracts) ListItems(ctx context.Context, contractID string) ([]*entity.ContractItem, error) {
	if contractID == p.failFor {
		return nil, errors.New("itens corrompidos")
	}
	return mocks.NewContractRepo(p.store).ListItems(ctx, contractID)
}
