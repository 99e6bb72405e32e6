package billing_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/descartex/faturamento-api/internal/application/billing"
	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/mocks"
)

func seedInvoice(store *mocks.Store, id, status string, amount float64) {
	store.Invoices[id] = entity.Invoice{
		ID:       id,
		Number:   "FAT-0001",
		ClientID: "cli-1",
		Status:   status,
		Amount:   decimal.NewFromFloat(amount),
	}
	store.Receivables["rec-"+id] = entity.AccountReceivable{
		ID:        "rec-" + id,
		InvoiceID: id,
		Status:    entity.ReceivableStatusPending,
		Amount:    decimal.NewFromFloat(amount),
	}
}

func newInvoiceService(store *mocks.Store) *billing.InvoiceService {
	return billing.NewInvoiceService(
		mocks.NewInvoiceRepo(store), mocks.NewBoletoRepo(store),
		&mocks.TxRunner{S: store}, testLogger(),
	)
}

func TestAddItem_RecalculaTotalEEspelhaNoRecebivel(t *testing.T) {
	store := mocks.NewStore()
	seedInvoice(store, "inv-1", entity.InvoiceStatusPending, 0)
	svc := newInvoiceService(store)

	item, err := svc.AddItem(context.Background(), "inv-1", billing.ItemInput{
		Description: "Coleta extra",
		Quantity:    decimal.NewFromInt(3),
		UnitPrice:   decimal.NewFromFloat(50.10),
	})
	require.NoError(t, err)
	assert.True(t, item.TotalPrice.Equal(decimal.NewFromFloat(150.30)))

	inv := store.Invoices["inv-1"]
	assert.True(t, inv.Amount.Equal(decimal.NewFromFloat(150.30)), "total = Σ itens")
	rec := store.Receivables["rec-inv-1"]
	assert.True(t, rec.Amount.Equal(inv.Amount), "recebível pendente acompanha o total")
}

func TestUpdateItem_RecalculaTotal(t *testing.T) {
	store := mocks.NewStore()
	seedInvoice(store, "inv-1", entity.InvoiceStatusPending, 0)
	svc := newInvoiceService(store)

	item, err := svc.AddItem(context.Background(), "inv-1", billing.ItemInput{
		Description: "Coleta", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	_, err = svc.UpdateItem(context.Background(), "inv-1", item.ID, billing.ItemInput{
		Description: "Coleta", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	assert.True(t, store.Invoices["inv-1"].Amount.Equal(decimal.NewFromInt(200)))

	require.NoError(t, svc.RemoveItem(context.Background(), "inv-1", item.ID))
	assert.True(t, store.Invoices["inv-1"].Amount.IsZero(), "sem itens o total zera")
}

func TestUpdateItem_DeOutraFatura(t *testing.T) {
	store := mocks.NewStore()
	seedInvoice(store, "inv-1", entity.InvoiceStatusPending, 0)
	seedInvoice(store, "inv-2", entity.InvoiceStatusPending, 0)
	svc := newInvoiceService(store)

	item, err := svc.AddItem(context.Background(), "inv-1", billing.ItemInput{
		Description: "Coleta", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	_, err = svc.UpdateItem(context.Background(), "inv-2", item.ID, billing.ItemInput{
		Description: "x", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMutacao_FaturaNaoPendenteRecusa(t *testing.T) {
	store := mocks.NewStore()
	seedInvoice(store, "inv-1", entity.InvoiceStatusPaid, 100)
	svc := newInvoiceService(store)

	_, err := svc.AddItem(context.Background(), "inv-1", billing.ItemInput{
		Description: "Coleta", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCancel_FaturaPagaRecusa(t *testing.T) {
	store := mocks.NewStore()
	seedInvoice(store, "inv-1", entity.InvoiceStatusPaid, 100)
	svc := newInvoiceService(store)

	err := svc.Cancel(context.Background(), "inv-1")
	assert.ErrorIs(t, err, domain.ErrConflict, "fatura paga não se cancela")
	assert.Equal(t, entity.InvoiceStatusPaid, store.Invoices["inv-1"].Status)
}

func TestCancel_CascataRecebivelEBoleto(t *testing.T) {
	store := mocks.NewStore()
	seedInvoice(store, "inv-1", entity.InvoiceStatusPending, 100)
	store.Boletos["bol-1"] = entity.Boleto{
		ID:         "bol-1",
		InvoiceID:  "inv-1",
		ExternalID: "ext-1",
		Status:     entity.BoletoStatusOpen,
	}
	svc := newInvoiceService(store)

	require.NoError(t, svc.Cancel(context.Background(), "inv-1"))
	assert.Equal(t, entity.InvoiceStatusCancelled, store.Invoices["inv-1"].Status)
	assert.Equal(t, entity.ReceivableStatusCancelled, store.Receivables["rec-inv-1"].Status)
	assert.Equal(t, entity.BoletoStatusCancelled, store.Boletos["bol-1"].Status)

	// Cancelar de novo é no-op.
	require.NoError(t, svc.Cancel(context.Background(), "inv-1"))
}

func TestCancel_RecebivelRecebidoFicaIntacto(t *testing.T) {
	store := mocks.NewStore()
	seedInvoice(store, "inv-1", entity.InvoiceStatusPending, 100)
	rec := store.Receivables["rec-inv-1"]
	rec.Status = entity.ReceivableStatusReceived
	store.Receivables["rec-inv-1"] = rec
	svc := newInvoiceService(store)

	require.NoError(t, svc.Cancel(context.Background(), "inv-1"))
	assert.Equal(t, entity.ReceivableStatusReceived, store.Receivables["rec-inv-1"].Status,
		"a cascata só alcança recebíveis não recebidos")
}
