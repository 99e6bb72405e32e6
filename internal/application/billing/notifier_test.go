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
	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/mocks"
)

type fakeSender struct {
	sent      int
	lastURL   string
	lastKey   string
	lastEmail string
	err       error
}

func (f *fakeSender) SendInvoice(inv *entity.Invoice, boletoURL, accessKey string) error {
	if f.err != nil {
		return f.err
	}
	f.sent++
	f.lastURL = boletoURL
	f.lastKey = accessKey
	f.lastEmail = inv.ClientEmail
	return nil
}

func seedNotifiable(store *mocks.Store) {
	store.Invoices["inv-1"] = entity.Invoice{
		ID:          "inv-1",
		Number:      "FAT-0001",
		ClientEmail: "adm@jardim.example",
		Status:      entity.InvoiceStatusPending,
		Amount:      decimal.NewFromInt(100),
	}
}

func newNotifier(store *mocks.Store, sender billing.InvoiceSender) *billing.EmailNotifier {
	return billing.NewEmailNotifier(
		mocks.NewInvoiceRepo(store), mocks.NewBoletoRepo(store),
		mocks.NewFiscalRepo(store), sender, testLogger(),
	)
}

func TestNotify_EnviaComBoletoENFSe(t *testing.T) {
	store := mocks.NewStore()
	seedNotifiable(store)
	store.Boletos["bol-1"] = entity.Boleto{
		ID: "bol-1", InvoiceID: "inv-1", ExternalID: "ext-1",
		Status: entity.BoletoStatusOpen,
		PDFURL: "https://gw.example/boletos/ext-1.pdf",
	}
	store.FiscalDocs["doc-1"] = entity.FiscalDocument{
		ID: "doc-1", InvoiceID: "inv-1", Number: 101,
		Status: entity.FiscalStatusAuthorized, AccessKey: "NFS123",
	}
	sender := &fakeSender{}

	require.NoError(t, newNotifier(store, sender).Notify(context.Background(), "inv-1"))

	assert.Equal(t, 1, sender.sent)
	assert.Equal(t, "adm@jardim.example", sender.lastEmail)
	assert.Equal(t, "https://gw.example/boletos/ext-1.pdf", sender.lastURL)
	assert.Equal(t, "NFS123", sender.lastKey)
	require.NotNil(t, store.Invoices["inv-1"].EmailSentAt)
}

func TestNotify_SemArtefatosAindaEnvia(t *testing.T) {
	store := mocks.NewStore()
	seedNotifiable(store)
	sender := &fakeSender{}

	require.NoError(t, newNotifier(store, sender).Notify(context.Background(), "inv-1"))
	assert.Equal(t, 1, sender.sent)
	assert.Empty(t, sender.lastURL)
	assert.Empty(t, sender.lastKey, "nfse rejeitada ou ausente não entra no e-mail")
}

func TestNotify_ReenvioEhNoOp(t *testing.T) {
	store := mocks.NewStore()
	seedNotifiable(store)
	sent := time.Now()
	inv := store.Invoices["inv-1"]
	inv.EmailSentAt = &sent
	store.Invoices["inv-1"] = inv
	sender := &fakeSender{}

	require.NoError(t, newNotifier(store, sender).Notify(context.Background(), "inv-1"))
	assert.Zero(t, sender.sent)
}

func TestNotify_SemEmailDoCliente(t *testing.T) {
	store := mocks.NewStore()
	seedNotifiable(store)
	inv := store.Invoices["inv-1"]
	inv.ClientEmail = ""
	store.Invoices["inv-1"] = inv

	err := newNotifier(store, &fakeSender{}).Notify(context.Background(), "inv-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNotify_FalhaDeEnvioNaoCarimba(t *testing.T) {
	store := mocks.NewStore()
	seedNotifiable(store)
	sender := &fakeSender{err: errors.New("smtp recusou")}

	err := newNotifier(store, sender).Notify(context.Background(), "inv-1")
	require.Error(t, err)
	assert.Nil(t, store.Invoices["inv-1"].EmailSentAt, "sem carimbo dá retry no próximo lote")
}
