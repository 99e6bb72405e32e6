package fiscal

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/infrastructure/nfse"
	"github.com/descartex/faturamento-api/internal/mocks"
	"github.com/descartex/faturamento-api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "production", Level: "error"})
}

// testCredential gera um A1 autoassinado em memória.
func testCredential(t *testing.T) *nfse.Credential {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Emissor Teste"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return &nfse.Credential{
		PrivateKey:  key,
		Certificate: cert,
		CertPEM:     pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:      pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}),
	}
}

func swapCredentialLoader(t *testing.T, cred *nfse.Credential) {
	t.Helper()
	orig := loadCredential
	loadCredential = func(_, _ string) (*nfse.Credential, error) { return cred, nil }
	t.Cleanup(func() { loadCredential = orig })
}

type fakeTransmitter struct {
	result  *nfse.SendResult
	err     error
	calls   int
	lastXML []byte
}

func (f *fakeTransmitter) SendDPS(_ context.Context, signedXML []byte) (*nfse.SendResult, error) {
	f.calls++
	f.lastXML = signedXML
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func seedFiscalScenario(store *mocks.Store) {
	store.Issuer = &entity.FiscalIssuer{
		ID:             "emit-1",
		LegalName:      "Descartex Ambiental Ltda",
		CNPJ:           "12.345.678/0001-90",
		MunicipalReg:   "123456",
		CityCode:       "3550308",
		Series:         "1",
		Environment:    entity.FiscalEnvHomologation,
		CertPFXBase64:  "aW5qZXRhZG8=",
		CertPassword:   "x",
		ServiceCode:    "10701",
		MunicipalCode:  "14.02.01.501",
		ISSRate:        decimal.NewFromInt(2),
		ServiceSummary: "Coleta e destinação de resíduos",
	}
	store.SeedFiscalSequence("emit-1", "1", 100)
	store.Invoices["inv-1"] = entity.Invoice{
		ID:              "inv-1",
		Number:          "FAT-0001",
		ClientID:        "cli-1",
		ClientName:      "Condomínio Jardim",
		ClientDocument:  "98.765.432/0001-10",
		ClientEmail:     "adm@jardim.example",
		ClientCityCode:  "3550308",
		CompetenceMonth: 3,
		CompetenceYear:  2026,
		Status:          entity.InvoiceStatusPending,
		Amount:          decimal.NewFromFloat(1500.00),
		FiscalError:     "falha anterior",
	}
}

func newOrchestrator(store *mocks.Store, tr Transmitter) *Orchestrator {
	return NewOrchestrator(
		mocks.NewInvoiceRepo(store),
		mocks.NewFiscalRepo(store),
		mocks.NewSettingsRepo(store),
		nfse.NewXMLBuilder(),
		nfse.NewSigner(),
		func(_ int, _ tls.Certificate) Transmitter { return tr },
		testLogger(),
	)
}

func docByNumber(store *mocks.Store, number int64) *entity.FiscalDocument {
	for _, d := range store.FiscalDocs {
		if d.Number == number {
			dc := d
			return &dc
		}
	}
	return nil
}

func TestProcess_AutorizaEPersisteDocumento(t *testing.T) {
	store := mocks.NewStore()
	seedFiscalScenario(store)
	swapCredentialLoader(t, testCredential(t))
	tr := &fakeTransmitter{result: &nfse.SendResult{
		Authorized:  true,
		AccessKey:   "NFS3550308...",
		ReturnedXML: "<NFSe/>",
	}}
	orch := newOrchestrator(store, tr)

	require.NoError(t, orch.Process(context.Background(), "inv-1"))

	require.Equal(t, 1, tr.calls)
	assert.Contains(t, string(tr.lastXML), "<nDPS>101</nDPS>", "primeiro número acima do semeado")
	assert.Contains(t, string(tr.lastXML), "ds:Signature", "transmite o XML já assinado")

	doc := docByNumber(store, 101)
	require.NotNil(t, doc)
	assert.Equal(t, entity.FiscalStatusAuthorized, doc.Status)
	assert.Equal(t, "NFS3550308...", doc.AccessKey)
	assert.Equal(t, "<NFSe/>", doc.ReturnedXML)
	assert.NotEmpty(t, doc.SignedXML)

	inv := store.Invoices["inv-1"]
	assert.Equal(t, doc.ID, inv.FiscalDocumentID)
	assert.Empty(t, inv.FiscalError, "autorização limpa o erro anterior")
}

func TestProcess_RetriggerComAutorizadoEhNoOp(t *testing.T) {
	store := mocks.NewStore()
	seedFiscalScenario(store)
	swapCredentialLoader(t, testCredential(t))
	tr := &fakeTransmitter{result: &nfse.SendResult{Authorized: true, AccessKey: "chave"}}
	orch := newOrchestrator(store, tr)

	require.NoError(t, orch.Process(context.Background(), "inv-1"))
	require.NoError(t, orch.Process(context.Background(), "inv-1"))

	assert.Equal(t, 1, tr.calls, "documento autorizado não se reemite")
	assert.Len(t, store.FiscalDocs, 1)
}

func TestProcess_RejeicaoEhTerminalEReemissaoGanhaNumeroNovo(t *testing.T) {
	store := mocks.NewStore()
	seedFiscalScenario(store)
	swapCredentialLoader(t, testCredential(t))
	tr := &fakeTransmitter{result: &nfse.SendResult{
		Authorized:   false,
		ErrorPayload: `[{"codigo":"E0123","descricao":"CNPJ do tomador inválido"}]`,
	}}
	orch := newOrchestrator(store, tr)

	err := orch.Process(context.Background(), "inv-1")
	require.Error(t, err)

	rejected := docByNumber(store, 101)
	require.NotNil(t, rejected)
	assert.Equal(t, entity.FiscalStatusRejected, rejected.Status)
	assert.Contains(t, rejected.ErrorPayload, "E0123")
	assert.Contains(t, store.Invoices["inv-1"].FiscalError, "E0123")

	// Corrigido o cadastro, a reemissão cria documento novo; o rejeitado fica.
	tr.result = &nfse.SendResult{Authorized: true, AccessKey: "chave-nova"}
	require.NoError(t, orch.Process(context.Background(), "inv-1"))

	auth := docByNumber(store, 102)
	require.NotNil(t, auth)
	assert.Equal(t, entity.FiscalStatusAuthorized, auth.Status)
	assert.Equal(t, entity.FiscalStatusRejected, docByNumber(store, 101).Status)
	assert.Equal(t, auth.ID, store.Invoices["inv-1"].FiscalDocumentID)
	assert.Empty(t, store.Invoices["inv-1"].FiscalError)
}

func TestProcess_FalhaDeTransmissaoFicaNoDocumento(t *testing.T) {
	store := mocks.NewStore()
	seedFiscalScenario(store)
	swapCredentialLoader(t, testCredential(t))
	tr := &fakeTransmitter{err: errors.New("sefin fora do ar")}
	orch := newOrchestrator(store, tr)

	err := orch.Process(context.Background(), "inv-1")
	require.Error(t, err)

	doc := docByNumber(store, 101)
	require.NotNil(t, doc)
	assert.Equal(t, entity.FiscalStatusRejected, doc.Status)
	assert.True(t, strings.HasPrefix(doc.ErrorPayload, "transmit:"), doc.ErrorPayload)
	assert.Contains(t, store.Invoices["inv-1"].FiscalError, "sefin fora do ar")
}

func TestProcess_SemPerfilFiscal(t *testing.T) {
	store := mocks.NewStore()
	seedFiscalScenario(store)
	store.Issuer = nil
	orch := newOrchestrator(store, &fakeTransmitter{})

	err := orch.Process(context.Background(), "inv-1")
	assert.ErrorIs(t, err, domain.ErrConfigMissing)
	assert.Empty(t, store.FiscalDocs)
	assert.Contains(t, store.Invoices["inv-1"].FiscalError, "perfil fiscal")
}

func TestProcess_SequenciaNaoConfigurada(t *testing.T) {
	store := mocks.NewStore()
	seedFiscalScenario(store)
	swapCredentialLoader(t, testCredential(t))
	store.Issuer.Series = "2" // série sem sequência semeada
	orch := newOrchestrator(store, &fakeTransmitter{})

	err := orch.Process(context.Background(), "inv-1")
	assert.ErrorIs(t, err, domain.ErrConfigMissing)
	assert.Empty(t, store.FiscalDocs)
}

func TestProcess_CertificadoInvalido(t *testing.T) {
	store := mocks.NewStore()
	seedFiscalScenario(store)
	store.Issuer.CertPFXBase64 = "%%% não é base64 %%%"
	orch := newOrchestrator(store, &fakeTransmitter{})

	err := orch.Process(context.Background(), "inv-1")
	require.Error(t, err)
	assert.Empty(t, store.FiscalDocs, "falha antes de consumir número da série")
	assert.NotEmpty(t, store.Invoices["inv-1"].FiscalError)
}
