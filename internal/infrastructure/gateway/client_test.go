package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/infrastructure/gateway"
)

// fakeSettings cumpre repository.SettingsRepository guardando o token em
// memória.
type fakeSettings struct {
	token     string
	expiresAt time.Time
	saves     int
}

func (f *fakeSettings) FiscalIssuer(context.Context) (*entity.FiscalIssuer, error) {
	return nil, nil
}

func (f *fakeSettings) GatewayConfig(context.Context) (*entity.GatewayConfig, error) {
	return nil, nil
}

func (f *fakeSettings) UpdateGatewayToken(_ context.Context, token string, expiresAt time.Time) error {
	f.token = token
	f.expiresAt = expiresAt
	f.saves++
	return nil
}

func testGatewayConfig() *entity.GatewayConfig {
	return &entity.GatewayConfig{
		ID:              "gw-1",
		ClientID:        "int-cliente-1",
		Environment:     entity.GatewayEnvHomologation,
		FinePercent:     decimal.NewFromInt(2),
		InterestPercent: decimal.NewFromInt(1),
		CashAccountID:   "caixa-1",
	}
}

func TestToken_CacheRespeitaJanelaDe5Minutos(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-novo", "expires_in": 3600})
	}))
	defer srv.Close()

	t.Run("token válido não vai à rede", func(t *testing.T) {
		cfg := testGatewayConfig()
		exp := time.Now().Add(time.Hour)
		cfg.AccessToken = "tok-cacheado"
		cfg.TokenExpiresAt = &exp

		client := gateway.NewClientWithHTTP(srv.URL, srv.Client(), cfg, &fakeSettings{})
		tok, err := client.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-cacheado", tok)
		assert.Zero(t, calls)
	})

	t.Run("expirando em menos de 5 minutos renova", func(t *testing.T) {
		cfg := testGatewayConfig()
		exp := time.Now().Add(3 * time.Minute)
		cfg.AccessToken = "tok-cacheado"
		cfg.TokenExpiresAt = &exp

		settings := &fakeSettings{}
		client := gateway.NewClientWithHTTP(srv.URL, srv.Client(), cfg, settings)
		tok, err := client.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-novo", tok)
		assert.Equal(t, 1, calls)
		assert.Equal(t, "tok-novo", settings.token, "token renovado deve ser persistido")
		assert.Equal(t, "tok-novo", cfg.AccessToken)
	})
}

func TestToken_FalhaNomeiaAmbiente(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_client",
			"error_description": "client não habilitado neste ambiente",
		})
	}))
	defer srv.Close()

	client := gateway.NewClientWithHTTP(srv.URL, srv.Client(), testGatewayConfig(), &fakeSettings{})
	_, err := client.Token(context.Background())
	require.Error(t, err)
	// A URL na mensagem denuncia credencial de produção apontada para staging.
	assert.Contains(t, err.Error(), srv.URL)
	assert.Contains(t, err.Error(), "client não habilitado")
}

func TestIssueBoleto_PayloadEmCentavos(t *testing.T) {
	var captured map[string]any
	idempotencyKeys := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
			return
		}
		require.Equal(t, "/v2/invoices", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		key := r.Header.Get("Idempotency-Key")
		require.NotEmpty(t, key)
		idempotencyKeys[key] = true

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "inv_abc",
			"payment_options": map[string]any{
				"bank_slip": map[string]any{
					"barcode":   "0339",
					"digitable": "03399.123",
					"url":       "https://example.com/b.pdf",
				},
			},
		})
	}))
	defer srv.Close()

	client := gateway.NewClientWithHTTP(srv.URL, srv.Client(), testGatewayConfig(), &fakeSettings{})
	in := &gateway.IssueRequest{
		Code:             "FAT-0042",
		CustomerName:     "Cliente Exemplo SA",
		CustomerDocument: "98.765.432/0001-10",
		ServiceName:      "Fatura FAT-0042",
		Amount:           decimal.NewFromFloat(150.75),
		DueDate:          time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
	}

	out, err := client.IssueBoleto(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "inv_abc", out.ExternalID)
	assert.Equal(t, "03399.123", out.DigitableLine)
	assert.Equal(t, "https://example.com/b.pdf", out.PDFURL)

	// Valor do serviço em centavos.
	services := captured["services"].([]any)
	svc := services[0].(map[string]any)
	assert.EqualValues(t, 15075, svc["amount"])

	customer := captured["customer"].(map[string]any)
	docWire := customer["document"].(map[string]any)
	assert.Equal(t, "98765432000110", docWire["identity"])
	assert.Equal(t, "CNPJ", docWire["type"])

	terms := captured["payment_terms"].(map[string]any)
	assert.Equal(t, "2026-09-10", terms["due_date"])
	// Multa de 2% sobre 150.75 = 3.015 -> 302 centavos (arredondado).
	fine := terms["fine"].(map[string]any)
	assert.EqualValues(t, 302, fine["amount"])
	interest := terms["interest"].(map[string]any)
	assert.EqualValues(t, 1.0, interest["rate"])

	forms := captured["payment_forms"].([]any)
	assert.ElementsMatch(t, []any{"BANK_SLIP", "PIX"}, forms)

	// Segunda tentativa leva Idempotency-Key diferente.
	_, err = client.IssueBoleto(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, idempotencyKeys, 2, "cada tentativa deve gerar chave de idempotência nova")
}

func TestStatement_ParseDoExtrato(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
			return
		}
		require.Equal(t, "/bank-statement/statement", r.URL.Path)
		assert.Equal(t, "2026-08-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2026-08-28", r.URL.Query().Get("end_date"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{
					"id":          "tx-1",
					"amount":      15075,
					"type":        "CREDIT",
					"description": "Boleto liquidado",
					"created_at":  "2026-08-27T14:30:00Z",
					"details":     map[string]any{"invoice_id": "inv_abc"},
				},
				{
					"id":          "tx-2",
					"amount":      -990,
					"type":        "DEBIT",
					"description": "Tarifa",
					"created_at":  "2026-08-27",
				},
			},
		})
	}))
	defer srv.Close()

	client := gateway.NewClientWithHTTP(srv.URL, srv.Client(), testGatewayConfig(), &fakeSettings{})
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	entries, err := client.Statement(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "tx-1", entries[0].ExternalID)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromFloat(150.75)))
	assert.Equal(t, "CREDIT", entries[0].Type)
	assert.Equal(t, "inv_abc", entries[0].InvoiceExternalID)
	assert.Equal(t, 27, entries[0].Date.Day())

	// Débito chega negativo e sai positivo, com o sentido em Type.
	assert.True(t, entries[1].Amount.Equal(decimal.NewFromFloat(9.90)))
	assert.Equal(t, "DEBIT", entries[1].Type)
	assert.Empty(t, entries[1].InvoiceExternalID)
}
