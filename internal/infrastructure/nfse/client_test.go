package nfse_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/descartex/faturamento-api/internal/infrastructure/nfse"
)

func gzipB64(t *testing.T, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestSendDPS_Autorizada(t *testing.T) {
	signedXML := []byte(`<DPS versao="1.00"><infDPS Id="DPS1"/></DPS>`)
	returnedXML := []byte(`<NFSe><chave>123</chave></NFSe>`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]string
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))

		// O wire é XML -> gzip -> base64 na chave dpsXmlGzipB64.
		b64, ok := req["dpsXmlGzipB64"]
		require.True(t, ok, "payload deve usar a chave dpsXmlGzipB64")
		raw, err := base64.StdEncoding.DecodeString(b64)
		require.NoError(t, err)
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		require.NoError(t, err)
		got, err := io.ReadAll(zr)
		require.NoError(t, err)
		assert.Equal(t, signedXML, got)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"chaveAcesso":    "NFS123456789",
			"nfseXmlGZipB64": gzipB64(t, returnedXML),
		})
	}))
	defer srv.Close()

	client := nfse.NewClientWithHTTP(srv.URL, srv.Client())
	out, err := client.SendDPS(context.Background(), signedXML)
	require.NoError(t, err)
	assert.True(t, out.Authorized)
	assert.Equal(t, "NFS123456789", out.AccessKey)
	assert.Equal(t, string(returnedXML), out.ReturnedXML, "o XML devolvido deve vir descomprimido")
}

func TestSendDPS_ErrosDeNegocioNo200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"erros": [{"codigo": "E0100", "descricao": "CNPJ do emitente inválido"}]}`))
	}))
	defer srv.Close()

	client := nfse.NewClientWithHTTP(srv.URL, srv.Client())
	out, err := client.SendDPS(context.Background(), []byte("<DPS/>"))
	require.NoError(t, err, "rejeição de negócio não é erro de transporte")
	assert.False(t, out.Authorized, "lista de erros não vazia rejeita mesmo com HTTP 200")
	assert.Contains(t, out.ErrorPayload, "E0100")
}

func TestSendDPS_FalhaHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`invalido`))
	}))
	defer srv.Close()

	client := nfse.NewClientWithHTTP(srv.URL, srv.Client())
	out, err := client.SendDPS(context.Background(), []byte("<DPS/>"))
	require.NoError(t, err)
	assert.False(t, out.Authorized)
	assert.Contains(t, out.ErrorPayload, "400")
}

func TestSendDPS_GunzipComFallback(t *testing.T) {
	// XML devolvido corrompido: o resultado preserva o corpo bruto.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"chaveAcesso":    "NFS1",
			"nfseXmlGZipB64": base64.StdEncoding.EncodeToString([]byte("não é gzip")),
		})
	}))
	defer srv.Close()

	client := nfse.NewClientWithHTTP(srv.URL, srv.Client())
	out, err := client.SendDPS(context.Background(), []byte("<DPS/>"))
	require.NoError(t, err)
	assert.True(t, out.Authorized)
	assert.Contains(t, out.ReturnedXML, "nfseXmlGZipB64", "fallback mantém o corpo bruto da resposta")
}
