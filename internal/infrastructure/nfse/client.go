package nfse

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/descartex/faturamento-api/internal/domain/entity"
)

// Endpoints da Sefin Nacional (emissão da NFS-e padrão nacional).
const (
	URLProducao     = "https://sefin.nfse.gov.br/SefinNacional/nfse"
	URLHomologacao  = "https://sefin.producaorestrita.nfse.gov.br/SefinNacional/nfse"
	defaultTimeout  = 60 * time.Second
	maxResponseSize = 4 << 20 // 4 MB
)

// Client transmite a DPS assinada à Sefin Nacional. Protocolo: XML UTF-8 ->
// gzip -> base64 -> JSON, sobre mTLS com o certificado do emissor.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient monta o cliente para o ambiente do emissor, com transporte mTLS.
func NewClient(environment int, cert tls.Certificate) *Client {
	baseURL := URLHomologacao
	if environment == entity.FiscalEnvProduction {
		baseURL = URLProducao
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout, Transport: transport},
	}
}

// NewClientWithHTTP injeta baseURL e http.Client próprios (testes).
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type sendRequest struct {
	DPSXMLGzipB64 string `json:"dpsXmlGzipB64"`
}

type sendResponse struct {
	AccessKey      string          `json:"chaveAcesso"`
	NFSeXMLGzipB64 string          `json:"nfseXmlGZipB64"`
	Errors         json.RawMessage `json:"erros"`
}

// SendDPS envia o XML assinado. Lista "erros" não vazia é rejeição de negócio
// mesmo com HTTP 200/201; falha HTTP vira rejeição com status + corpo brutos.
// Erro de rede retorna err; rejeições retornam SendResult sem err.
func (c *Client) SendDPS(ctx context.Context, signedXML []byte) (*SendResult, error) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write(signedXML); err != nil {
		return nil, fmt.Errorf("nfse: comprimir DPS: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("nfse: comprimir DPS: %w", err)
	}

	payload, err := json.Marshal(sendRequest{
		DPSXMLGzipB64: base64.StdEncoding.EncodeToString(gz.Bytes()),
	})
	if err != nil {
		return nil, fmt.Errorf("nfse: serializar payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("nfse: criar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("nfse: timeout ou cancelamento: %w", ctx.Err())
		}
		return nil, fmt.Errorf("nfse: chamada HTTP falhou: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("nfse: ler resposta: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &SendResult{
			Authorized:   false,
			ErrorPayload: fmt.Sprintf(`{"status_code": %d, "response": %q}`, resp.StatusCode, string(rawBody)),
		}, nil
	}

	var body sendResponse
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return &SendResult{
			Authorized:   false,
			ErrorPayload: fmt.Sprintf("resposta não é JSON: %s", string(rawBody)),
		}, nil
	}

	// "erros" presente e não vazio é rejeição mesmo no 200.
	if hasErrors(body.Errors) {
		return &SendResult{
			Authorized:   false,
			ErrorPayload: string(body.Errors),
		}, nil
	}

	returned := string(rawBody)
	if body.NFSeXMLGzipB64 != "" {
		if xmlBytes, err := gunzipB64(body.NFSeXMLGzipB64); err == nil {
			returned = string(xmlBytes)
		}
	}

	return &SendResult{
		Authorized:  true,
		AccessKey:   body.AccessKey,
		ReturnedXML: returned,
	}, nil
}

func hasErrors(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	return s != "" && s != "null" && s != "[]" && s != "{}" && s != `""`
}

func gunzipB64(b64 string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxResponseSize))
}
