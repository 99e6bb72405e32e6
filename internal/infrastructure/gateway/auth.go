// Cliente do gateway bancário: OAuth2 client-credentials sobre mTLS, com o
// token cacheado na linha de configuração (sobrevive a restart).

package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/domain/repository"
)

// Endpoints do gateway por ambiente.
const (
	apiURLProduction  = "https://matls-clients.api.cora.com.br"
	apiURLStaging     = "https://matls-clients.api.stage.cora.com.br"
	tokenPath         = "/token"
	invoicesPath      = "/v2/invoices"
	statementPath     = "/bank-statement/statement"
	requestTimeout    = 30 * time.Second
	defaultExpiresIn  = 3600
	maxGatewayRespLen = 1 << 20
)

// Client fala com o gateway bancário (emissão de boleto, extrato, token).
type Client struct {
	apiURL     string
	httpClient *http.Client
	cfg        *entity.GatewayConfig
	settings   repository.SettingsRepository
}

// NewClient monta o cliente com transporte mTLS a partir dos PEM da
// configuração. O material nunca vai para disco.
func NewClient(cfg *entity.GatewayConfig, settings repository.SettingsRepository) (*Client, error) {
	pair, err := tls.X509KeyPair([]byte(cfg.CertPEM), []byte(cfg.KeyPEM))
	if err != nil {
		return nil, fmt.Errorf("gateway: montar par mTLS: %w", err)
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{pair}},
	}
	apiURL := apiURLStaging
	if cfg.Environment == entity.GatewayEnvProduction {
		apiURL = apiURLProduction
	}
	return &Client{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: requestTimeout, Transport: transport},
		cfg:        cfg,
		settings:   settings,
	}, nil
}

// NewClientWithHTTP injeta baseURL e http.Client próprios (testes).
func NewClientWithHTTP(apiURL string, httpClient *http.Client, cfg *entity.GatewayConfig, settings repository.SettingsRepository) *Client {
	return &Client{apiURL: apiURL, httpClient: httpClient, cfg: cfg, settings: settings}
}

// Token devolve um access_token válido. O cacheado serve enquanto faltar mais
// de 5 minutos para expirar; senão pede um novo e persiste na configuração.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.cfg.TokenValid(time.Now()) {
		return c.cfg.AccessToken, nil
	}
	return c.requestNewToken(ctx)
}

func (c *Client) requestNewToken(ctx context.Context) (string, error) {
	tokenURL := c.apiURL + tokenPath

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	if secret := strings.TrimSpace(c.cfg.ClientSecret); secret != "" {
		form.Set("client_secret", secret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("gateway: criar request de token: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway: autenticar em %s: %w", tokenURL, err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayRespLen))
	if err != nil {
		return "", fmt.Errorf("gateway: ler resposta de token: %w", err)
	}

	var body tokenResponse
	_ = json.Unmarshal(rawBody, &body)

	if resp.StatusCode != http.StatusOK {
		// A URL do ambiente vai na mensagem: credencial certa no ambiente
		// errado é o erro mais comum de configuração.
		msg := body.ErrorDescription
		if msg == "" {
			msg = body.Error
		}
		if msg == "" {
			msg = string(rawBody)
		}
		return "", fmt.Errorf("gateway: autenticação falhou em %s: %d - %s", tokenURL, resp.StatusCode, msg)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("gateway: resposta de token sem access_token (%s)", tokenURL)
	}

	expiresIn := body.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	expiresAt := time.Now().Add(time.Duration(expiresIn) * time.Second)
	if err := c.settings.UpdateGatewayToken(ctx, body.AccessToken, expiresAt); err != nil {
		return "", fmt.Errorf("gateway: persistir token: %w", err)
	}
	c.cfg.AccessToken = body.AccessToken
	c.cfg.TokenExpiresAt = &expiresAt

	return body.AccessToken, nil
}
