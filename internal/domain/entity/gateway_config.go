package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ambientes do gateway de pagamento.
const (
	GatewayEnvProduction   = 1
	GatewayEnvHomologation = 2
)

// GatewayConfig são as credenciais e parâmetros do gateway bancário
// (OAuth2 client-credentials + mTLS). O token corrente fica cacheado na
// própria linha de configuração, com a expiração, para sobreviver a restarts.
type GatewayConfig struct {
	ID           string
	ClientID     string
	ClientSecret string
	CertPEM      string // certificado mTLS (PEM)
	KeyPEM       string // chave privada mTLS (PEM)
	Environment  int    // GatewayEnvProduction | GatewayEnvHomologation

	// Parâmetros de cobrança aplicados a todo boleto emitido.
	FinePercent     decimal.Decimal // multa, % sobre o valor
	InterestPercent decimal.Decimal // juros, % ao mês

	// Cache do token OAuth2.
	AccessToken    string
	TokenExpiresAt *time.Time

	// WebhookSecret assina (HMAC-SHA256) os callbacks de pagamento.
	WebhookSecret string

	// CashAccountID é a conta caixa creditada pela conciliação.
	CashAccountID string
}

// TokenValid informa se o token cacheado ainda serve, respeitando a janela
// de segurança de 5 minutos antes da expiração.
func (g *GatewayConfig) TokenValid(now time.Time) bool {
	return g.AccessToken != "" && g.TokenExpiresAt != nil &&
		g.TokenExpiresAt.After(now.Add(5*time.Minute))
}
