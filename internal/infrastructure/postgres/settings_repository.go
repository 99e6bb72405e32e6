package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/domain/repository"
)

var _ repository.SettingsRepository = (*SettingsRepo)(nil)

// SettingsRepo carrega as linhas de configuração (emissor fiscal e gateway).
type SettingsRepo struct {
	q Querier
}

// NewSettingsRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewSettingsRepository(q Querier) *SettingsRepo {
	return &SettingsRepo{q: q}
}

// FiscalIssuer obtém o perfil fiscal do emissor. Sem linha configurada
// retorna domain.ErrConfigMissing.
func (r *SettingsRepo) FiscalIssuer(ctx context.Context) (*entity.FiscalIssuer, error) {
	query := `
		SELECT id, legal_name, cnpj, municipal_reg, city_code, series, environment,
		       cert_pfx_base64, cert_password, service_code, municipal_code,
		       iss_rate, service_summary
		FROM fiscal_issuers LIMIT 1`
	var is entity.FiscalIssuer
	err := r.q.QueryRow(ctx, query).Scan(
		&is.ID, &is.LegalName, &is.CNPJ, &is.MunicipalReg, &is.CityCode, &is.Series,
		&is.Environment, &is.CertPFXBase64, &is.CertPassword, &is.ServiceCode,
		&is.MunicipalCode, &is.ISSRate, &is.ServiceSummary,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("emissor fiscal não configurado: %w", domain.ErrConfigMissing)
		}
		return nil, fmt.Errorf("get fiscal issuer: %w", err)
	}
	return &is, nil
}

// GatewayConfig obtém as credenciais do gateway bancário. Sem linha
// configurada retorna domain.ErrConfigMissing.
func (r *SettingsRepo) GatewayConfig(ctx context.Context) (*entity.GatewayConfig, error) {
	query := `
		SELECT id, client_id, client_secret, cert_pem, key_pem, environment,
		       fine_percent, interest_percent,
		       COALESCE(access_token, ''), token_expires_at,
		       COALESCE(webhook_secret, ''), cash_account_id
		FROM gateway_configs LIMIT 1`
	var g entity.GatewayConfig
	err := r.q.QueryRow(ctx, query).Scan(
		&g.ID, &g.ClientID, &g.ClientSecret, &g.CertPEM, &g.KeyPEM, &g.Environment,
		&g.FinePercent, &g.InterestPercent,
		&g.AccessToken, &g.TokenExpiresAt,
		&g.WebhookSecret, &g.CashAccountID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("gateway não configurado: %w", domain.ErrConfigMissing)
		}
		return nil, fmt.Errorf("get gateway config: %w", err)
	}
	return &g, nil
}

// UpdateGatewayToken persiste o token OAuth2 e a expiração na linha de
// configuração (sobrevive a restart).
func (r *SettingsRepo) UpdateGatewayToken(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := r.q.Exec(ctx,
		`UPDATE gateway_configs SET access_token = $1, token_expires_at = $2`,
		token, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("update gateway token: %w", err)
	}
	return nil
}
