package payments

import (
	"context"
	"time"

	"github.com/descartex/faturamento-api/internal/infrastructure/gateway"
)

// GatewayClient abstrai o gateway bancário (emissão de boleto e extrato).
type GatewayClient interface {
	IssueBoleto(ctx context.Context, in *gateway.IssueRequest) (*gateway.IssueResult, error)
	Statement(ctx context.Context, from, to time.Time) ([]gateway.StatementEntry, error)
}
