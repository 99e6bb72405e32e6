package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Statement busca o extrato bancário no intervalo [from, to]. Valores chegam
// em centavos e saem em decimal, sempre positivos (o sentido está em Type).
func (c *Client) Statement(ctx context.Context, from, to time.Time) ([]StatementEntry, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("start_date", from.Format("2006-01-02"))
	q.Set("end_date", to.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.apiURL+statementPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: criar request de extrato: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: buscar extrato: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayRespLen))
	if err != nil {
		return nil, fmt.Errorf("gateway: ler extrato: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway: extrato falhou: %d - %s", resp.StatusCode, string(rawBody))
	}

	var body statementResponse
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return nil, fmt.Errorf("gateway: extrato inválido: %w", err)
	}

	entries := make([]StatementEntry, 0, len(body.Items))
	for _, item := range body.Items {
		date, err := time.Parse("2006-01-02", firstDateSegment(item.CreatedAt))
		if err != nil {
			date = time.Now()
		}
		amount := item.Amount
		if amount < 0 {
			amount = -amount
		}
		entries = append(entries, StatementEntry{
			ExternalID:        item.ID,
			Amount:            fromCents(amount),
			Type:              item.Type,
			Description:       item.Description,
			Date:              date,
			InvoiceExternalID: item.Details.InvoiceID,
		})
	}
	return entries, nil
}

// firstDateSegment corta "2026-08-28T10:00:00Z" em "2026-08-28".
func firstDateSegment(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == 'T' {
			return s[:i]
		}
	}
	return s
}
