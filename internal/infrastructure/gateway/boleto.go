package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// IssueBoleto registra a cobrança no gateway (boleto + PIX). Multa e juros
// vêm da configuração; a multa é convertida em centavos sobre o valor da
// cobrança. Cada tentativa leva um Idempotency-Key novo.
func (c *Client) IssueBoleto(ctx context.Context, in *IssueRequest) (*IssueResult, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	doc := digitsOnly(in.CustomerDocument)
	docType := "CPF"
	if len(doc) > 11 {
		docType = "CNPJ"
	}
	name := in.CustomerName
	if len(name) > 60 {
		name = name[:60]
	}
	serviceName := in.ServiceName
	if len(serviceName) > 255 {
		serviceName = serviceName[:255]
	}
	note := in.ServiceNote
	if len(note) > 1000 {
		note = note[:1000]
	}

	dueDate := in.DueDate.Format("2006-01-02")
	payload := issuePayload{
		Code: in.Code,
		Customer: issueCustomer{
			Name:     name,
			Document: issueDocument{Identity: doc, Type: docType},
		},
		Services: []issueService{{
			Name:        serviceName,
			Description: note,
			Amount:      toCents(in.Amount),
		}},
		Terms: issueTerms{DueDate: dueDate},
		Forms: []string{"BANK_SLIP", "PIX"},
	}
	if c.cfg.FinePercent.IsPositive() {
		fine := in.Amount.Mul(c.cfg.FinePercent).Div(hundred)
		payload.Terms.Fine = &issueFine{Date: dueDate, Amount: toCents(fine)}
	}
	if c.cfg.InterestPercent.IsPositive() {
		rate, _ := c.cfg.InterestPercent.Float64()
		payload.Terms.Interest = &issueInterest{Date: dueDate, Rate: rate}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gateway: serializar cobrança: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+invoicesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: criar request de cobrança: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: emitir cobrança: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayRespLen))
	if err != nil {
		return nil, fmt.Errorf("gateway: ler resposta de cobrança: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("gateway: cobrança rejeitada: %d - %s", resp.StatusCode, string(rawBody))
	}

	var out issueResponse
	if err := json.Unmarshal(rawBody, &out); err != nil {
		return nil, fmt.Errorf("gateway: resposta de cobrança inválida: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("gateway: resposta de cobrança sem id: %s", string(rawBody))
	}

	return &IssueResult{
		ExternalID:    out.ID,
		Barcode:       out.PaymentOptions.BankSlip.Barcode,
		DigitableLine: out.PaymentOptions.BankSlip.Digitable,
		PDFURL:        out.PaymentOptions.BankSlip.URL,
	}, nil
}

func digitsOnly(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
