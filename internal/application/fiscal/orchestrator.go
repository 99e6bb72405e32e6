package fiscal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/domain/repository"
	"github.com/descartex/faturamento-api/internal/infrastructure/nfse"
	"github.com/descartex/faturamento-api/pkg/logger"
)

// loadCredential decodifica o certificado A1 do emissor. Variável para os
// testes injetarem uma credencial gerada em memória.
var loadCredential = nfse.LoadPKCS12Base64

// Orchestrator orquestra o ciclo completo da NFS-e de uma fatura:
//
//	número na série → DPS XML → assinatura → transmissão → persistência
//
// Rejeição é terminal no documento: a reemissão cria um documento novo com
// número novo. A falha de qualquer passo fica registrada no documento e no
// campo fiscal_error da fatura; nunca derruba o chamador.
type Orchestrator struct {
	invoiceRepo repository.InvoiceRepository
	fiscalRepo  repository.FiscalDocumentRepository
	settings    repository.SettingsRepository
	xmlBuilder  *nfse.XMLBuilder
	signer      *nfse.Signer
	newTransmit TransmitterFactory
	log         *logger.Logger
}

// NewOrchestrator constrói o orquestrador com todas as dependências.
func NewOrchestrator(
	invoiceRepo repository.InvoiceRepository,
	fiscalRepo repository.FiscalDocumentRepository,
	settings repository.SettingsRepository,
	xmlBuilder *nfse.XMLBuilder,
	signer *nfse.Signer,
	newTransmit TransmitterFactory,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		invoiceRepo: invoiceRepo,
		fiscalRepo:  fiscalRepo,
		settings:    settings,
		xmlBuilder:  xmlBuilder,
		signer:      signer,
		newTransmit: newTransmit,
		log:         log,
	}
}

// Process emite a NFS-e da fatura. Retrigger com documento já autorizado é
// no-op. O erro retornado é o da emissão; o estado já foi persistido.
func (o *Orchestrator) Process(ctx context.Context, invoiceID string) error {
	inv, err := o.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("carregar fatura %s: %w", invoiceID, err)
	}

	// Idempotência: documento autorizado não se reemite.
	latest, err := o.fiscalRepo.GetLatestByInvoiceID(ctx, invoiceID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("consultar documento fiscal: %w", err)
	}
	if latest != nil && latest.Status == entity.FiscalStatusAuthorized {
		o.log.Debug().Str("invoice_id", invoiceID).Msg("nfse já autorizada, pulando")
		return nil
	}

	issuer, err := o.settings.FiscalIssuer(ctx)
	if err != nil {
		return o.recordInvoiceError(ctx, inv, fmt.Errorf("perfil fiscal: %w", err))
	}

	cred, err := loadCredential(issuer.CertPFXBase64, issuer.CertPassword)
	if err != nil {
		return o.recordInvoiceError(ctx, inv, err)
	}

	// Número monotônico na série; lacuna fica se algo falhar daqui em diante.
	number, err := o.fiscalRepo.NextNumber(ctx, issuer.ID, issuer.Series)
	if err != nil {
		return o.recordInvoiceError(ctx, inv, err)
	}

	now := time.Now()
	doc := &entity.FiscalDocument{
		InvoiceID: inv.ID,
		IssuerID:  issuer.ID,
		Series:    issuer.Series,
		Number:    number,
		Status:    entity.FiscalStatusPending,
		IssuedAt:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.fiscalRepo.Create(ctx, doc); err != nil {
		return o.recordInvoiceError(ctx, inv, fmt.Errorf("criar documento fiscal: %w", err))
	}

	// markRejected persiste a rejeição no documento e na fatura.
	markRejected := func(step string, cause error) error {
		doc.Status = entity.FiscalStatusRejected
		doc.ErrorPayload = fmt.Sprintf("%s: %v", step, cause)
		doc.UpdatedAt = time.Now()
		if uerr := o.fiscalRepo.Update(ctx, doc); uerr != nil {
			o.log.Error().Err(uerr).Str("invoice_id", inv.ID).Msg("persistir rejeição da nfse")
		}
		o.log.Warn().Str("invoice_id", inv.ID).Str("step", step).Err(cause).Msg("nfse rejeitada")
		return o.recordInvoiceError(ctx, inv, cause)
	}

	built, err := o.xmlBuilder.Build(&nfse.DPSInput{
		Issuer:             issuer,
		Series:             issuer.Series,
		Number:             number,
		IssuedAt:           now,
		TakerName:          inv.ClientName,
		TakerDocument:      inv.ClientDocument,
		TakerEmail:         inv.ClientEmail,
		TakerCityCode:      inv.ClientCityCode,
		ServiceDescription: issuer.ServiceSummary,
		AdditionalInfo:     fmt.Sprintf("Fatura %s - competência %02d/%d", inv.Number, inv.CompetenceMonth, inv.CompetenceYear),
		Amount:             inv.Amount,
	})
	if err != nil {
		return markRejected("xml-build", err)
	}

	signedXML, err := o.signer.Sign(built.XML, built.DPSID, cred)
	if err != nil {
		return markRejected("xml-sign", err)
	}
	doc.SignedXML = string(signedXML)

	tlsCert, err := cred.TLSCertificate()
	if err != nil {
		return markRejected("mtls", err)
	}

	result, err := o.newTransmit(issuer.Environment, tlsCert).SendDPS(ctx, signedXML)
	if err != nil {
		return markRejected("transmit", err)
	}

	doc.UpdatedAt = time.Now()
	if !result.Authorized {
		doc.Status = entity.FiscalStatusRejected
		doc.ErrorPayload = result.ErrorPayload
		if uerr := o.fiscalRepo.Update(ctx, doc); uerr != nil {
			o.log.Error().Err(uerr).Str("invoice_id", inv.ID).Msg("persistir rejeição da nfse")
		}
		return o.recordInvoiceError(ctx, inv, fmt.Errorf("rejeição da sefin: %s", result.ErrorPayload))
	}

	doc.Status = entity.FiscalStatusAuthorized
	doc.AccessKey = result.AccessKey
	doc.ReturnedXML = result.ReturnedXML
	if err := o.fiscalRepo.Update(ctx, doc); err != nil {
		return fmt.Errorf("persistir autorização: %w", err)
	}

	inv.FiscalDocumentID = doc.ID
	inv.FiscalError = ""
	inv.UpdatedAt = time.Now()
	if err := o.invoiceRepo.Update(ctx, inv); err != nil {
		return fmt.Errorf("vincular documento à fatura: %w", err)
	}

	o.log.Info().
		Str("invoice_id", inv.ID).
		Str("access_key", result.AccessKey).
		Int64("number", number).
		Msg("nfse autorizada")
	return nil
}

// recordInvoiceError guarda o último erro fiscal na fatura para retry manual
// e devolve o erro original.
func (o *Orchestrator) recordInvoiceError(ctx context.Context, inv *entity.Invoice, cause error) error {
	inv.FiscalError = cause.Error()
	inv.UpdatedAt = time.Now()
	if err := o.invoiceRepo.Update(ctx, inv); err != nil {
		o.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("persistir fiscal_error")
	}
	return cause
}
