package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status de documento fiscal (NFS-e padrão nacional).
const (
	FiscalStatusPending    = "PENDING"
	FiscalStatusAuthorized = "AUTHORIZED"
	FiscalStatusRejected   = "REJECTED"
)

// Ambientes da Sefin Nacional.
const (
	FiscalEnvProduction   = 1
	FiscalEnvHomologation = 2
)

// FiscalDocument é a NFS-e de uma fatura. A numeração é sequencial e
// monotônica por (emissor, série): nunca reutilizada, tolerante a lacunas.
// REJECTED é terminal — a reemissão cria um documento novo com número novo.
type FiscalDocument struct {
	ID        string
	InvoiceID string
	IssuerID  string
	Series    string
	Number    int64
	Status    string
	// AccessKey é a chave de acesso devolvida pela Sefin na autorização.
	AccessKey string
	SignedXML string
	// ReturnedXML é o XML autoritativo devolvido (descomprimido); em caso de
	// falha na descompressão guarda o corpo bruto da resposta.
	ReturnedXML string
	// ErrorPayload retém a rejeição bruta (status HTTP + corpo ou lista de
	// erros de negócio) para diagnóstico do operador.
	ErrorPayload string
	IssuedAt     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FiscalIssuer é o perfil fiscal do emissor (linha de configuração, injetada
// como valor nos serviços — nada de singleton global).
type FiscalIssuer struct {
	ID             string
	LegalName      string
	CNPJ           string
	MunicipalReg   string // inscrição municipal
	CityCode       string // código IBGE (7 dígitos)
	Series         string
	Environment    int // FiscalEnvProduction | FiscalEnvHomologation
	CertPFXBase64  string
	CertPassword   string
	ServiceCode    string // código de tributação nacional (item LC 116)
	MunicipalCode  string // código de tributação municipal
	ISSRate        decimal.Decimal
	ServiceSummary string // descrição padrão do serviço prestado
}
