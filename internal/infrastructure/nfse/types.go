package nfse

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/descartex/faturamento-api/internal/domain/entity"
)

// DPSInput reúne tudo que a DPS de uma fatura precisa: perfil do emissor,
// número alocado na série e os dados do tomador vindos do snapshot da fatura.
type DPSInput struct {
	Issuer *entity.FiscalIssuer
	Series string
	Number int64

	// IssuedAt é o instante de emissão pretendido; o builder normaliza para
	// UTC-3 e trava no presente se estiver no futuro.
	IssuedAt time.Time

	TakerName     string
	TakerDocument string // CPF ou CNPJ, com ou sem máscara
	TakerEmail    string
	TakerPhone    string
	TakerCityCode string // código IBGE; vazio usa o município do emissor

	ServiceDescription string
	AdditionalInfo     string
	Amount             decimal.Decimal
}

// BuildResult é o retorno da montagem da DPS.
type BuildResult struct {
	XML   []byte
	DPSID string
}

// SendResult é o desfecho da transmissão à Sefin Nacional.
type SendResult struct {
	Authorized bool
	// AccessKey é a chave de acesso devolvida na autorização.
	AccessKey string
	// ReturnedXML é a NFS-e autoritativa descomprimida; em falha de gunzip,
	// o corpo bruto da resposta.
	ReturnedXML string
	// ErrorPayload retém a rejeição bruta (erros de negócio ou status + corpo).
	ErrorPayload string
}
