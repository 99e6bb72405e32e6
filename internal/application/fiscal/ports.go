package fiscal

import (
	"context"
	"crypto/tls"

	"github.com/descartex/faturamento-api/internal/infrastructure/nfse"
)

// Transmitter é a porta de saída para a Sefin Nacional. A implementação real
// usa HTTPS com mTLS; testes injetam um fake.
type Transmitter interface {
	SendDPS(ctx context.Context, signedXML []byte) (*nfse.SendResult, error)
}

// TransmitterFactory cria o transmissor para o ambiente do emissor com o
// certificado mTLS já carregado.
type TransmitterFactory func(environment int, cert tls.Certificate) Transmitter

// DefaultTransmitterFactory usa o cliente real da Sefin.
func DefaultTransmitterFactory(environment int, cert tls.Certificate) Transmitter {
	return nfse.NewClient(environment, cert)
}
