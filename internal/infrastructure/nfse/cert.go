// Carga do certificado A1 (.pfx/PKCS#12) do emissor.

package nfse

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pkcs12"

	"github.com/descartex/faturamento-api/internal/domain"
)

// Credential é o material do certificado A1 já decodificado: chave + folha
// x509 e os mesmos em PEM para o transporte mTLS. Nunca vai para disco.
type Credential struct {
	PrivateKey  *rsa.PrivateKey
	Certificate *x509.Certificate
	CertPEM     []byte
	KeyPEM      []byte
}

// LoadPKCS12 decodifica um bundle .pfx. Senha errada e cifra não suportada
// viram erros distinguíveis (domain.ErrCertPassword e
// domain.ErrCertUnsupportedCipher) para o operador saber o que corrigir.
func LoadPKCS12(data []byte, password string) (*Credential, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("nfse: certificado vazio")
	}
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, classifyPKCS12Error(err)
	}
	rsaKey, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("nfse: o certificado deve conter chave privada RSA")
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(rsaKey),
	})
	certPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Raw,
	})

	return &Credential{
		PrivateKey:  rsaKey,
		Certificate: cert,
		CertPEM:     certPEM,
		KeyPEM:      keyPEM,
	}, nil
}

// LoadPKCS12Base64 decodifica o bundle guardado em base64 na configuração.
func LoadPKCS12Base64(b64, password string) (*Credential, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("nfse: certificado base64 inválido: %w", err)
	}
	return LoadPKCS12(data, password)
}

// TLSCertificate monta o par para mTLS direto da memória.
func (c *Credential) TLSCertificate() (tls.Certificate, error) {
	pair, err := tls.X509KeyPair(c.CertPEM, c.KeyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("nfse: montar par mTLS: %w", err)
	}
	return pair, nil
}

func classifyPKCS12Error(err error) error {
	if errors.Is(err, pkcs12.ErrIncorrectPassword) {
		return fmt.Errorf("senha do certificado incorreta: %w", domain.ErrCertPassword)
	}
	msg := err.Error()
	if strings.Contains(msg, "unknown digest") ||
		strings.Contains(msg, "unsupported") ||
		strings.Contains(msg, "NotImplemented") {
		return fmt.Errorf("cifra do certificado não suportada (%v): %w", err, domain.ErrCertUnsupportedCipher)
	}
	return fmt.Errorf("nfse: decodificar p12: %w", err)
}
