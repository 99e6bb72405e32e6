package nfse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pkcs12"

	"github.com/descartex/faturamento-api/internal/domain"
)

func TestClassifyPKCS12Error(t *testing.T) {
	t.Run("senha incorreta", func(t *testing.T) {
		err := classifyPKCS12Error(pkcs12.ErrIncorrectPassword)
		assert.ErrorIs(t, err, domain.ErrCertPassword)
	})

	t.Run("cifra não suportada", func(t *testing.T) {
		for _, msg := range []string{
			"pkcs12: unknown digest algorithm: 2.16.840.1.101.3.4.2.1",
			"pkcs12: unsupported encryption scheme",
			"NotImplemented: algorithm",
		} {
			err := classifyPKCS12Error(errors.New(msg))
			assert.ErrorIs(t, err, domain.ErrCertUnsupportedCipher, msg)
		}
	})

	t.Run("erro genérico não é reclassificado", func(t *testing.T) {
		err := classifyPKCS12Error(errors.New("pkcs12: error reading P12 data"))
		assert.NotErrorIs(t, err, domain.ErrCertPassword)
		assert.NotErrorIs(t, err, domain.ErrCertUnsupportedCipher)
	})
}

func TestLoadPKCS12_EntradasInvalidas(t *testing.T) {
	_, err := LoadPKCS12(nil, "senha")
	require.Error(t, err, "bundle vazio deve falhar")

	_, err = LoadPKCS12([]byte("isto não é um p12"), "senha")
	require.Error(t, err)

	_, err = LoadPKCS12Base64("%%%não-base64%%%", "senha")
	require.Error(t, err)
}
