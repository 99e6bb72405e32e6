package domain

import "errors"

// Erros de domínio (sem dependências externas).
var (
	ErrNotFound     = errors.New("recurso não encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrConflict     = errors.New("conflito com o estado atual")
	ErrUnauthorized = errors.New("não autorizado")
	ErrForbidden    = errors.New("acesso negado")

	// ErrConfigMissing indica configuração obrigatória ausente (certificado,
	// credenciais do gateway). Interrompe o sub-passo, nunca o lote inteiro.
	ErrConfigMissing = errors.New("configuração obrigatória ausente")
)

// Erros de certificado digital. A remediação de cada um é diferente
// (corrigir a senha vs. reconverter o PFX), então precisam ser distinguíveis.
var (
	ErrCertPassword          = errors.New("senha do certificado incorreta")
	ErrCertUnsupportedCipher = errors.New("cifra do certificado não suportada pelo decodificador PKCS12")
)
