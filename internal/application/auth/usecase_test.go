package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/descartex/faturamento-api/internal/application/auth"
	"github.com/descartex/faturamento-api/internal/application/dto"
	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/entity"
	"github.com/descartex/faturamento-api/internal/mocks"
	"github.com/descartex/faturamento-api/pkg/config"
	"github.com/descartex/faturamento-api/pkg/jwt"
)

func seedUser(t *testing.T, store *mocks.Store, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	store.Users["u-1"] = entity.User{
		ID:           "u-1",
		Name:         "Ana Financeiro",
		Email:        "ana@descartex.example",
		PasswordHash: string(hash),
		Role:         "financeiro",
	}
}

func newUseCase(store *mocks.Store) *auth.UseCase {
	return auth.NewUseCase(mocks.NewUserRepo(store), config.JWTConfig{
		Secret:     "segredo-de-teste",
		Expiration: 60,
		Issuer:     "faturamento-api",
	})
}

func TestLogin_CredenciaisValidas(t *testing.T) {
	store := mocks.NewStore()
	seedUser(t, store, "senha-forte")
	uc := newUseCase(store)

	resp, err := uc.Login(context.Background(), dto.LoginRequest{
		Email:    "ana@descartex.example",
		Password: "senha-forte",
	})
	require.NoError(t, err)
	assert.Equal(t, "u-1", resp.User.ID)
	assert.Equal(t, "financeiro", resp.User.Role)

	userID, role, err := jwt.Parse("segredo-de-teste", resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)
	assert.Equal(t, "financeiro", role)
}

func TestLogin_SenhaErrada(t *testing.T) {
	store := mocks.NewStore()
	seedUser(t, store, "senha-forte")
	uc := newUseCase(store)

	_, err := uc.Login(context.Background(), dto.LoginRequest{
		Email:    "ana@descartex.example",
		Password: "senha-errada",
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_UsuarioInexistente(t *testing.T) {
	store := mocks.NewStore()
	uc := newUseCase(store)

	_, err := uc.Login(context.Background(), dto.LoginRequest{
		Email:    "ninguem@descartex.example",
		Password: "tanto-faz",
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "usuário ausente não vaza em mensagem distinta")
}
