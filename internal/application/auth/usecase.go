package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/descartex/faturamento-api/internal/application/dto"
	"github.com/descartex/faturamento-api/internal/domain"
	"github.com/descartex/faturamento-api/internal/domain/repository"
	"github.com/descartex/faturamento-api/pkg/config"
	"github.com/descartex/faturamento-api/pkg/jwt"
)

// UseCase autentica operadores do back office. Só login: o cadastro de
// usuários é feito fora desta API.
type UseCase struct {
	users  repository.UserRepository
	jwtCfg config.JWTConfig
}

func NewUseCase(users repository.UserRepository, jwtCfg config.JWTConfig) *UseCase {
	return &UseCase{users: users, jwtCfg: jwtCfg}
}

// Login verifica email/senha e devolve o token JWT com o papel do usuário.
func (uc *UseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := uc.users.GetByEmail(ctx, in.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, domain.ErrUnauthorized
	}
	token, err := jwt.Generate(uc.jwtCfg.Secret, user.ID, user.Role, uc.jwtCfg.Issuer, uc.jwtCfg.Expiration)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		Token: token,
		User: dto.UserResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
	}, nil
}
