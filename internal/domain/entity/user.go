package entity

import "time"

// User é o operador do back office (somente autenticação da API — telas de
// gestão de usuários ficam fora deste serviço).
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string // "admin" | "financeiro"
	CreatedAt    time.Time
}
