package domain

import (
	"context"
	"time"
)

// User representa a identidade registrada no sistema.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Oculta o hash da senha no JSON de resposta
	ProfileImage string    `json:"profileImage"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicUser é a projeção de User que pode sair da API.
type PublicUser struct {
	ID           string    `json:"id" example:"8d3b0c7e-2f1a-4c55-9a61-0b3f5f1e2d44"`
	Username     string    `json:"username" example:"alice"`
	Email        string    `json:"email" example:"alice@x.com"`
	ProfileImage string    `json:"profileImage" example:"https://api.dicebear.com/9.x/avataaars/svg?seed=alice"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public devolve a projeção sem o hash da senha.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		ProfileImage: u.ProfileImage,
		CreatedAt:    u.CreatedAt,
	}
}

// UserRegistration representa o payload de entrada para o registro.
type UserRegistration struct {
	Username string `json:"username" example:"alice"`
	Email    string `json:"email" example:"alice@x.com"`
	Password string `json:"password" example:"secret1"`
}

// LoginRequest representa o payload de entrada para o login.
type LoginRequest struct {
	Email    string `json:"email" example:"alice@x.com"`
	Password string `json:"password" example:"secret1"`
}

// AuthResult é devolvido por registro e login bem-sucedidos.
type AuthResult struct {
	User  PublicUser `json:"user"`
	Token string     `json:"token"`
}

// UserRepository define o contrato de persistência para a entidade User.
// Save é a autoridade sobre unicidade de username e email.
type UserRepository interface {
	Save(ctx context.Context, user User) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
}

// UserService define o contrato de lógica de negócio para a entidade User.
type UserService interface {
	Register(ctx context.Context, registration UserRegistration) (AuthResult, error)
	Login(ctx context.Context, login LoginRequest) (AuthResult, error)
}
