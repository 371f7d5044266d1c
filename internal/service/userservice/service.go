package userservice

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"bookworm/internal/domain"
	apperror "bookworm/internal/errors"
	"bookworm/internal/pkg/hasher"
	"bookworm/internal/pkg/logger"
)

// Mensagens de validação expostas ao cliente.
const (
	MsgAllFieldsRequired  = "All fields are required"
	MsgInvalidEmail       = "Invalid email format"
	MsgPasswordTooShort   = "Password must be at least 6 characters"
	MsgPasswordTooLong    = "Password must be at most 72 bytes"
	MsgUsernameTooShort   = "Username must be at least 3 characters"
	MsgUsernameTaken      = "Username already exists"
	MsgEmailTaken         = "Email already exists"
	MsgUserNotFound       = "User not found"
	MsgInvalidCredentials = "Invalid credentials"
)

const (
	minPasswordLen = 6
	minUsernameLen = 3

	avatarURL = "https://api.dicebear.com/9.x/avataaars/svg?seed=%s"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// TokenIssuer é o recorte de token.TokenService usado aqui.
type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
}

// Service implementa domain.UserService.
type Service struct {
	repo   domain.UserRepository
	hasher hasher.PasswordHasher
	tokens TokenIssuer
	logger logger.Logger
}

// NewService cria uma nova instância do serviço de credenciais.
func NewService(repo domain.UserRepository, hasher hasher.PasswordHasher, tokens TokenIssuer, logger logger.Logger) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

// ProfileImageFor deriva o avatar de forma determinística a partir do username.
func ProfileImageFor(username string) string {
	return fmt.Sprintf(avatarURL, url.QueryEscape(username))
}

// Register cria a conta e já devolve um token de sessão.
func (s *Service) Register(ctx context.Context, reg domain.UserRegistration) (domain.AuthResult, error) {
	username := strings.ToLower(strings.TrimSpace(reg.Username))
	email := strings.ToLower(strings.TrimSpace(reg.Email))

	// 1. Validação (nada toca o banco antes daqui)
	if username == "" || email == "" || reg.Password == "" {
		return domain.AuthResult{}, apperror.NewValidationError(MsgAllFieldsRequired)
	}
	if !emailPattern.MatchString(email) {
		return domain.AuthResult{}, apperror.NewValidationError(MsgInvalidEmail)
	}
	if len(reg.Password) < minPasswordLen {
		return domain.AuthResult{}, apperror.NewValidationError(MsgPasswordTooShort)
	}
	if len(reg.Password) > hasher.MaxPasswordBytes {
		return domain.AuthResult{}, apperror.NewValidationError(MsgPasswordTooLong)
	}
	if utf8.RuneCountInString(username) < minUsernameLen {
		return domain.AuthResult{}, apperror.NewValidationError(MsgUsernameTooShort)
	}

	// 2. Pré-checagem de unicidade. A constraint do banco continua sendo a palavra final.
	if err := s.ensureAbsent(ctx, s.repo.FindByUsername, username, MsgUsernameTaken); err != nil {
		return domain.AuthResult{}, err
	}
	if err := s.ensureAbsent(ctx, s.repo.FindByEmail, email, MsgEmailTaken); err != nil {
		return domain.AuthResult{}, err
	}

	// 3. Hash e persistência
	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		s.logger.Error("Falha ao gerar hash da senha.", err)
		return domain.AuthResult{}, apperror.NewInternalError("failed to hash password", err)
	}

	user, err := s.repo.Save(ctx, domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		ProfileImage: ProfileImageFor(username),
	})
	if err != nil {
		return domain.AuthResult{}, err
	}

	// 4. Token
	tok, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		s.logger.Error("Falha ao gerar token após registro.", err)
		return domain.AuthResult{}, apperror.NewInternalError("failed to issue token", err)
	}

	s.logger.Info("Usuário registrado.", map[string]interface{}{"user_id": user.ID, "username": user.Username})
	return domain.AuthResult{User: user.Public(), Token: tok}, nil
}

// ensureAbsent devolve Conflict quando find encontra alguém.
func (s *Service) ensureAbsent(ctx context.Context, find func(context.Context, string) (domain.User, error), value, conflictMsg string) error {
	_, err := find(ctx, value)
	if err == nil {
		return apperror.NewConflictError(conflictMsg)
	}
	if apperror.IsNotFound(err) {
		return nil
	}
	return err
}

// Login autentica por email e senha.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if email == "" || req.Password == "" {
		return domain.AuthResult{}, apperror.NewValidationError(MsgAllFieldsRequired)
	}
	if !emailPattern.MatchString(email) {
		return domain.AuthResult{}, apperror.NewValidationError(MsgInvalidEmail)
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if apperror.IsNotFound(err) {
			s.logger.Debug("Login com email desconhecido.", nil)
			return domain.AuthResult{}, apperror.NewUnauthorizedError(apperror.ReasonUserNotFound, MsgUserNotFound)
		}
		return domain.AuthResult{}, err
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.logger.Info("Senha incorreta no login.", map[string]interface{}{"user_id": user.ID})
		return domain.AuthResult{}, apperror.NewUnauthorizedError(apperror.ReasonInvalidCredentials, MsgInvalidCredentials)
	}

	tok, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		s.logger.Error("Falha ao gerar token no login.", err)
		return domain.AuthResult{}, apperror.NewInternalError("failed to issue token", err)
	}

	return domain.AuthResult{User: user.Public(), Token: tok}, nil
}
