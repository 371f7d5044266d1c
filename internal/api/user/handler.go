package user

import (
	"encoding/json"
	"net/http"

	"bookworm/internal/domain"
	apperror "bookworm/internal/errors"
	"bookworm/internal/pkg/logger"
	"bookworm/internal/pkg/response"
)

// Handler agrupa os handlers de autenticação.
type Handler struct {
	Service domain.UserService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc domain.UserService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

// RegisterUserHandler lida com a requisição POST /api/auth/register.
// @Summary Registra um novo usuário
// @Description Cria a conta, gera o avatar e devolve o usuário público com um token de sessão.
// @Tags auth
// @Accept json
// @Produce json
// @Param registration body domain.UserRegistration true "username, email e senha"
// @Success 201 {object} domain.AuthResult "Usuário criado"
// @Failure 400 {object} domain.ErrorResponse "Validação ou username/email já usados"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Router /auth/register [post]
func (h *Handler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var reg domain.UserRegistration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		response.Error(w, r, h.Logger, apperror.NewValidationError("Invalid JSON payload"))
		return
	}

	result, err := h.Service.Register(r.Context(), reg)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	response.JSON(w, http.StatusCreated, result)
}

// LoginUserHandler lida com a requisição POST /api/auth/login.
// @Summary Autentica um usuário
// @Description Recebe email e senha e devolve o usuário público com um JWT.
// @Tags auth
// @Accept json
// @Produce json
// @Param login body domain.LoginRequest true "email e senha"
// @Success 200 {object} domain.AuthResult "Autenticado"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido"
// @Failure 401 {object} domain.ErrorResponse "Usuário inexistente ou senha incorreta"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Router /auth/login [post]
func (h *Handler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, h.Logger, apperror.NewValidationError("Invalid JSON payload"))
		return
	}

	result, err := h.Service.Login(r.Context(), req)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}
