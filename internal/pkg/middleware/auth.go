package middleware

import (
	"context"
	"net/http"
	"strings"

	"bookworm/internal/domain"
	apperror "bookworm/internal/errors"
	"bookworm/internal/pkg/logger"
	"bookworm/internal/pkg/response"
)

// Mensagens de 401 do auth gate.
const (
	MsgNotAuthenticated = "User not Authenticated"
	MsgInvalidToken     = "Token is Invalid or Expired"
	MsgUnknownIdentity  = "Token is not valid"
)

// ContextKey é o tipo das chaves que este pacote grava no contexto.
type ContextKey int

const (
	UserKey ContextKey = iota
)

// TokenValidator define o contrato de validação necessário para o middleware.
type TokenValidator interface {
	ValidateToken(tokenString string) (string, error)
}

// IdentityLookup resolve o id do token para o usuário atual.
type IdentityLookup interface {
	FindByID(ctx context.Context, id string) (domain.User, error)
}

// TokenExtractor tira o token da requisição; "" quando ausente.
type TokenExtractor func(r *http.Request) string

// HeaderExtractor lê o token cru de um header.
func HeaderExtractor(name string) TokenExtractor {
	return func(r *http.Request) string {
		return strings.TrimSpace(r.Header.Get(name))
	}
}

// BearerExtractor lê "Authorization: Bearer <token>", sem diferenciar maiúsculas no esquema.
func BearerExtractor() TokenExtractor {
	return func(r *http.Request) string {
		scheme, tok, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(tok)
	}
}

// DefaultExtractors é a ordem usada pelo router: header "token" e depois Bearer.
func DefaultExtractors() []TokenExtractor {
	return []TokenExtractor{HeaderExtractor("token"), BearerExtractor()}
}

// NewAuthMiddleware valida o token, resolve o usuário e o anexa ao contexto.
// Sem extractors informados, usa DefaultExtractors.
func NewAuthMiddleware(tokens TokenValidator, users IdentityLookup, log logger.Logger, extractors ...TokenExtractor) func(next http.HandlerFunc) http.HandlerFunc {
	if len(extractors) == 0 {
		extractors = DefaultExtractors()
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			// 1. Extrair o token
			tokenString := ""
			for _, extract := range extractors {
				if tokenString = extract(r); tokenString != "" {
					break
				}
			}
			if tokenString == "" {
				response.Error(w, r, log, apperror.NewUnauthorizedError(apperror.ReasonMissingToken, MsgNotAuthenticated))
				return
			}

			// 2. Validar o token
			userID, err := tokens.ValidateToken(tokenString)
			if err != nil {
				log.Debug("Token rejeitado.", map[string]interface{}{"path": r.URL.Path, "error": err.Error()})
				response.Error(w, r, log, apperror.NewUnauthorizedError(apperror.ReasonInvalidToken, MsgInvalidToken))
				return
			}

			// 3. Resolver a identidade atual
			user, err := users.FindByID(r.Context(), userID)
			if err != nil {
				if apperror.IsNotFound(err) {
					response.Error(w, r, log, apperror.NewUnauthorizedError(apperror.ReasonUnknownIdentity, MsgUnknownIdentity))
					return
				}
				response.Error(w, r, log, err)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	}
}

// UserFromContext devolve o usuário anexado pelo auth gate.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(UserKey).(domain.User)
	return user, ok
}
