package book

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"bookworm/internal/domain"
	apperror "bookworm/internal/errors"
	"bookworm/internal/pkg/logger"
	"bookworm/internal/pkg/middleware"
	"bookworm/internal/pkg/response"
)

const (
	MsgBookCreated = "Book created successfully"
	MsgBookDeleted = "Book deleted successfully"
)

// Handler agrupa todos os métodos de Handler de livros.
type Handler struct {
	Service        domain.BookService
	Logger         logger.Logger
	MaxUploadBytes int64
}

// NewHandler cria uma nova instância do Handler. maxUploadBytes <= 0 desliga o limite.
func NewHandler(svc domain.BookService, log logger.Logger, maxUploadBytes int64) *Handler {
	return &Handler{
		Service:        svc,
		Logger:         log,
		MaxUploadBytes: maxUploadBytes,
	}
}

// currentUser lê o usuário do auth gate. A ausência indica rota montada sem o gate.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.Logger.Warn("Rota protegida sem usuário no contexto.", map[string]interface{}{"path": r.URL.Path})
		response.Error(w, r, h.Logger, apperror.NewUnauthorizedError(apperror.ReasonMissingToken, middleware.MsgNotAuthenticated))
		return domain.User{}, false
	}
	return user, true
}

// UploadBookHandler lida com a requisição POST /api/books/upload.
// @Summary Publica uma recomendação
// @Description A imagem vai em base64 (ou data URI) e é enviada ao object store antes de salvar.
// @Tags books
// @Accept json
// @Produce json
// @Security TokenHeader
// @Param book body domain.BookInput true "título, legenda, imagem e nota"
// @Success 201 {object} domain.BookCreated
// @Failure 400 {object} domain.ErrorResponse "Campos ausentes ou imagem inválida"
// @Failure 401 {object} domain.ErrorResponse
// @Failure 413 {object} domain.ErrorResponse "Payload maior que o limite"
// @Failure 500 {object} domain.ErrorResponse
// @Router /books/upload [post]
func (h *Handler) UploadBookHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}

	var input domain.BookInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Logger.Info("Upload acima do limite.", map[string]interface{}{"user_id": user.ID, "limit": tooLarge.Limit})
			response.JSON(w, http.StatusRequestEntityTooLarge, domain.ErrorResponse{
				Code:     http.StatusRequestEntityTooLarge,
				Category: "PAYLOAD_TOO_LARGE",
				Message:  "Payload too large",
			})
			return
		}
		response.Error(w, r, h.Logger, apperror.NewValidationError("Invalid JSON payload"))
		return
	}

	book, err := h.Service.CreateBook(r.Context(), user, input)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	response.JSON(w, http.StatusCreated, domain.BookCreated{Book: book, Message: MsgBookCreated})
}

// GetBooksHandler lida com a requisição GET /api/books/getbook.
// @Summary Feed paginado
// @Description Todas as recomendações, da mais nova para a mais antiga, com o dono de cada uma.
// @Tags books
// @Produce json
// @Security TokenHeader
// @Param page query int false "Página (padrão 1)"
// @Param limit query int false "Itens por página (padrão 5)"
// @Success 200 {object} domain.BookPage
// @Failure 401 {object} domain.ErrorResponse
// @Failure 500 {object} domain.ErrorResponse
// @Router /books/getbook [get]
func (h *Handler) GetBooksHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentUser(w, r); !ok {
		return
	}

	// Valores não numéricos caem no padrão do serviço.
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.Service.ListBooks(r.Context(), page, limit)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// RecommendedBooksHandler lida com a requisição GET /api/books/recommend.
// @Summary Recomendações do próprio usuário
// @Tags books
// @Produce json
// @Security TokenHeader
// @Success 200 {object} domain.BookList
// @Failure 401 {object} domain.ErrorResponse
// @Failure 500 {object} domain.ErrorResponse
// @Router /books/recommend [get]
func (h *Handler) RecommendedBooksHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	books, err := h.Service.ListBooksByOwner(r.Context(), user)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	response.JSON(w, http.StatusOK, domain.BookList{Books: books})
}

// DeleteBookHandler lida com a requisição DELETE /api/books/delete/{id}.
// @Summary Apaga uma recomendação própria
// @Tags books
// @Produce json
// @Security TokenHeader
// @Param id path string true "ID do livro"
// @Success 200 {object} domain.MessageResponse
// @Failure 401 {object} domain.ErrorResponse
// @Failure 403 {object} domain.ErrorResponse "Livro de outro usuário"
// @Failure 404 {object} domain.ErrorResponse
// @Failure 500 {object} domain.ErrorResponse
// @Router /books/delete/{id} [delete]
func (h *Handler) DeleteBookHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteBook(r.Context(), user, r.PathValue("id")); err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	response.JSON(w, http.StatusOK, domain.MessageResponse{Message: MsgBookDeleted})
}
