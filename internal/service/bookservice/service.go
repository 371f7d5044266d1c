package bookservice

import (
	"context"
	"encoding/base64"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"bookworm/internal/domain"
	apperror "bookworm/internal/errors"
	"bookworm/internal/pkg/logger"
	"bookworm/internal/pkg/storage"
)

// Mensagens expostas ao cliente.
const (
	MsgAllFieldsRequired = "All fields are required"
	MsgInvalidImage      = "Invalid image payload"
	MsgBookNotFound      = "Book not found"
	MsgNotAuthorized     = "You are not authorized"
)

const (
	defaultPage     = 1
	defaultPageSize = 5
	maxPageSize     = 50

	imageCleanupTimeout = 10 * time.Second
)

// ImageStore é o armazenamento externo das capas (internal/pkg/storage).
type ImageStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// Config ajusta a paginação do feed.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Service implementa domain.BookService.
type Service struct {
	repo   domain.BookRepository
	images ImageStore
	cfg    Config
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Livros.
func NewService(repo domain.BookRepository, images ImageStore, cfg Config, logger logger.Logger) *Service {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = defaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = maxPageSize
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = cfg.MaxPageSize
	}
	return &Service{repo: repo, images: images, cfg: cfg, logger: logger}
}

// --- Implementação: CreateBook ---

// CreateBook sobe a imagem e só então persiste o livro.
func (s *Service) CreateBook(ctx context.Context, owner domain.User, input domain.BookInput) (domain.Book, error) {
	title := strings.TrimSpace(input.Title)
	caption := strings.TrimSpace(input.Caption)

	// 1. Validação
	if title == "" || caption == "" || strings.TrimSpace(input.Image) == "" || input.Rating == 0 {
		return domain.Book{}, apperror.NewValidationError(MsgAllFieldsRequired)
	}

	data, contentType, err := DecodeImage(input.Image)
	if err != nil {
		return domain.Book{}, apperror.NewValidationError(MsgInvalidImage)
	}

	// 2. Upload (falha aqui não deixa registro órfão)
	imageURL, err := s.images.Upload(ctx, data, contentType)
	if err != nil {
		s.logger.Error("Falha ao enviar imagem ao object store.", err)
		return domain.Book{}, apperror.NewUpstreamError("image upload failed", err)
	}

	// 3. Persistência
	book, err := s.repo.Save(ctx, domain.Book{
		Title:   title,
		Caption: caption,
		Image:   imageURL,
		Rating:  input.Rating,
		UserID:  owner.ID,
	})
	if err != nil {
		// A compensação sobrevive ao cancelamento da requisição.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), imageCleanupTimeout)
		defer cancel()
		s.removeImage(cleanupCtx, "", imageURL)
		return domain.Book{}, err
	}

	book.Owner = &domain.BookOwner{ID: owner.ID, Username: owner.Username, ProfileImage: owner.ProfileImage}
	s.logger.Info("Livro criado.", map[string]interface{}{"book_id": book.ID, "user_id": owner.ID})
	return book, nil
}

// DecodeImage aceita base64 puro ou data URI. O content type vem do prefixo
// do data URI ou, na falta dele, da detecção pelos primeiros bytes.
func DecodeImage(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	contentType := ""

	if strings.HasPrefix(payload, "data:") {
		meta, body, ok := strings.Cut(payload, ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return nil, "", errors.New("data URI sem base64")
		}
		contentType = strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", err
		}
	}
	if len(data) == 0 {
		return nil, "", errors.New("imagem vazia")
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// --- Implementação: ListBooks ---

// ListBooks devolve uma página do feed global.
func (s *Service) ListBooks(ctx context.Context, page, limit int) (domain.BookPage, error) {
	if page <= 0 {
		page = defaultPage
	}
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	// (page-1)*limit não pode estourar int.
	if maxPage := math.MaxInt / limit; page > maxPage {
		page = maxPage
	}

	books, total, err := s.repo.FindPage(ctx, domain.BookFilter{Page: page, Limit: limit})
	if err != nil {
		return domain.BookPage{}, err
	}
	if books == nil {
		books = []domain.Book{}
	}

	return domain.BookPage{
		Books:       books,
		CurrentPage: page,
		TotalBooks:  total,
		TotalPages:  int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// ListBooksByOwner devolve todas as recomendações do usuário.
func (s *Service) ListBooksByOwner(ctx context.Context, owner domain.User) ([]domain.Book, error) {
	books, err := s.repo.FindByOwner(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []domain.Book{}
	}
	return books, nil
}

// --- Implementação: DeleteBook ---

// DeleteBook apaga um livro do próprio usuário.
func (s *Service) DeleteBook(ctx context.Context, owner domain.User, id string) error {
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if book.UserID != owner.ID {
		s.logger.Info("Tentativa de apagar livro de outro usuário.", map[string]interface{}{"book_id": id, "user_id": owner.ID})
		return apperror.NewForbiddenError(MsgNotAuthorized)
	}

	s.removeImage(ctx, book.ID, book.Image)

	if err := s.repo.Delete(ctx, book.ID, owner.ID); err != nil {
		return err
	}

	s.logger.Info("Livro apagado.", map[string]interface{}{"book_id": id, "user_id": owner.ID})
	return nil
}

// removeImage é best-effort: falhas só vão para o log.
func (s *Service) removeImage(ctx context.Context, bookID, imageURL string) {
	if imageURL == "" {
		return
	}
	err := s.images.Delete(ctx, imageURL)
	if err == nil || errors.Is(err, storage.ErrForeignObject) {
		return
	}
	s.logger.With(map[string]interface{}{"book_id": bookID, "image": imageURL}).
		Error("Falha ao remover imagem do object store.", err)
}
