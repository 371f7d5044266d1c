package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Book é a recomendação de livro compartilhada por um usuário.
// Nunca é editada: só criada e apagada pelo dono.
type Book struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Caption   string     `json:"caption"`
	Image     string     `json:"image"`
	Rating    int        `json:"rating"`
	UserID    string     `json:"userId"`
	CreatedAt time.Time  `json:"createdAt"`
	Owner     *BookOwner `json:"user,omitempty"`
}

// MarshalJSON repete o ID em "_id", chave usada pelo app mobile nas listas.
func (b Book) MarshalJSON() ([]byte, error) {
	type plain Book
	return json.Marshal(struct {
		plain
		LegacyID string `json:"_id"`
	}{plain(b), b.ID})
}

// BookOwner é o recorte público do dono exibido no feed.
type BookOwner struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	ProfileImage string `json:"profileImage"`
}

// BookInput representa o payload de upload de uma recomendação.
// Image é base64, opcionalmente no formato data URI.
type BookInput struct {
	Title   string `json:"title" example:"Dune"`
	Caption string `json:"caption" example:"Great"`
	Image   string `json:"image" example:"data:image/png;base64,iVBORw0KGgo="`
	Rating  int    `json:"rating" example:"5"`
}

// BookPage é uma página do feed global.
type BookPage struct {
	Books       []Book `json:"books"`
	CurrentPage int    `json:"currentPage"`
	TotalBooks  int    `json:"totalBooks"`
	TotalPages  int    `json:"totalPages"`
}

// BookList é a resposta do feed pessoal.
type BookList struct {
	Books []Book `json:"books"`
}

// BookCreated é a resposta do upload.
type BookCreated struct {
	Book    Book   `json:"book"`
	Message string `json:"message"`
}

// BookFilter define os parâmetros de paginação já normalizados.
type BookFilter struct {
	Page  int
	Limit int
}

// Offset calcula o deslocamento da página.
func (f BookFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// BookRepository é o contrato de persistência das recomendações.
type BookRepository interface {
	Save(ctx context.Context, book Book) (Book, error)
	FindByID(ctx context.Context, id string) (Book, error)
	FindPage(ctx context.Context, filter BookFilter) ([]Book, int, error)
	FindByOwner(ctx context.Context, userID string) ([]Book, error)
	Delete(ctx context.Context, id string, userID string) error
}

// BookService é o contrato da camada de negócio das recomendações.
type BookService interface {
	CreateBook(ctx context.Context, owner User, input BookInput) (Book, error)
	ListBooks(ctx context.Context, page, limit int) (BookPage, error)
	ListBooksByOwner(ctx context.Context, owner User) ([]Book, error)
	DeleteBook(ctx context.Context, owner User, id string) error
}
