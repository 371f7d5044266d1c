package bookrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"bookworm/internal/domain"
	apperror "bookworm/internal/errors"
	"bookworm/internal/pkg/logger"
)

// MsgBookNotFound é a mensagem de 404 exposta ao cliente.
const MsgBookNotFound = "Book not found"

const (
	insertSQL = `
        INSERT INTO books (id, title, caption, image, rating, user_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	selectByIDSQL = `
        SELECT id, title, caption, image, rating, user_id, created_at
        FROM books
        WHERE id = $1`

	countSQL = `SELECT COUNT(*) FROM books`

	// O desempate por id mantém a paginação estável quando created_at coincide.
	selectPageSQL = `
        SELECT b.id, b.title, b.caption, b.image, b.rating, b.user_id, b.created_at,
               u.username, u.profile_image
        FROM books b
        JOIN users u ON u.id = b.user_id
        ORDER BY b.created_at DESC, b.id DESC
        LIMIT $1 OFFSET $2`

	selectByOwnerSQL = `
        SELECT b.id, b.title, b.caption, b.image, b.rating, b.user_id, b.created_at,
               u.username, u.profile_image
        FROM books b
        JOIN users u ON u.id = b.user_id
        WHERE b.user_id = $1
        ORDER BY b.created_at DESC, b.id DESC`

	deleteSQL = `
        DELETE FROM books
        WHERE id = $1 AND user_id = $2`
)

// BookRepository implementa domain.BookRepository sobre PostgreSQL.
type BookRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewBookRepository cria e retorna uma nova instância do Repositório de Livros.
func NewBookRepository(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *BookRepository {
	return &BookRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

// Save insere uma nova recomendação.
func (r *BookRepository) Save(ctx context.Context, book domain.Book) (domain.Book, error) {
	r.logger.Debug("Iniciando Save de livro no repositório.", map[string]interface{}{"user_id": book.UserID})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	book.CreatedAt = time.Now().UTC()

	_, err := r.DB.ExecContext(ctxTimeout, insertSQL,
		book.ID, book.Title, book.Caption, book.Image, book.Rating, book.UserID, book.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Falha ao inserir livro no DB.", err)
		return domain.Book{}, apperror.NewDBError("failed to insert book", err)
	}

	r.logger.Info("Livro salvo com sucesso.", map[string]interface{}{"id": book.ID, "user_id": book.UserID})
	return book, nil
}

// FindByID busca um livro pelo ID. IDs que não são UUID não existem.
func (r *BookRepository) FindByID(ctx context.Context, id string) (domain.Book, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Book{}, apperror.NewNotFoundError(MsgBookNotFound)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var book domain.Book
	err := r.DB.QueryRowContext(ctxTimeout, selectByIDSQL, id).Scan(
		&book.ID, &book.Title, &book.Caption, &book.Image, &book.Rating, &book.UserID, &book.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		r.logger.Debug("Livro não encontrado.", map[string]interface{}{"id": id})
		return domain.Book{}, apperror.NewNotFoundError(MsgBookNotFound)
	}
	if err != nil {
		r.logger.Error("Falha ao buscar livro no DB.", err)
		return domain.Book{}, apperror.NewDBError("failed to find book", err)
	}

	return book, nil
}

// FindPage devolve uma página do feed e o total de livros.
// Contagem e página são lidas na mesma transação somente-leitura.
func (r *BookRepository) FindPage(ctx context.Context, filter domain.BookFilter) ([]domain.Book, int, error) {
	r.logger.Debug("Iniciando FindPage no repositório.", map[string]interface{}{"page": filter.Page, "limit": filter.Limit})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		r.logger.Error("Falha ao iniciar transação de leitura do feed.", err)
		return nil, 0, apperror.NewDBError("failed to start tx", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctxTimeout, countSQL).Scan(&total); err != nil {
		r.logger.Error("Falha ao contar livros.", err)
		return nil, 0, apperror.NewDBError("failed to count books", err)
	}

	rows, err := tx.QueryContext(ctxTimeout, selectPageSQL, filter.Limit, filter.Offset())
	if err != nil {
		r.logger.Error("Falha ao executar query do feed.", err)
		return nil, 0, apperror.NewDBError("failed to list books", err)
	}
	books, err := scanBooksWithOwner(rows)
	if err != nil {
		r.logger.Error("Falha ao mapear livros do feed.", err)
		return nil, 0, apperror.NewDBError("failed to scan books", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, apperror.NewDBError("failed to commit tx", err)
	}

	r.logger.Debug("FindPage concluído.", map[string]interface{}{"returned": len(books), "total": total})
	return books, total, nil
}

// FindByOwner devolve todos os livros de um usuário, do mais novo ao mais antigo.
func (r *BookRepository) FindByOwner(ctx context.Context, userID string) ([]domain.Book, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	rows, err := r.DB.QueryContext(ctxTimeout, selectByOwnerSQL, userID)
	if err != nil {
		r.logger.Error("Falha ao executar FindByOwner.", err)
		return nil, apperror.NewDBError("failed to list books by owner", err)
	}
	books, err := scanBooksWithOwner(rows)
	if err != nil {
		r.logger.Error("Falha ao mapear livros do usuário.", err)
		return nil, apperror.NewDBError("failed to scan books", err)
	}
	return books, nil
}

// Delete remove o livro do dono informado. Zero linhas afetadas é NotFound,
// o que cobre dois deletes concorrentes do mesmo livro.
func (r *BookRepository) Delete(ctx context.Context, id string, userID string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	result, err := r.DB.ExecContext(ctxTimeout, deleteSQL, id, userID)
	if err != nil {
		r.logger.Error("Falha ao deletar livro do DB.", err)
		return apperror.NewDBError("failed to delete book", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Falha ao verificar linhas afetadas após Delete.", err)
		return apperror.NewDBError("failed to check affected rows", err)
	}

	if rowsAffected == 0 {
		r.logger.Info("Livro não encontrado para exclusão.", map[string]interface{}{"id": id})
		return apperror.NewNotFoundError(MsgBookNotFound)
	}

	r.logger.Info("Livro deletado com sucesso.", map[string]interface{}{"id": id, "user_id": userID})
	return nil
}

// scanBooksWithOwner consome rows e sempre as fecha. Nunca devolve slice nil.
func scanBooksWithOwner(rows *sql.Rows) ([]domain.Book, error) {
	defer rows.Close()

	books := make([]domain.Book, 0)
	for rows.Next() {
		var b domain.Book
		owner := &domain.BookOwner{}
		if err := rows.Scan(
			&b.ID, &b.Title, &b.Caption, &b.Image, &b.Rating, &b.UserID, &b.CreatedAt,
			&owner.Username, &owner.ProfileImage,
		); err != nil {
			return nil, err
		}
		owner.ID = b.UserID
		b.Owner = owner
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}
