package router

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "bookworm/docs" // registra o swag.Spec servido em /docs/
	"bookworm/internal/api/book"
	"bookworm/internal/api/user"
	"bookworm/internal/pkg/logger"
	"bookworm/internal/pkg/middleware"
)

// Config reúne o que o roteador recebe já inicializado por injeção de dependências.
type Config struct {
	UserHandler *user.Handler
	BookHandler *book.Handler
	// Auth é o auth gate aplicado às rotas de livros.
	Auth           func(http.HandlerFunc) http.HandlerFunc
	Logger         logger.Logger
	AllowedOrigins []string
}

// NewRouter configura e retorna o roteador HTTP principal com os middlewares globais.
func NewRouter(cfg Config) http.Handler {
	mux := http.NewServeMux()

	// --- 1. Health check e documentação ---
	mux.HandleFunc("GET /ping", PingHandler)
	mux.Handle("GET /docs/", httpSwagger.WrapHandler)

	// --- 2. Autenticação (públicas) ---
	mux.HandleFunc("POST /api/auth/register", cfg.UserHandler.RegisterUserHandler)
	mux.HandleFunc("POST /api/auth/login", cfg.UserHandler.LoginUserHandler)

	// --- 3. Livros (protegidas) ---
	mux.HandleFunc("POST /api/books/upload", cfg.Auth(cfg.BookHandler.UploadBookHandler))
	mux.HandleFunc("GET /api/books/getbook", cfg.Auth(cfg.BookHandler.GetBooksHandler))
	mux.HandleFunc("GET /api/books/recommend", cfg.Auth(cfg.BookHandler.RecommendedBooksHandler))
	mux.HandleFunc("DELETE /api/books/delete/{id}", cfg.Auth(cfg.BookHandler.DeleteBookHandler))

	// --- 4. Middlewares globais ---
	var handler http.Handler = mux
	handler = middleware.CORS(cfg.AllowedOrigins)(handler)
	handler = middleware.Logging(cfg.Logger)(handler)
	handler = middleware.Recovery(cfg.Logger)(handler)
	return handler
}

// PingHandler é uma função utilitária para o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}
