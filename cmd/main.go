package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	// Nossos pacotes de infraestrutura e utilitários
	"bookworm/config"
	"bookworm/internal/pkg/cache"
	"bookworm/internal/pkg/database"
	"bookworm/internal/pkg/hasher"
	"bookworm/internal/pkg/logger"
	"bookworm/internal/pkg/middleware"
	"bookworm/internal/pkg/storage"
	"bookworm/internal/pkg/token"

	// Camadas para Injeção de Dependências
	"bookworm/internal/api/book"
	"bookworm/internal/api/router"
	"bookworm/internal/api/user"
	"bookworm/internal/repository/bookrepo"
	"bookworm/internal/repository/userrepo"
	"bookworm/internal/service/bookservice"
	"bookworm/internal/service/userservice"
)

func main() {
	// 0. CARREGAR VARIÁVEIS DE AMBIENTE (.env)
	// Sem .env seguimos com o ambiente do sistema (ex: Docker).
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ Aviso: Arquivo .env não encontrado. Carregando configs apenas do ambiente do sistema.")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Erro de Configuração: %v", err)
	}
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("Configurações carregadas.", map[string]interface{}{"env": cfg.Environment})

	// 1. Infraestrutura

	// A. Banco de Dados (PostgreSQL)
	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Falha ao conectar ao banco de dados.", err)
	}
	defer db.Close()
	log.Info("Conexão PostgreSQL estabelecida.", nil)

	// B. Cache (Redis). Opcional: sem ele o auth gate vai direto ao banco.
	cacheClient, err := cache.NewRedisClient(cfg.RedisAddr)
	if err != nil {
		log.Warn("Redis indisponível, seguindo sem cache de identidade.", map[string]interface{}{"addr": cfg.RedisAddr, "error": err.Error()})
		_ = cacheClient.Close()
		cacheClient = nil
	} else {
		defer cacheClient.Close()
		log.Info("Conexão Redis estabelecida.", nil)
	}

	// C. Object store das capas
	images, err := storage.NewS3Store(context.Background(), storage.Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		PublicBaseURL:   cfg.S3PublicBaseURL,
		UsePathStyle:    cfg.S3UsePathStyle,
	})
	if err != nil {
		log.Fatal("Falha ao configurar o object store.", err)
	}

	// D. Segurança
	tokenSvc := token.NewService(cfg.JWTSecretKey, cfg.TokenExpiry)
	passwordHasher := hasher.NewBcrypt(cfg.BcryptCost)

	// 2. INJEÇÃO DE DEPENDÊNCIAS
	// Ordem: Repository -> Service -> Handler

	userRepo := userrepo.NewUserRepository(db, cacheClient, cfg.DBTimeout, cfg.CacheTTL, log)
	bookRepo := bookrepo.NewBookRepository(db, cfg.DBTimeout, log)

	userSvc := userservice.NewService(userRepo, passwordHasher, tokenSvc, log)
	bookSvc := bookservice.NewService(bookRepo, images, bookservice.Config{
		DefaultPageSize: cfg.PageSizeDefault,
		MaxPageSize:     cfg.PageSizeMax,
	}, log)

	userHandler := user.NewHandler(userSvc, log)
	bookHandler := book.NewHandler(bookSvc, log, cfg.MaxUploadBytes)
	log.Debug("Camadas inicializadas.", nil)

	// 3. Roteador
	r := router.NewRouter(router.Config{
		UserHandler:    userHandler,
		BookHandler:    bookHandler,
		Auth:           middleware.NewAuthMiddleware(tokenSvc, userRepo, log),
		Logger:         log,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 4. Execução e Graceful Shutdown
	go func() {
		log.Info("Servidor Bookworm ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Servidor falhou.", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Sinal de encerramento recebido. Desligando servidor...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Desligamento do servidor forçado.", err)
	}

	log.Info("Servidor encerrado com sucesso.", nil)
}
