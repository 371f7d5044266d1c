package userrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bookworm/internal/domain"
	apperror "bookworm/internal/errors"
	"bookworm/internal/pkg/cache"
	"bookworm/internal/pkg/database"
	"bookworm/internal/pkg/logger"
)

// Mensagens de conflito expostas ao cliente.
const (
	MsgUsernameTaken = "Username already exists"
	MsgEmailTaken    = "Email already exists"
)

// Nomes das constraints criadas em sql/00001_create_users.sql.
const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

// userCacheKey guarda a projeção pública usada pelo auth gate.
const userCacheKey = "user:%s"

const (
	insertSQL = `INSERT INTO users (id, username, email, password_hash, profile_image, created_at)
                  VALUES ($1, $2, $3, $4, $5, $6)`

	selectWithHashSQL = `SELECT id, username, email, password_hash, profile_image, created_at FROM users`

	// FindByID nunca carrega o hash.
	selectByIDSQL = `SELECT id, username, email, profile_image, created_at FROM users WHERE id = $1`
)

// UserRepository implementa a interface domain.UserRepository.
type UserRepository struct {
	DB        *sql.DB
	Cache     cache.Client
	DBTimeout time.Duration
	CacheTTL  time.Duration
	logger    logger.Logger
}

// NewUserRepository cria uma nova instância do UserRepository, injetando o DB e o cache.
// cacheClient pode ser nil: nesse caso FindByID vai sempre ao banco.
func NewUserRepository(db *sql.DB, cacheClient cache.Client, dbTimeout, cacheTTL time.Duration, logger logger.Logger) *UserRepository {
	return &UserRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		CacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Save insere um novo usuário. A unicidade de username e email é garantida
// pelas constraints do banco; a violação vira ConflictError.
func (r *UserRepository) Save(ctx context.Context, user domain.User) (domain.User, error) {
	r.logger.Debug("Iniciando Save de usuário no repositório.", map[string]interface{}{"username": user.Username})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()

	_, err := r.DB.ExecContext(
		ctxTimeout,
		insertSQL,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.ProfileImage,
		user.CreatedAt,
	)
	if err != nil {
		if constraint, ok := database.UniqueViolation(err); ok {
			r.logger.Info("Insert de usuário rejeitado por unicidade.", map[string]interface{}{"constraint": constraint})
			switch constraint {
			case usernameConstraint:
				return domain.User{}, apperror.NewConflictError(MsgUsernameTaken)
			case emailConstraint:
				return domain.User{}, apperror.NewConflictError(MsgEmailTaken)
			default:
				return domain.User{}, apperror.NewConflictError("User already exists")
			}
		}
		r.logger.Error("Falha ao inserir usuário no DB.", err)
		return domain.User{}, apperror.NewDBError("failed to insert user", err)
	}

	r.logger.Info("Usuário salvo com sucesso no repositório.", map[string]interface{}{"user_id": user.ID, "username": user.Username})
	return user, nil
}

// FindByEmail busca um usuário pelo endereço de e-mail, incluindo o hash.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.findOneWithHash(ctx, "email", email)
}

// FindByUsername busca um usuário pelo username, incluindo o hash.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.findOneWithHash(ctx, "username", username)
}

// findOneWithHash aceita apenas colunas fixas do código, nunca entrada do usuário.
func (r *UserRepository) findOneWithHash(ctx context.Context, column, value string) (domain.User, error) {
	r.logger.Debug("Buscando usuário no repositório.", map[string]interface{}{"column": column})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := fmt.Sprintf("%s WHERE %s = $1", selectWithHashSQL, column)

	var user domain.User
	err := r.DB.QueryRowContext(ctxTimeout, query, value).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.ProfileImage,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug("Usuário não encontrado no DB.", map[string]interface{}{"column": column})
			return domain.User{}, apperror.NewNotFoundError("User not found")
		}
		r.logger.Error("Falha ao buscar usuário no DB.", err)
		return domain.User{}, apperror.NewDBError(fmt.Sprintf("failed to find user by %s", column), err)
	}

	return user, nil
}

// FindByID busca a projeção pública do usuário (sem hash) usando Cache-Aside.
// Falhas do cache nunca derrubam a busca: caem para o banco.
func (r *UserRepository) FindByID(ctx context.Context, id string) (domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.User{}, apperror.NewNotFoundError("User not found")
	}

	key := fmt.Sprintf(userCacheKey, id)

	// --- 1. Cache-Aside (READ) ---
	if r.Cache != nil {
		cached, err := r.Cache.Get(ctx, key)
		if err == nil {
			var user domain.User
			if json.Unmarshal([]byte(cached), &user) == nil {
				return user, nil
			}
			r.logger.Warn("Entrada de cache de usuário corrompida, consultando o DB.", map[string]interface{}{"user_id": id})
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn("Falha ao ler usuário do cache.", map[string]interface{}{"user_id": id, "error": err.Error()})
		}
	}

	// --- 2. Banco de Dados ---
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var user domain.User
	err := r.DB.QueryRowContext(ctxTimeout, selectByIDSQL, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.ProfileImage,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, apperror.NewNotFoundError("User not found")
		}
		r.logger.Error("Falha ao buscar usuário por ID no DB.", err)
		return domain.User{}, apperror.NewDBError("failed to find user by id", err)
	}

	// --- 3. Cache-Aside (WRITE) ---
	if r.Cache != nil {
		if payload, err := json.Marshal(user); err == nil {
			if err := r.Cache.Set(ctx, key, payload, r.CacheTTL); err != nil {
				r.logger.Warn("Falha ao gravar usuário no cache.", map[string]interface{}{"user_id": id, "error": err.Error()})
			}
		}
	}

	return user, nil
}
