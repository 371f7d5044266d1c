package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrForeignObject indica uma URL que não pertence a este bucket.
var ErrForeignObject = errors.New("objeto não pertence ao storage configurado")

// keyPrefix agrupa as capas de livros no bucket.
const keyPrefix = "books"

// Config reúne os parâmetros do object store S3-compatível (AWS, R2, MinIO).
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	UsePathStyle    bool
}

// objectAPI é o recorte do *s3.Client que o Store usa.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store grava e remove imagens num bucket S3.
type Store struct {
	api           objectAPI
	bucket        string
	publicBaseURL string
	now           func() time.Time
}

// NewS3Store monta o cliente S3 a partir da configuração.
func NewS3Store(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("S3 bucket não configurado")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("falha ao carregar configuração AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	publicBase := cfg.PublicBaseURL
	if publicBase == "" {
		publicBase = defaultPublicBase(cfg)
	}

	return newStore(client, cfg.Bucket, publicBase), nil
}

func newStore(api objectAPI, bucket, publicBaseURL string) *Store {
	return &Store{
		api:           api,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}
}

// defaultPublicBase monta a URL pública quando S3_PUBLIC_BASE_URL não foi informado.
func defaultPublicBase(cfg Config) string {
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

// Upload grava a imagem e devolve a URL pública durável.
func (s *Store) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	key := s.newKey(contentType)

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("falha ao enviar objeto %s: %w", key, err)
	}

	return s.publicBaseURL + "/" + key, nil
}

// Delete remove o objeto referenciado pela URL pública.
func (s *Store) Delete(ctx context.Context, objectURL string) error {
	key, ok := s.KeyFromURL(objectURL)
	if !ok {
		return ErrForeignObject
	}

	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("falha ao remover objeto %s: %w", key, err)
	}
	return nil
}

// KeyFromURL deriva a chave do objeto a partir da URL pública.
func (s *Store) KeyFromURL(objectURL string) (string, bool) {
	prefix := s.publicBaseURL + "/"
	if !strings.HasPrefix(objectURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(objectURL, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

// newKey gera books/AAAA/MM/DD/<uuid><ext>.
func (s *Store) newKey(contentType string) string {
	d := s.now().UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s%s", keyPrefix, d.Year(), d.Month(), d.Day(), uuid.NewString(), extensionFor(contentType))
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
