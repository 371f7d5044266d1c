package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger define a interface para logging estruturado.
// A aplicação (Handler, Service, Repository) deve depender apenas desta interface.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error)
	Fatal(msg string, err error)
	// With devolve um logger filho que sempre inclui os campos informados.
	With(fields map[string]interface{}) Logger
}

// levelFatal fica acima de Error para que nunca seja filtrado.
const levelFatal = slog.Level(12)

// exit é substituível em testes.
var exit = os.Exit

// SlogLogger implementa Logger sobre log/slog com saída JSON.
type SlogLogger struct {
	l *slog.Logger
}

// NewLogger cria e retorna uma nova instância do Logger escrevendo em stdout.
// Esta função é chamada no main.go.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(os.Stdout, level)
}

// NewLoggerWithWriter cria um Logger JSON escrevendo em w.
func NewLoggerWithWriter(w io.Writer, level string) Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == levelFatal {
					a.Value = slog.StringValue("FATAL")
				}
			}
			return a
		},
	})
	return &SlogLogger{l: slog.New(handler)}
}

// parseLevel traduz o LOG_LEVEL da configuração; desconhecido vira info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "fatal":
		return levelFatal
	default:
		return slog.LevelInfo
	}
}

func attrs(fields map[string]interface{}) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

func (s *SlogLogger) Debug(msg string, fields map[string]interface{}) {
	s.l.Debug(msg, attrs(fields)...)
}

func (s *SlogLogger) Info(msg string, fields map[string]interface{}) {
	s.l.Info(msg, attrs(fields)...)
}

func (s *SlogLogger) Warn(msg string, fields map[string]interface{}) {
	s.l.Warn(msg, attrs(fields)...)
}

func (s *SlogLogger) Error(msg string, err error) {
	if err != nil {
		s.l.Error(msg, "error", err.Error())
		return
	}
	s.l.Error(msg)
}

// Fatal registra e encerra o processo.
func (s *SlogLogger) Fatal(msg string, err error) {
	if err != nil {
		s.l.Log(context.Background(), levelFatal, msg, "error", err.Error())
	} else {
		s.l.Log(context.Background(), levelFatal, msg)
	}
	exit(1)
}

func (s *SlogLogger) With(fields map[string]interface{}) Logger {
	return &SlogLogger{l: s.l.With(attrs(fields)...)}
}
