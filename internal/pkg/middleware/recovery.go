package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	apperror "bookworm/internal/errors"
	"bookworm/internal/pkg/logger"
	"bookworm/internal/pkg/response"
)

// Recovery transforma um panic no handler em 500 e registra a stack.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.With(map[string]interface{}{
						"stack":  string(debug.Stack()),
						"method": r.Method,
						"path":   r.URL.Path,
					}).Error("Panic recuperado.", fmt.Errorf("%v", rec))

					response.Error(w, r, log, apperror.NewInternalError("panic", fmt.Errorf("%v", rec)))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
