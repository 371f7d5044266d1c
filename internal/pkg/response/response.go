package response

import (
	"encoding/json"
	"net/http"

	"bookworm/internal/domain"
	apperror "bookworm/internal/errors"
	"bookworm/internal/pkg/logger"
)

// JSON escreve data como JSON com o status informado.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error traduz err para o corpo domain.ErrorResponse.
// 5xx vai para o log como erro com o detalhe; 4xx fica em debug.
func Error(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= http.StatusInternalServerError {
		log.With(map[string]interface{}{"method": r.Method, "path": r.URL.Path}).
			Error("Erro interno ao processar requisição.", err)
	} else {
		log.Debug("Requisição rejeitada.", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   status,
			"category": category,
		})
	}

	JSON(w, status, domain.ErrorResponse{
		Code:     status,
		Category: category,
		Message:  message,
	})
}
