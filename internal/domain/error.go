package domain

// ErrorResponse é a estrutura padronizada para respostas de erro na API.
// @Description Estrutura padronizada para respostas de erro na API.
type ErrorResponse struct {
	Code     int    `json:"code" example:"400"`
	Category string `json:"category" example:"VALIDATION_ERROR"`
	Message  string `json:"message" example:"All fields are required"`
}

// MessageResponse é a resposta de sucesso que carrega apenas uma mensagem.
type MessageResponse struct {
	Message string `json:"message" example:"Book deleted successfully"`
}
