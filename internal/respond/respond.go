// Package respond содержит помощники для записи JSON-ответов.
package respond

import (
	"encoding/json"
	"net/http"
)

// ErrorBody описывает тело ответа с ошибкой.
type ErrorBody struct {
	Message string `json:"message"`
}

// JSON записывает значение v в формате JSON с указанным статусом.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error записывает ответ вида {"message": "..."}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Message: message})
}
