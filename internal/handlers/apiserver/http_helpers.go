package apiserver

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorResponse is the generic error body of the API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSONResponse writes payload as JSON with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("error: writing JSON response: %v", err)
	}
}

// writeJSONError writes an ErrorResponse with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}
