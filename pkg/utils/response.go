package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondJSON encodes payload as the response body. An encoding failure can
// only be logged: the status line is already on the wire.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// RespondError answers with the {"error": message} shape.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}
