package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SetupSSEHeaders sets the response headers for a Server-Sent Events stream.
func SetupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// WriteSSEChunk writes one JSON data frame and flushes it.
func WriteSSEChunk(w http.ResponseWriter, flusher http.Flusher, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sse payload: %w", err)
	}
	return WriteSSERaw(w, flusher, string(data))
}

// WriteSSERaw writes one data frame verbatim, for sentinels like [DONE] that
// are not JSON.
func WriteSSERaw(w http.ResponseWriter, flusher http.Flusher, raw string) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", raw); err != nil {
		return fmt.Errorf("failed to write sse frame: %w", err)
	}
	flusher.Flush()
	return nil
}
