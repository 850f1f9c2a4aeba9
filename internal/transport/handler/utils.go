package handler

import (
	"encoding/json"
	"net/http"
	"strings"
)

type APIError struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

func writeMultipartError(w http.ResponseWriter, err error) {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "too large"):
		writeJSONError(w, "uploaded file exceeds maximum allowed size", http.StatusRequestEntityTooLarge)

	case strings.Contains(msg, "content-type isn't multipart/form-data"):
		writeJSONError(w, "invalid content type, expected multipart/form-data", http.StatusBadRequest)

	default:
		// Parse errors can carry internal detail; clients get the generic message.
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(APIError{
		Error: message,
	})
}
