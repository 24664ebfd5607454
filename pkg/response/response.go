package response

import (
	"encoding/json"
	"net/http"
)

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    data,
	})
}

func Error(w http.ResponseWriter, status int, code string, message string) {
	ErrorDetails(w, status, code, message, nil)
}

// ErrorDetails writes the error envelope; details is omitted when empty.
func ErrorDetails(w http.ResponseWriter, status int, code string, message string, details map[string]any) {
	payload := map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	}
	if len(details) > 0 {
		payload["details"] = details
	}
	JSON(w, status, payload)
}
