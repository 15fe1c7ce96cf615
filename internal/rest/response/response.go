// Package response writes the JSON envelope shared by every REST endpoint.
package response

import (
	"net/http"

	"github.com/bytedance/sonic"
)

// Envelope wraps every JSON response body.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// JSON writes a successful envelope carrying data.
func JSON(w http.ResponseWriter, status int, data any) error {
	return write(w, status, Envelope{Success: true, Data: data})
}

// Message writes a successful envelope carrying only a message.
func Message(w http.ResponseWriter, status int, message string) error {
	return write(w, status, Envelope{Success: true, Message: message})
}

// Error writes a failed envelope.
func Error(w http.ResponseWriter, status int, message string) error {
	return write(w, status, Envelope{Success: false, Message: message})
}

func write(w http.ResponseWriter, status int, body Envelope) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return sonic.ConfigDefault.NewEncoder(w).Encode(body)
}
