package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-accounts-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// UserEnvelope wraps every response that returns an account.
type UserEnvelope struct {
	User *domain.User `json:"user"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: msg})
}

// writeError maps err onto a status and a {"error","code"} body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg, code := httpError(r.Context(), err)
	writeJSON(w, status, MessageEnvelope{Error: msg, Code: code})
}
