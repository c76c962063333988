package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

type contextKey string

const contextAccountKey contextKey = "account_id"

var validate = validator.New()

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse carries an informational message.
type MessageResponse struct {
	Message string `json:"message"`
}

func withAccountID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, contextAccountKey, id)
}

func accountIDFromContext(ctx context.Context) (int, error) {
	id, ok := ctx.Value(contextAccountKey).(int)
	if !ok {
		return 0, errors.New("missing account")
	}
	if id < 1 {
		return 0, errors.New("invalid account")
	}
	return id, nil
}

// decodeJSON reads a JSON body into dst and runs struct validation.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
