// Package render holds the request decoding and response writing shared by
// the HTTP handlers.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/MrJamesThe3rd/cambio/internal/auth"
	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

var ErrBadRequest = errors.New("bad request")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode reads a JSON body into v and validates its struct tags.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	return nil
}

// ID parses a positive integer URL parameter.
func ID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", ErrBadRequest, name)
	}

	return id, nil
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Status maps a domain error to its HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, transaction.ErrNotFound), errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, transaction.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, transaction.ErrForbidden), errors.Is(err, user.ErrNotCashier), errors.Is(err, user.ErrInactive):
		return http.StatusForbidden
	case errors.Is(err, transaction.ErrInvalidTransition), errors.Is(err, transaction.ErrValidation):
		return http.StatusUnprocessableEntity
	}

	return http.StatusInternalServerError
}

// Error writes err as plain text. Unexpected errors are logged and hidden.
func Error(w http.ResponseWriter, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", status)

		return
	}

	http.Error(w, err.Error(), status)
}

// WithActor adapts a handler that needs the signed-in user.
func WithActor(fn func(w http.ResponseWriter, r *http.Request, actor *user.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := auth.UserFrom(r.Context())
		if !ok {
			Error(w, auth.ErrUnauthorized)
			return
		}

		fn(w, r, actor)
	}
}
