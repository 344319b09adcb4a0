package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrJamesThe3rd/cambio/internal/user"
)

// Users loads the account behind a verified token.
type Users interface {
	Get(ctx context.Context, id int64) (*user.User, error)
}

// Middleware rejects requests without a valid bearer token and stores the
// user in the request context. Browsers cannot set headers on a WebSocket
// handshake, so the access_token query parameter is accepted as well.
func Middleware(v *Verifier, users Users) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFrom(r)
			if token == "" {
				http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
				return
			}

			id, err := v.Verify(token)
			if err != nil {
				http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
				return
			}

			u, err := users.Get(r.Context(), id)
			if err != nil {
				slog.Warn("rejecting token", "error", err, "user_id", id)
				http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)

				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}

		return ""
	}

	return r.URL.Query().Get("access_token")
}
