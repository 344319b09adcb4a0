package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/cambio/internal/http/chat"
	"github.com/MrJamesThe3rd/cambio/internal/http/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/http/user"
)

// Handlers groups the versioned endpoint handlers mounted by New.
type Handlers struct {
	Transactions *transaction.Handler
	Users        *user.Handler
	Chat         *chat.Handler
}

// New wires the API. authn runs on every route except /healthz.
func New(h Handlers, authn func(http.Handler) http.Handler, allowedOrigins []string) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Group(func(r chi.Router) {
		r.Use(authn)

		r.Get("/ws", h.Chat.Serve)

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/transactions", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				h.Transactions.Routes(r)
				r.Get("/{id}/messages", h.Chat.History)
			})

			r.Route("/disputes", h.Transactions.DisputeRoutes)
			r.Route("/users", h.Users.Routes)
			r.Route("/payment-methods", h.Users.PaymentMethodRoutes)
		})
	})

	return router
}
