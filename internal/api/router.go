/**
 * @description
 * This file sets up the HTTP router for the payment service. Registration and login
 * are public; everything else requires a session token, and the admin and billing
 * routes additionally require the ADMIN role.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: routing and standard middleware.
 * - github.com/go-chi/cors: CORS handling for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/paymybuddy/payment-service/internal/domain"
)

// NewRouter creates a new Chi router and registers the payment routes.
func NewRouter(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.RegisterHandler)
		r.Post("/login", h.LoginHandler)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.tokens))

			r.Get("/profile", h.GetProfileHandler)
			r.With(RequireRole(domain.RoleUser)).Put("/profile", h.UpdateProfileHandler)

			r.Get("/connections", h.ListConnectionsHandler)
			r.Post("/connections", h.AddConnectionHandler)

			r.Get("/transfers", h.TransferPageHandler)
			r.Post("/transfers", h.TransferHandler)

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireRole(domain.RoleAdmin))
				r.Get("/transactions", h.AdminTransactionsHandler)
			})

			// {id} is a user id on POST and an invoice id on DELETE.
			r.Route("/billing", func(r chi.Router) {
				r.Use(RequireRole(domain.RoleAdmin))
				r.Post("/{id}", h.CreateInvoiceHandler)
				r.Delete("/{id}", h.DeleteInvoiceHandler)
				r.Get("/invoice/{invoiceID}", h.GetInvoiceHandler)
				r.Get("/user/{userID}", h.UserInvoicesHandler)
			})
		})
	})

	return r
}
