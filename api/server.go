/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/accounts/*      Accounts, statements, replay verification
  /api/transactions/*  Transaction lifecycle
  /api/transfers/*     Atomic transfers
  /api/cards/*         Cards and their invoices
  /api/invoices/*      Invoice payment
  /api/admin/*         Seed and reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Put("/{id}", h.RenameAccount)
			r.Delete("/{id}", h.DeactivateAccount)
			r.Get("/{id}/statement", h.GetStatement)
			r.Post("/{id}/verify", h.VerifyAccount)
		})

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Get("/{id}", h.GetTransaction)
			r.Put("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		// Transfer routes
		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", h.CreateTransfer)
			r.Post("/{groupID}/reverse", h.ReverseTransfer)
		})

		// Card routes
		r.Route("/cards", func(r chi.Router) {
			r.Get("/", h.ListCards)
			r.Post("/", h.CreateCard)
			r.Get("/{id}", h.GetCard)
			r.Post("/{id}/spend", h.CardSpend)
			r.Get("/{id}/invoices", h.ListInvoices)
			r.Get("/{id}/invoices/open", h.OpenInvoice)
		})

		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/{id}", h.GetInvoice)
			r.Post("/{id}/pay", h.PayInvoice)
			r.Post("/{id}/pay/reverse", h.ReverseInvoicePayment)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/seed", h.SeedDemo)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	// Minimal index for anyone hitting the root with a browser.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Ledger Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Ledger Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/accounts">/api/accounts</a> - List accounts</li>
<li><a href="/api/transactions">/api/transactions</a> - List transactions</li>
<li><a href="/api/cards">/api/cards</a> - List cards</li>
</ul>
</body>
</html>`))
	})

	return r
}
