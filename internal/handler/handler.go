// Package handler serves the till API consumed by the browser UI.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/velo-till/internal/session"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// APIKey, when set, must be sent by the UI in the X-API-Key header.
	APIKey string
}

// Handler exposes one sales session over HTTP.
type Handler struct {
	session *session.Session
	apiKey  string
}

// New constructs a Handler for s.
func New(cfg Config, s *session.Session) *Handler {
	return &Handler{session: s, apiKey: cfg.APIKey}
}

// Mount registers the till API under /api.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		if h.apiKey != "" {
			r.Use(requireAPIKey(h.apiKey))
		}

		r.Get("/products", h.ListProducts)
		r.Get("/clients", h.ListClients)
		r.Post("/clients", h.CreateClient)
		r.Post("/session/reload", h.Reload)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Put("/store", h.SetStore)
			r.Put("/client", h.SelectClient)
			r.Post("/items", h.AddItem)
			r.Post("/scan", h.Scan)
			r.Patch("/items/{productID}", h.UpdateQuantity)
			r.Delete("/items/{productID}", h.RemoveItem)
		})

		r.Put("/checkout/payment", h.SetPayment)
		r.Post("/checkout", h.Checkout)
	})
}

// Router returns a chi router with the till API mounted.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)
	h.Mount(r)
	return r
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}
