package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/calebkish/control-generator-sub000/internal/handlers"
	"github.com/calebkish/control-generator-sub000/internal/middleware"
)

func New(
	controlHandler *handlers.ControlHandler,
	chatHandler *handlers.ChatHandler,
	providerHandler *handlers.ProviderHandler,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Control Routes ────
		r.Route("/controls", func(r chi.Router) {
			r.Post("/", controlHandler.Create)
			r.Get("/", controlHandler.List)
			r.Get("/{id}", controlHandler.Get)
			r.Put("/{id}", controlHandler.Update)
			r.Delete("/{id}", controlHandler.Delete)
			r.Post("/{id}/conversations/{topic}", controlHandler.EnsureConversation)
		})

		// ──── Conversation Routes ────
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/{id}/prompt", chatHandler.Prompt)
			r.Delete("/{id}/history", chatHandler.ClearHistory)
		})

		// ──── Provider Config Routes ────
		r.Route("/providers", func(r chi.Router) {
			r.Get("/", providerHandler.List)
			r.Post("/", providerHandler.Create)
			r.Put("/{id}", providerHandler.Update)
			r.Delete("/{id}", providerHandler.Delete)
			r.Put("/{id}/activate", providerHandler.Activate)
		})
	})

	return r
}
