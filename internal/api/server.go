// Package api exposes the document and review queue operations over HTTP.
// Tenant identity comes from the bearer token, never from request input.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/docpipe/internal/auth"
	"github.com/sells-group/docpipe/internal/extraction"
	"github.com/sells-group/docpipe/internal/review"
	"github.com/sells-group/docpipe/internal/store"
)

// maxUploadBytes bounds a single document upload.
const maxUploadBytes = 64 << 20

// Deps carries the wired components the handlers need.
type Deps struct {
	Store        store.Store
	Reviews      *review.Service
	Orchestrator *extraction.Orchestrator

	// Tokens maps bearer tokens to tenant ids.
	Tokens map[string]string
}

// NewHandler builds the HTTP routing tree. Everything except /health
// requires a tenant token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(120 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(deps.Tokens))

		r.Post("/documents", handleUploadDocument(deps))
		r.Get("/documents/{id}", handleGetDocument(deps))
		r.Get("/documents/{id}/extractions", handleListExtractions(deps))

		r.Get("/extractions/{id}", handleGetExtraction(deps))
		r.Get("/extractions/{id}/fields", handleListFields(deps))
		r.Get("/extractions/{id}/tables", handleListTables(deps))
		r.Post("/fields/{id}/override", handleOverrideField(deps))

		r.Get("/queue", handleListQueue(deps))
		r.Post("/queue/{id}/claim", handleClaim(deps))
		r.Post("/queue/{id}/complete", handleComplete(deps))
		r.Post("/queue/{id}/skip", handleSkip(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
