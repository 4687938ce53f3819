package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /voices", h.Voices)

	mux.HandleFunc("POST /prompts/inspire", h.InspirePrompt)
	mux.HandleFunc("POST /prompts/enhance", h.EnhancePrompt)

	mux.HandleFunc("GET /results", h.ListResults)
	mux.HandleFunc("DELETE /results", h.ClearResults)
	mux.HandleFunc("POST /results", h.Generate)
	mux.HandleFunc("POST /results/edits", h.Edit)
	mux.HandleFunc("GET /results/{id}", h.GetResult)
	mux.HandleFunc("POST /results/{id}/narration", h.Narrate)
	mux.HandleFunc("POST /results/{id}/animations", h.Animate)
	mux.HandleFunc("GET /results/{id}/animations", h.ListAnimations)
	mux.HandleFunc("GET /results/{id}/download", h.Download)
	mux.HandleFunc("POST /results/{id}/share", h.Share)

	mux.HandleFunc("GET /jobs/{id}", h.GetJob)

	// Apply middleware chain
	chain := ChainMiddleware(
		RequestIDMiddleware,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
