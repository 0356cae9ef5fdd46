package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/tidelands/worldstream/internal/auth"
	"github.com/tidelands/worldstream/internal/config"
	"github.com/tidelands/worldstream/internal/performance"
	"github.com/tidelands/worldstream/internal/streaming"
)

// HealthResponse is the body of the /health endpoint.
type HealthResponse struct {
	Status         string                 `json:"status"`
	Service        string                 `json:"service"`
	ResidentChunks int                    `json:"resident_chunks"`
	Connections    int                    `json:"connections"`
	Profile        map[string]interface{} `json:"profile,omitempty"`
}

// SetupRoutes registers the viewer endpoints on mux and returns the
// websocket handlers for lifecycle management.
func SetupRoutes(mux *http.ServeMux, cfg *config.Config, manager *streaming.Manager, tokens *auth.TokenService, profiler *performance.Profiler) *WebSocketHandlers {
	handlers := NewWebSocketHandlers(cfg, manager, tokens, profiler)

	rateLimit := RateLimitMiddleware(cfg.Viewer.RateLimit, cfg.Viewer.RateLimitWindow)

	healthHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		response := HealthResponse{
			Status:         "ok",
			Service:        "worldstream-server",
			ResidentChunks: manager.ResidentCount(),
			Connections:    handlers.hub.ConnectionCount(),
		}
		if profiler.IsEnabled() {
			response.Profile = profiler.Snapshot()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.Printf("[API] Error writing health response: %v", err)
		}
	})

	mux.Handle("/health", CORSMiddleware(rateLimit(healthHandler)))
	mux.Handle("/ws", rateLimit(http.HandlerFunc(handlers.HandleWebSocket)))

	return handlers
}
