// internal/handlers/health.go
package handlers

import (
	"encoding/json"
	"net/http"

	"whist-lobby/internal/lobby"
)

// healthResponse is the liveness payload. gamesCount mirrors the
// directory size at the instant of the request.
type healthResponse struct {
	Message    string `json:"message"`
	GamesCount int    `json:"gamesCount"`
}

// HealthHandler serves GET /api/health, independent of the realtime
// channel.
func HealthHandler(dir *lobby.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(healthResponse{
			Message:    "ok",
			GamesCount: dir.Len(),
		})
	}
}
