package routes

import (
	"encoding/json"
	"net/http"
)

// NewRouteHandler returns an HTTP handler exposing the board via GET /api/routes.
func NewRouteHandler(b *Board) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		entries := b.List(r.URL.Query().Get("vehicle_id"))
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
