package auctions

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kilianp07/parcelmas/core/auction/logging"
)

// NewLogHandler returns an HTTP handler exposing auction records via GET /api/auctions.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
func NewLogHandler(store logging.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		params := r.URL.Query()
		q := logging.Query{
			TaskID:    params.Get("task_id"),
			VehicleID: params.Get("vehicle_id"),
			RunID:     params.Get("run_id"),
		}
		var err error
		if q.Start, err = parseTime(params.Get("start")); err != nil {
			http.Error(w, "invalid start: "+err.Error(), http.StatusBadRequest)
			return
		}
		if q.End, err = parseTime(params.Get("end")); err != nil {
			http.Error(w, "invalid end: "+err.Error(), http.StatusBadRequest)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []logging.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
