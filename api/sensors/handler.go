package sensors

import (
	"encoding/json"
	"net/http"

	"github.com/kilianp07/connecteddrive/core/entitystatus"
)

// NewStatusHandler returns an HTTP handler exposing sensor states via GET /api/sensors.
// The vin, account and attribute query parameters filter the result.
func NewStatusHandler(store entitystatus.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f := entitystatus.Filter{
			VIN:       r.URL.Query().Get("vin"),
			Account:   r.URL.Query().Get("account"),
			Attribute: r.URL.Query().Get("attribute"),
		}
		writeJSON(w, store.List(f))
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
