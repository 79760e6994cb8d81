package sensors

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	coremetrics "github.com/kilianp07/connecteddrive/core/metrics"
)

// NewHistoryHandler exposes past sensor states via GET /api/sensors/history.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
func NewHistoryHandler(store coremetrics.HistoryStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorize(w, r, token) {
			return
		}
		q, ok := parseHistoryQuery(w, r)
		if !ok {
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			writeQueryError(w, err)
			return
		}
		if records == nil {
			records = []coremetrics.SensorStateEvent{}
		}
		writeJSON(w, records)
	})
}

// NewSummaryHandler exposes per sensor statistics over past numeric states
// via GET /api/sensors/history/summary. It accepts the same parameters and
// token as the history handler.
func NewSummaryHandler(store coremetrics.HistoryStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorize(w, r, token) {
			return
		}
		q, ok := parseHistoryQuery(w, r)
		if !ok {
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, coremetrics.Summarize(records))
	})
}

func authorize(w http.ResponseWriter, r *http.Request, token string) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func parseHistoryQuery(w http.ResponseWriter, r *http.Request) (coremetrics.HistoryQuery, bool) {
	params := r.URL.Query()
	q := coremetrics.HistoryQuery{
		UniqueID:  params.Get("unique_id"),
		VIN:       params.Get("vin"),
		Attribute: params.Get("attribute"),
	}
	var err error
	if q.Start, err = parseTime(params.Get("start")); err != nil {
		http.Error(w, "invalid start", http.StatusBadRequest)
		return q, false
	}
	if q.End, err = parseTime(params.Get("end")); err != nil {
		http.Error(w, "invalid end", http.StatusBadRequest)
		return q, false
	}
	if l := params.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return q, false
		}
		q.Limit = n
	}
	return q, true
}

func writeQueryError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, coremetrics.ErrNoHistory) {
		status = http.StatusNotImplemented
	}
	http.Error(w, err.Error(), status)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
