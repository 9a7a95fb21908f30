package health

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/chronotable/timecard/internal/liveness"
	"github.com/chronotable/timecard/internal/log"
)

// Routes builds the local diagnostics router: overall health, the per-task
// report, and the network monitor's snapshot.
func Routes(monitor *Monitor, network *liveness.Monitor) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		status, code := "ok", http.StatusOK
		if !monitor.Healthy() {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{"status": status})
	}).Methods(http.MethodGet)

	r.HandleFunc("/tasks", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, monitor.Report())
	}).Methods(http.MethodGet)

	r.HandleFunc("/network", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, network.CurrentStatus())
	}).Methods(http.MethodGet)

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.ErrorErr(log.CatHealth, err, "diagnostics encode failed")
	}
}
