package webhook

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRouter creates and configures the HTTP router. metrics is mounted on
// /metrics when set.
func (h *Handler) SetupRouter(metrics http.Handler) *mux.Router {
	r := mux.NewRouter()

	r.Use(RecoveryMiddleware(h.log))
	r.Use(LoggingMiddleware(h.log))

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/webhook", h.Receive).Methods("POST")
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}

	r.NotFoundHandler = http.HandlerFunc(NotFoundHandler)
	return r
}

// NotFoundHandler handles 404 errors
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}
