package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/browserkube-console/internal/logging"
	"github.com/shehryarbajwa/browserkube-console/internal/ratelimit"
	"github.com/shehryarbajwa/browserkube-console/internal/stream"
)

// SetupRoutes configures all HTTP routes. CORS wraps the router so preflight requests are
// answered before method matching.
func (h *Handler) SetupRoutes(relay *stream.Relay, rateLimiter *ratelimit.Limiter, requestsPerMinute int) http.Handler {
	r := mux.NewRouter()

	// API v1 routes
	api := r.PathPrefix("/v1").Subrouter()

	// state-changing endpoints are rate limited
	limited := api.PathPrefix("").Subrouter()
	limited.Use(RateLimitMiddleware(rateLimiter, requestsPerMinute))

	limited.HandleFunc("/sessions", h.CreateSession).Methods("POST")
	limited.HandleFunc("/sessions/{id}", h.DeleteSession).Methods("DELETE")
	limited.HandleFunc("/active/{id}", h.SelectSession).Methods("PUT")
	limited.HandleFunc("/active/commands/next", h.NextCommands).Methods("POST")

	// reads are polled and stay unlimited
	api.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	api.HandleFunc("/active", h.GetActive).Methods("GET")
	api.HandleFunc("/active", h.ClearSelection).Methods("DELETE")
	api.HandleFunc("/active/commands", h.GetCommands).Methods("GET")
	api.HandleFunc("/status", h.GetStatus).Methods("GET")
	api.HandleFunc("/toasts", h.ListToasts).Methods("GET")
	api.HandleFunc("/toasts/{id}", h.DismissToast).Methods("DELETE")

	// live session sockets
	api.HandleFunc("/vnc/{id}", h.relay(relay, h.backend.VNCURL)).Methods("GET")
	api.HandleFunc("/logs/{id}", h.relay(relay, h.backend.LogsURL)).Methods("GET")

	r.Use(RequestLogMiddleware(logging.For("api")))

	return corsMiddleware(r)
}

func (h *Handler) relay(relay *stream.Relay, upstream func(id string) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if _, ok := h.backend.Store().Get(id); !ok {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		target, err := upstream(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		relay.Serve(w, r, target)
	}
}
