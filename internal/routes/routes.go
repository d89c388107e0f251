package routes

import (
	"net/http"

	"wchat-sfu/internal/handlers"
)

// Setup registers all HTTP routes
func Setup(mux *http.ServeMux, h *handlers.Handlers) {
	mux.HandleFunc("GET /app/ice-servers", h.IceServers)
	mux.HandleFunc("GET /app/member-name/{peerId}", h.MemberName)
	mux.HandleFunc("GET /app/metrics", h.Metrics)

	// websocket handler; the member token travels in the path
	mux.HandleFunc("/ws-app/subscribe/{token}", h.Subscribe)
}
