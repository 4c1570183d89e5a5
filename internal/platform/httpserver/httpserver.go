package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server. WriteTimeout is left unset because the live
// roster endpoint holds websocket connections open.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
