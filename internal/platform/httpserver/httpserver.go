package httpserver

import (
	"net/http"
	"time"
)

// New builds the http.Server with timeouts suited to a storefront API:
// requests are small and short-lived, so slow readers get cut off early.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
}
