package httpserver

import (
	"net/http"
	"time"
)

// New builds the validation API server. Header and idle timeouts are tight;
// there is no write timeout because a synchronous /validations/process call
// legitimately runs for as long as its batch of jobs does.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
