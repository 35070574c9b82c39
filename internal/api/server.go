package api

import (
	"net/http"
	"time"
)

// NewServer builds the http.Server both daemons listen on. Header reads are
// bounded so half-open connections cannot pile up, but there is no global
// read or write deadline: delta uploads carry whole file contents and their
// duration depends on file size, not on a fixed budget.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
