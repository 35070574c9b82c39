package api

import (
	"crypto/tls"
	"net/http"
	"time"
)

// Outbound call timeouts. Control calls carry small JSON bodies (config
// pushes, job registration, status updates); transfer calls carry file
// signatures and deltas and get a correspondingly larger budget.
const (
	ControlTimeout  = 30 * time.Second
	TransferTimeout = 5 * time.Minute
)

// NewHTTPClient builds an HTTP client for outbound calls to relique peers.
// Relique daemons usually run with self-signed certificates, so certificate
// verification is only enforced when strictSSL is set. Clients are cheap and
// constructed per call site rather than shared.
func NewHTTPClient(strictSSL bool, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: !strictSSL,
			},
		},
	}
}
