// Package httpserver builds the auditor's listener from server configuration.
package httpserver

import (
	"net/http"
	"time"

	"github.com/OFF-rtk/sentinel-auditor/internal/platform/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
	// The webhook replies before any pipeline work, so reads and writes stay short.
	ioTimeout = 15 * time.Second
)

// New returns a server for handler listening on cfg.Addr.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       ioTimeout,
		WriteTimeout:      ioTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    64 << 10,
	}
}
