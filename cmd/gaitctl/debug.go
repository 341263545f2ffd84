package main

import (
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"tailscale.com/tsweb"
)

// serveDebug serves the /debug/ page on addr with whatever routes attach
// registers. It returns the bound address, so ":0" works, and a function that
// shuts the listener down.
func serveDebug(addr string, attach func(*tsweb.DebugHandler, *http.ServeMux)) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}

	mux := http.NewServeMux()
	attach(tsweb.Debugger(mux), mux)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("debug server failed: %v", err)
		}
	}()

	// Close rather than Shutdown: an open imu-tail stream would otherwise
	// hold the recording open until the timeout.
	return ln.Addr().String(), func() {
		if err := srv.Close(); err != nil {
			log.Printf("failed to close debug server: %v", err)
		}
	}, nil
}
