// Command gaitproxy serves the ownership-checked prescriptive and priority
// endpoints in front of the analytics backend.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"tailscale.com/tsweb"

	"github.com/cvacare/gaitsession/internal/config"
	"github.com/cvacare/gaitsession/internal/httputil"
	"github.com/cvacare/gaitsession/internal/proxy"
	"github.com/cvacare/gaitsession/internal/version"
)

var (
	configFile = flag.String("config", "", "Path to a JSON config file")
	listen     = flag.String("listen", "", "Listen address (overrides the config file)")
)

// newHandler builds the proxy routes plus the /debug/ page.
func newHandler(cfg *config.Config) (http.Handler, *proxy.Server) {
	srv := proxy.NewServer(proxy.Options{
		Client:    httputil.NewStandardClient(0),
		Upstream:  cfg.GetUpstreamURL(),
		AdminRole: cfg.GetAdminRole(),
		Timeout:   cfg.GetRequestTimeout(),
	})

	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())

	debug := tsweb.Debugger(mux)
	debug.KV("Version", version.String())
	debug.KV("Upstream", cfg.GetUpstreamURL())
	debug.KVFunc("Forwarded", func() any { return srv.Stats().Forwarded })
	debug.KVFunc("Denied", func() any { return srv.Stats().Denied })
	debug.KVFunc("Failed", func() any { return srv.Stats().Failed })
	return mux, srv
}

func loadConfig() *config.Config {
	if *configFile == "" {
		return config.Empty()
	}
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func main() {
	flag.Parse()

	cfg := loadConfig()
	addr := cfg.GetListen()
	if *listen != "" {
		addr = *listen
	}

	handler, _ := newHandler(cfg)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("gaitproxy %s listening on %s, upstream %s", version.Version, addr, cfg.GetUpstreamURL())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("Graceful shutdown complete")
}
