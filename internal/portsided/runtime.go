// Package portsided is the container diagnostics daemon: an HTTP API
// over attempt metadata, compose service discovery, and the two
// websocket relays.
package portsided

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"

	"github.com/portsidehq/portside/internal/compose"
	"github.com/portsidehq/portside/internal/config"
	"github.com/portsidehq/portside/internal/portsided/listen"
	"github.com/portsidehq/portside/internal/store"
	"github.com/portsidehq/portside/internal/telemetry/otel"
)

const shutdownGrace = 5 * time.Second

// Main runs the daemon until a signal arrives or serving fails.
func Main(args []string) error {
	fs := flag.NewFlagSet("portsided", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the TOML configuration file")
	listenFlag := fs.String("listen", "", "listen address (overrides the configuration)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	raw := cfg.Listen
	if *listenFlag != "" {
		raw = *listenFlag
	}
	addr, err := listen.Parse(raw)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.StatePath)
	if err != nil {
		return err
	}

	provider, err := otel.Setup(context.Background(), otel.Config{
		ServiceName:   "portsided",
		EnableMetrics: cfg.Telemetry.Metrics,
		EnableTraces:  cfg.Telemetry.Traces,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Printf("portsided: telemetry shutdown: %v", err)
		}
	}()

	discovery := compose.NewClient(cfg.Docker.Bin, cfg.Docker.LocalDomain)
	api := NewAPI(st, discovery, cfg.Docker.Bin, cfg.Docker.LogTail, provider.Sessions())

	mux := http.NewServeMux()
	api.Register(mux)

	srv := &http.Server{
		Addr:    addr.String(),
		Handler: mux,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("portsided: serving on %s", addr.DisplayURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGINT, unix.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case s := <-sig:
		log.Printf("portsided: received %s, shutting down", s)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
