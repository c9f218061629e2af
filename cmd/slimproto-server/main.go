// Command slimproto-server runs the Slimproto protocol server: the TCP
// listener that accepts Squeezebox and compatible player connections, plus
// an admin HTTP server exposing /healthz and /metrics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/srosecker/resonance-slimproto/internal/config"
	"github.com/srosecker/resonance-slimproto/internal/events"
	"github.com/srosecker/resonance-slimproto/internal/journal"
	"github.com/srosecker/resonance-slimproto/internal/metrics"
	"github.com/srosecker/resonance-slimproto/internal/registry"
	"github.com/srosecker/resonance-slimproto/internal/slimserver"
)

func main() {
	envFile := flag.String("env-file", ".env", "path to an optional .env file")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Printf("slimproto-server: loading %s: %v", *envFile, err)
	}
	cfg := config.Load()

	reg := registry.New()
	bus := events.NewBus()
	coll := metrics.New()

	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			log.Fatalf("slimproto-server: opening journal: %v", err)
		}
		defer j.Close()
		j.Subscribe(bus)
		log.Printf("slimproto-server: event journal enabled at %s", cfg.JournalPath)
	}

	srv := slimserver.New(slimserver.Options{
		BindHost:            cfg.BindHost,
		Port:                cfg.Port,
		StreamingPort:       cfg.StreamingPort,
		MaxConnections:      cfg.MaxConnections,
		HeloDeadline:        cfg.HeloDeadline,
		ClientTimeout:       cfg.ClientTimeout,
		ClientCheckInterval: cfg.ClientCheckInterval,
		FrameRateLimit:      cfg.FrameRateLimit,
		FrameRateBurst:      cfg.FrameRateBurst,
		TraceFrames:         cfg.TraceFrames,
	}, reg, bus, coll, nil)

	var listening atomic.Bool
	admin := newAdminServer(cfg.AdminAddr, coll, reg, &listening)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("slimproto-server: admin server error: %v", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		addr := net.JoinHostPort(cfg.BindHost, strconv.Itoa(cfg.Port))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			errCh <- fmt.Errorf("listen %s: %w", addr, err)
			return
		}
		listening.Store(true)
		errCh <- srv.Serve(ctx, ln)
	}()

	select {
	case <-ctx.Done():
		log.Printf("slimproto-server: shutting down")
		srv.Shutdown()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Fatalf("slimproto-server: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		log.Printf("slimproto-server: admin shutdown: %v", err)
	}
}

func newAdminServer(addr string, coll *metrics.Collectors, reg *registry.Registry, listening *atomic.Bool) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", coll.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !listening.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "starting"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "players": reg.Len()})
	})

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}
