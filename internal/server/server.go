// Package server runs the ticketport HTTP listener.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ticketport/ticketport/internal/api"
)

// DetermineAccess inspects the requested listen address and reports whether
// it is a remote (non-loopback) binding. Remote bindings are rejected unless
// allowRemote is set.
func DetermineAccess(listenAddr string, allowRemote bool) (bool, error) {
	host, _, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return false, fmt.Errorf("invalid listen address %q: %w", listenAddr, err)
	}

	normalizedHost := host
	if normalizedHost == "" {
		normalizedHost = "0.0.0.0"
	}

	if isLoopbackHost(normalizedHost) {
		return false, nil
	}

	if !allowRemote {
		return false, fmt.Errorf("refusing remote bind to %q without --allow-remote", normalizedHost)
	}

	return true, nil
}

// NewHandler mounts the health check and the import API.
func NewHandler(h *api.Handler) (http.Handler, error) {
	if h == nil {
		return nil, errors.New("api handler is required")
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler)
	h.Register(mux)
	return mux, nil
}

// Config controls the listener.
type Config struct {
	Addr        string
	AllowRemote bool
	// ReadTimeout bounds reading a request, upload included.
	ReadTimeout time.Duration
	// ImportTimeout is the write timeout; it must cover a whole import.
	ImportTimeout time.Duration
	Logger        *slog.Logger
}

// Serve listens on cfg.Addr until ctx is cancelled, then drains in-flight
// requests for up to ImportTimeout.
func Serve(ctx context.Context, cfg Config, handler http.Handler) error {
	remote, err := DetermineAccess(cfg.Addr, cfg.AllowRemote)
	if err != nil {
		return err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.ImportTimeout,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", ln.Addr().String(), "remote", remote)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		grace := cfg.ImportTimeout
		if grace <= 0 {
			grace = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
