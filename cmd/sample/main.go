// Command sample runs a small echo server that pushes every request and
// response through both bridge adapters on top of net/http.
//
// Run:
//
//	go run ./cmd/sample
//	go run ./cmd/sample -config bridge.yaml
//
// Then:
//
//	curl -d 'hello' http://localhost:8080/echo
//	curl -d 'a=1&a=2' -H 'content-type: application/x-www-form-urlencoded' http://localhost:8080/echo
//
// Configuration comes from the environment (BRIDGE_BASE,
// BRIDGE_BODY_SIZE_LIMIT, BRIDGE_NO_DRAIN_WAIT, BRIDGE_WRITE_RATE) or a
// YAML file passed with -config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/bjaus/bridge"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	cfgPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}
	opts := append(cfg.Options(), bridge.WithLogger(logger))

	mux := http.NewServeMux()
	mux.HandleFunc("/echo", echoHandler(opts))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		//nolint:errcheck,gosec // best-effort shutdown
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (bridge.Config, error) {
	if path != "" {
		return bridge.LoadConfig(path)
	}
	return bridge.ConfigFromEnv()
}

// echoHandler adapts the inbound request through the bridge, then streams
// the request body straight back out through the outbound adapter.
func echoHandler(opts []bridge.Option) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := bridge.NewRequest(bridge.NewHTTPRequestHandle(r), opts...)
		if err != nil {
			http.Error(w, err.Error(), bridge.ErrorStatus(err))
			return
		}

		header := bridge.Header{}
		if ct := req.Header.Get("Content-Type"); ct != "" {
			header.Set("Content-Type", ct)
		} else {
			header.Set("Content-Type", "text/plain; charset=utf-8")
		}
		header.Set("X-Echo-Url", req.URL.String())

		resp := &bridge.Response{Status: http.StatusOK, Header: header}
		if req.Body != nil {
			resp.Body = req.Body
		} else {
			resp.Body = bridge.TextStream("no body\n")
		}

		if err := bridge.Send(r.Context(), bridge.NewHTTPResponseHandle(w, r), resp, opts...); err != nil {
			slog.Debug("echo send aborted", "request_id", req.ID, "err", err)
		}
	}
}
