// Command mockserver serves a YAML scenario as a fake REST backend, so the
// frontend can be developed and demoed without the real API.
//
//	mockserver --scenario testdata/agents.yaml --addr :8090
//	mockserver --scenario testdata/agents.yaml --upstream http://127.0.0.1:8000
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/kuitang/todo-e2e/internal/config"
	"github.com/kuitang/todo-e2e/internal/mockroute"
	"github.com/kuitang/todo-e2e/internal/obs"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := contextWithSignal(context.Background())
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stderr, nil); err != nil {
		fmt.Fprintf(os.Stderr, "mockserver: %v\n", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled. When ready is non-nil it receives the
// bound address once the listener is up.
func run(ctx context.Context, args []string, stderr io.Writer, ready chan<- string) error {
	flags, err := config.ParseFlags("mockserver", args, stderr)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(flags)
	if err != nil {
		return err
	}

	obs.Init()
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))
	logger := obs.Pkg("mockserver")

	router, err := newRouter(cfg)
	if err != nil {
		return err
	}
	cfg.PrintStartupSummary(stderr)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	srv := &http.Server{
		Handler:           newHandler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()
	logger.Info("mockserver_listening", "addr", ln.Addr().String(), "rules", len(router.Rules()))
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("mockserver_shutting_down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Closing the router first releases delayed responses so Shutdown does
	// not wait out their timers.
	if err := router.Close(shutdownCtx); err != nil {
		logger.Warn("mockserver_router_close_failed", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	for _, f := range router.Failures() {
		logger.Warn("mockserver_unserved_request", "failure", f.String())
	}
	return nil
}

func newRouter(cfg *config.Config) (*mockroute.Router, error) {
	var scenario *mockroute.Scenario
	if cfg.ScenarioPath != "" {
		s, err := mockroute.LoadScenarioFile(cfg.ScenarioPath)
		if err != nil {
			return nil, err
		}
		scenario = s
	}

	var opts []mockroute.Option
	if scenario != nil {
		opts = append(opts, scenario.Options()...)
	}
	if cfg.PassThrough {
		opts = append(opts, mockroute.WithPassThrough(true))
	}
	if cfg.UpstreamURL != "" {
		upstream, err := url.Parse(cfg.UpstreamURL)
		if err != nil {
			return nil, fmt.Errorf("parse upstream %q: %w", cfg.UpstreamURL, err)
		}
		opts = append(opts, mockroute.WithUpstream(upstream))
	}

	router := mockroute.New(opts...)
	if scenario != nil {
		scenario.Apply(router)
	}
	return router, nil
}

func newHandler(router *mockroute.Router) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /__health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("GET /__calls", func(w http.ResponseWriter, _ *http.Request) {
		type callView struct {
			Method      string `json:"method"`
			URL         string `json:"url"`
			Pattern     string `json:"pattern,omitempty"`
			Status      int    `json:"status,omitempty"`
			PassThrough bool   `json:"passthrough,omitempty"`
			Error       string `json:"error,omitempty"`
			DurationMS  int64  `json:"duration_ms"`
		}
		calls := router.Calls()
		out := make([]callView, 0, len(calls))
		for _, c := range calls {
			v := callView{
				Method:      c.Method,
				URL:         c.URL,
				Pattern:     c.Pattern,
				Status:      c.Status,
				PassThrough: c.PassThrough,
				DurationMS:  c.Duration.Milliseconds(),
			}
			if c.Err != nil {
				v.Error = c.Err.Error()
			}
			out = append(out, v)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.Handle("/", router)
	return obs.TagCalls(obs.AccessLog("mockserver", mux))
}

// contextWithSignal returns a context cancelled on SIGINT or SIGTERM.
func contextWithSignal(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
