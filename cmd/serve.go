package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xconmik/buildata-automation/internal/fetcher"
	"github.com/xconmik/buildata-automation/internal/metrics"
	"github.com/xconmik/buildata-automation/internal/model"
	"github.com/xconmik/buildata-automation/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control server",
	Long: `Starts an HTTP server that drives one pipeline controller: start a run from
a lead sheet, watch its status, stop it, and download the run log.

Endpoints:
  GET  /health     liveness
  GET  /status     current run state and blocked companies
  POST /runs       {"leads": "leads.csv", "sheet": ""} starts a run
  POST /stop       stops the active run at the next step
  GET  /log.csv    run log as CSV
  GET  /metrics    prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initRun(ctx, "serve", "")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := newServer(ctx, env.Controller, env.Metrics, func(ctx context.Context, src, sheet string) ([]model.Lead, error) {
			return loadLeads(ctx, src, sheet, env.Aliases, env.Downloader)
		})

		err = startServer(ctx, buildRouter(srv, cfg.Server.AllowedOrigins), resolvePort(servePort, cfg.Server.Port))
		env.Controller.Stop()
		srv.wait()
		return err
	},
}

// leadLoader reads a lead sheet for POST /runs.
type leadLoader func(ctx context.Context, src, sheet string) ([]model.Lead, error)

// server exposes one Controller over HTTP. Runs started through it live on
// the server context, not the request context.
type server struct {
	ctx     context.Context
	ctrl    *pipeline.Controller
	metrics *metrics.Metrics
	load    leadLoader
	log     *zap.Logger

	mu      sync.Mutex
	lastErr string
	wg      sync.WaitGroup
}

func newServer(ctx context.Context, ctrl *pipeline.Controller, m *metrics.Metrics, load leadLoader) *server {
	return &server{
		ctx:     ctx,
		ctrl:    ctrl,
		metrics: m,
		load:    load,
		log:     zap.L().With(zap.String("component", "server")),
	}
}

// buildRouter wires the control endpoints. origins feeds the CORS policy.
func buildRouter(s *server, origins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", s.handleStatus)
	r.Post("/runs", s.handleStartRun)
	r.Post("/stop", s.handleStop)
	r.Get("/log.csv", s.handleLogCSV)

	return r
}

type statusResponse struct {
	pipeline.Status
	LastError string   `json:"last_error,omitempty"`
	Blocked   []string `json:"blocked_companies"`
	LogRows   int      `json:"log_rows"`
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	blocked := []string{}
	for company, st := range s.ctrl.Blocks().Snapshot() {
		if st.Blocked {
			blocked = append(blocked, company)
		}
	}
	sort.Strings(blocked)

	s.mu.Lock()
	lastErr := s.lastErr
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, statusResponse{
		Status:    s.ctrl.Status(),
		LastError: lastErr,
		Blocked:   blocked,
		LogRows:   s.ctrl.Log().Len(),
	})
}

func (s *server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Leads string `json:"leads"`
		Sheet string `json:"sheet"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Leads == "" {
		writeError(w, http.StatusBadRequest, "leads is required")
		return
	}
	if s.ctrl.Running() {
		writeError(w, http.StatusConflict, pipeline.ErrAlreadyRunning.Error())
		return
	}

	leads, err := s.load(r.Context(), req.Leads, req.Sheet)
	if err != nil {
		s.log.Warn("load leads failed", zap.String("source", req.Leads), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if len(leads) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "no leads found")
		return
	}

	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.ctrl.Start(s.ctx, leads)
		switch {
		case err == nil:
		case errors.Is(err, pipeline.ErrAlreadyRunning):
			s.log.Warn("run not started, another run is active")
		default:
			s.log.Error("run ended with error", zap.Error(err))
			s.mu.Lock()
			s.lastErr = err.Error()
			s.mu.Unlock()
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "started",
		"leads":  len(leads),
	})
}

func (s *server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.ctrl.Running() {
		writeJSON(w, http.StatusOK, map[string]string{"status": string(pipeline.StateIdle)})
		return
	}
	s.ctrl.Stop()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

func (s *server) handleLogCSV(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("buildata-log-%s.csv", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := fetcher.WriteLogCSV(w, s.ctrl.Log().Rows()); err != nil {
		s.log.Error("write log csv failed", zap.Error(err))
	}
}

// wait blocks until runs started through s have returned.
func (s *server) wait() { s.wg.Wait() }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// resolvePort prefers the flag value over the configured one.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves h on port until ctx is done, then shuts down
// gracefully.
func startServer(ctx context.Context, h http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
