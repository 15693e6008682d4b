// Package webhook exposes the HTTP trigger endpoint the hosting CI system
// posts events to.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/flightcheck/internal/config"
	"github.com/mattjoyce/flightcheck/internal/plan"
	"github.com/mattjoyce/flightcheck/internal/report"
	"github.com/mattjoyce/flightcheck/internal/trigger"
)

// RunService executes a planned run for a trigger event and returns its
// report. Plan-time configuration errors come back as errors.
type RunService interface {
	Dispatch(ctx context.Context, ev trigger.Event) (report.Report, error)
}

// Server is the webhook HTTP server.
type Server struct {
	cfg    config.ServeConfig
	runs   RunService
	logger *slog.Logger
	server *http.Server
}

// New creates a webhook server.
func New(cfg config.ServeConfig, runs RunService, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, runs: runs, logger: logger}
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Minute, // a dispatched run executes inline
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.cfg.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Post("/hooks/trigger", s.handleTrigger)
	return r
}

// Handler exposes the routes for tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBodySize+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if int64(len(body)) > s.cfg.MaxBodySize {
		s.writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	if err := verifyHMACSignature(body, r.Header.Get(s.cfg.SignatureHeader), s.cfg.Secret); err != nil {
		s.logger.Warn("rejected trigger with bad signature", "remote", r.RemoteAddr)
		s.writeError(w, http.StatusUnauthorized, "signature verification failed")
		return
	}

	var raw struct {
		Kind        string `json:"kind"`
		Ref         string `json:"ref"`
		Platform    string `json:"platform"`
		Environment string `json:"environment"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	kind, err := trigger.ParseKind(raw.Kind)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	platform, err := trigger.ParsePlatform(raw.Platform)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	environment, err := trigger.ParseEnvironment(raw.Environment)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev := trigger.Event{Kind: kind, Ref: raw.Ref, Platform: platform, Environment: environment}
	s.logger.Info("trigger accepted", "kind", ev.Kind, "ref", ev.Ref)

	rep, err := s.runs.Dispatch(r.Context(), ev)
	if err != nil {
		// Plan-time configuration errors: nothing was executed.
		var missing *plan.MissingArgumentError
		if errors.As(err, &missing) {
			s.writeError(w, http.StatusUnprocessableEntity, missing.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(rep)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
