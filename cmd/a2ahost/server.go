package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/a2ahost/a2ahost"
	"github.com/a2ahost/a2ahost/config"
	"github.com/a2ahost/a2ahost/host"
	"github.com/a2ahost/a2ahost/protocol/a2a"
)

// Server wires the routing host into an HTTP surface with health,
// metrics, and message endpoints.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	host    *host.Host
	cleanup func()
	httpSrv *http.Server
}

// NewServer assembles the host and its HTTP routes from configuration.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h, cleanup, err := a2ahost.New(cfg, logger, a2ahost.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "server")),
		host:    h,
		cleanup: cleanup,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP)
	mux.HandleFunc("GET /v1/agents", s.handleAgents)
	mux.HandleFunc("POST /v1/messages", s.handleMessage)

	s.httpSrv = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s, nil
}

// Start runs the initial discovery pass and begins serving. Discovery
// failures on individual endpoints are logged, not fatal: the host
// serves whatever partial registry it assembled.
func (s *Server) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Discovery.Budget)
	defer cancel()

	report, err := s.host.DiscoverAgents(ctx, s.cfg.Discovery.Endpoints)
	if err != nil {
		return err
	}
	for endpoint, ferr := range report.Failed {
		s.logger.Warn("endpoint failed discovery",
			zap.String("endpoint", endpoint),
			zap.Error(ferr),
		)
	}
	if err := s.host.Initialize(ctx); err != nil {
		return err
	}

	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Server.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	return nil
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then drains.
func (s *Server) WaitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	s.logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Warn("shutdown incomplete", zap.Error(err))
	}
	s.cleanup()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version})
}

// handleAgents lists the registry for operators.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	snapshot := s.host.Registry().Snapshot()
	type agentView struct {
		AgentID  string   `json:"agent_id"`
		Name     string   `json:"name"`
		Keywords []string `json:"keywords"`
		Health   string   `json:"health"`
	}
	out := make([]agentView, 0, snapshot.Len())
	for _, e := range snapshot.Entries() {
		out = append(out, agentView{
			AgentID:  e.Card.AgentID,
			Name:     e.Card.Name,
			Keywords: e.Card.Keywords,
			Health:   string(e.Health),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": out})
}

type messageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type messageResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// handleMessage routes one user message through the host. Context
// headers override body fields so gateways can inject them.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body must be JSON")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "message must not be empty")
		return
	}
	if v := r.Header.Get(a2a.HeaderSessionID); v != "" {
		req.SessionID = v
	}
	if v := r.Header.Get(a2a.HeaderUserID); v != "" {
		req.UserID = v
	}

	hostReq := host.Request{
		Message:   req.Message,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		AuthToken: bearerToken(r),
	}
	text, err := s.host.ProcessUserMessage(r.Context(), hostReq)
	if err != nil {
		if errors.Is(err, host.ErrNotInitialized) {
			writeError(w, http.StatusServiceUnavailable, "not_ready", "host has not finished discovery")
			return
		}
		if failure, ok := host.AsFailure(err); ok {
			status := http.StatusBadGateway
			if failure.Kind == host.FailureTimeout {
				status = http.StatusGatewayTimeout
			}
			writeError(w, status, string(failure.Kind), failure.Message)
			return
		}
		s.logger.Error("message processing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Response: text})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	var resp errorResponse
	resp.Error.Kind = kind
	resp.Error.Message = message
	writeJSON(w, status, resp)
}
