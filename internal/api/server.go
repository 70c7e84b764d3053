package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alertbeacon/alertbeacon/internal/alerter"
	"github.com/alertbeacon/alertbeacon/internal/indicator"
	"github.com/alertbeacon/alertbeacon/internal/ingest"
	"github.com/alertbeacon/alertbeacon/internal/logbuf"
	"github.com/alertbeacon/alertbeacon/internal/pattern"
	"github.com/alertbeacon/alertbeacon/internal/types"
)

// maxBodyBytes caps webhook payloads.
const maxBodyBytes = 1 << 20

// Tracker is the alert state tracker as seen by the HTTP boundary.
type Tracker interface {
	HandleFiring(req alerter.FireRequest) alerter.Outcome
	HandleResolved(id string) alerter.Outcome
	ManualOn()
	ManualOff()
	ManualBlink()
	ForceOff()
	Groups() []types.AlertGroup
	Summary() alerter.Summary
}

// Indicator reports indicator state.
type Indicator interface {
	State() pattern.State
	Info() indicator.Info
}

// Metrics records webhook outcomes and serves the exposition endpoint.
type Metrics interface {
	ObserveWebhook(platform, result string)
	Handler() http.Handler
}

// Server provides the HTTP API: health, webhooks, manual LED control and
// status endpoints.
type Server struct {
	tracker   Tracker
	indicator Indicator
	registry  *ingest.Registry
	secret    string
	logger    zerolog.Logger
	addr      string
	startTime time.Time

	logBuffer *logbuf.LogBuffer
	metrics   Metrics
	events    http.Handler

	version   string
	commit    string
	buildDate string
	versionMu sync.RWMutex

	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a new API server listening on addr once started.
func NewServer(tracker Tracker, ind Indicator, registry *ingest.Registry, secret string, logger zerolog.Logger, addr string) *Server {
	return &Server{
		tracker:   tracker,
		indicator: ind,
		registry:  registry,
		secret:    secret,
		logger:    logger.With().Str("component", "api").Logger(),
		addr:      addr,
		startTime: time.Now(),
	}
}

// SetLogBuffer enables /api/logs.
func (s *Server) SetLogBuffer(lb *logbuf.LogBuffer) {
	s.logBuffer = lb
}

// SetMetrics enables /metrics and webhook counters.
func (s *Server) SetMetrics(m Metrics) {
	s.metrics = m
}

// SetEventStream enables /ws/indicator.
func (s *Server) SetEventStream(h http.Handler) {
	s.events = h
}

// SetVersion sets the version information
func (s *Server) SetVersion(version, commit, buildDate string) {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	s.version = version
	s.commit = commit
	s.buildDate = buildDate
}

// Handler returns the full route table wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/webhook/", s.handleWebhook)
	mux.HandleFunc("/alerts", s.handleAlerts)
	mux.HandleFunc("/api/logs", s.handleLogsAPI)

	mux.HandleFunc("/api/led/on", s.requireSecret(s.handleLEDOn))
	mux.HandleFunc("/api/led/off", s.requireSecret(s.handleLEDOff))
	mux.HandleFunc("/api/led/blink", s.requireSecret(s.handleLEDBlink))
	mux.HandleFunc("/api/led/status", s.requireSecret(s.handleLEDStatus))

	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	if s.events != nil {
		mux.Handle("/ws/indicator", s.events)
	}

	return s.withRequestID(s.withRecover(mux))
}

// Start binds the listen address and serves in the background. A bind
// failure is returned to the caller.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().
		Str("address", ln.Addr().String()).
		Msg("Starting API server")

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("API server stopped")
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns service health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.versionMu.RLock()
	version := s.version
	commit := s.commit
	s.versionMu.RUnlock()

	info := s.indicator.Info()
	jsonResp(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime":         time.Since(s.startTime).Round(time.Second).String(),
		"version":        version,
		"commit":         commit,
		"lightbulb_type": info.Type,
		"indicator": map[string]interface{}{
			"driver":    info.Type,
			"available": info.Available,
			"degraded":  !info.Available,
			"pin":       info.Pin,
			"detail":    info.Detail,
			"state":     s.indicator.State(),
		},
		"alerts": s.tracker.Summary(),
	})
}

// handleAlerts returns active alert groups
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	groups := s.tracker.Groups()
	summary := s.tracker.Summary()
	jsonResp(w, http.StatusOK, map[string]interface{}{
		"alerts":   groups,
		"count":    len(groups),
		"owner":    summary.Owner,
		"pending":  summary.Pending,
		"flapping": summary.Flapping,
	})
}

// handleLogsAPI returns recent log entries as JSON. ?limit= and ?level=
// narrow the result.
func (s *Server) handleLogsAPI(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries := []logbuf.LogEntry{}
	if s.logBuffer != nil {
		entries = s.logBuffer.Recent(limit, r.URL.Query().Get("level"))
	}

	jsonResp(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) observe(platform, result string) {
	if s.metrics != nil {
		s.metrics.ObserveWebhook(platform, result)
	}
}

func jsonResp(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, status int, msg string) {
	jsonResp(w, status, map[string]interface{}{
		"status": "error",
		"error":  msg,
	})
}
