package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"moviebot/pkg/channel"
	"moviebot/pkg/config"
	"moviebot/pkg/logger"
	"moviebot/pkg/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const healthCheckInterval = 30 * time.Second

// HealthChecker reports whether the movie metadata service is reachable.
// *tmdb.Client satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Service struct {
	cfg      config.GatewayConfig
	log      *slog.Logger
	handler  channel.Handler
	checker  HealthChecker
	channels []channel.Adapter

	checkInterval time.Duration

	mu           sync.RWMutex
	startedAt    time.Time
	tmdbLastOKAt time.Time
	tmdbLastErr  string
	channelState map[string]channelState
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	TMDBLastOKAt  string                  `json:"tmdb_last_ok_at,omitempty"`
	TMDBLastErr   string                  `json:"tmdb_last_error,omitempty"`
	Channels      map[string]channelState `json:"channels"`
}

// NewService wires channel adapters to handler. checker may be nil, in which
// case TMDB health is not reported.
func NewService(cfg config.GatewayConfig, adapters []channel.Adapter, handler channel.Handler, checker HealthChecker, log *slog.Logger) (*Service, error) {
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	states := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		states[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           logger.Component(log, "gateway.service"),
		handler:       handler,
		checker:       checker,
		channels:      adapters,
		checkInterval: healthCheckInterval,
		channelState:  states,
	}, nil
}

// Run starts every adapter and the status server. It returns nil once ctx
// is canceled, or the first adapter or server failure, and only after every
// adapter has stopped.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	s.checkTMDBHealth(ctx)

	// Deferred in this order so adapters see cancellation before Run waits on them.
	var adapters sync.WaitGroup
	defer adapters.Wait()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErrors := make(chan error, 1)
	go s.runStatusServer(runCtx, serverErrors)
	go s.healthLoop(runCtx)

	errCh := make(chan error, len(s.channels))
	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})

		adapters.Add(1)
		go func() {
			defer adapters.Done()
			err := adapter.Run(runCtx, s.handler)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-errCh:
		return err
	}
}

func (s *Service) healthLoop(ctx context.Context) {
	if s.checker == nil {
		return
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkTMDBHealth(ctx)
		}
	}
}

// Router exposes the status endpoints.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

func (s *Service) runStatusServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Host)
	if host == "" {
		host = config.DefaultGatewayHost
	}

	port := s.cfg.Port
	if port <= 0 {
		port = config.DefaultGatewayPort
	}

	addr := host + ":" + strconv.Itoa(port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelState))
	for name, state := range s.channelState {
		channels[name] = state
	}

	lastOK := ""
	if !s.tmdbLastOKAt.IsZero() {
		lastOK = s.tmdbLastOKAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		TMDBLastOKAt:  lastOK,
		TMDBLastErr:   s.tmdbLastErr,
		Channels:      channels,
	}
}

// isReady reports whether at least one channel is running. TMDB health is
// reported in the status body but does not gate readiness: a failing lookup
// still yields the apology reply.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, state := range s.channelState {
		if state.Running {
			return true
		}
	}

	return false
}

// checkTMDBHealth records the check result. Failures are logged, never fatal.
func (s *Service) checkTMDBHealth(ctx context.Context) {
	if s.checker == nil {
		return
	}

	if err := s.checker.Health(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("TMDB health check failed", "error", err)
		metrics.SetTMDBUp(false)

		s.mu.Lock()
		s.tmdbLastErr = err.Error()
		s.mu.Unlock()
		return
	}

	metrics.SetTMDBUp(true)

	s.mu.Lock()
	s.tmdbLastErr = ""
	s.tmdbLastOKAt = time.Now().UTC()
	s.mu.Unlock()
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelState[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
