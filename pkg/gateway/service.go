// Package gateway runs the transport adapters and exposes health and
// readiness endpoints for the bot process.
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

	"anonwall/pkg/bus"
	"anonwall/pkg/channel"
	"anonwall/pkg/config"
	"anonwall/pkg/conversation"
)

const (
	defaultStatusHost = "0.0.0.0"
	defaultStatusPort = 18890

	probeInterval = 30 * time.Second
)

// Prober is the readiness probe against the VK API.
type Prober interface {
	GroupsGetByID(ctx context.Context, groupID int64) error
}

// Service supervises the enabled transport adapters and the conversation
// manager, and reports process status over HTTP.
type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	prober   Prober
	manager  *conversation.Manager
	channels []channel.Adapter

	mu            sync.RWMutex
	startedAt     time.Time
	apiLastOKAt   time.Time
	apiLastErr    string
	channelStates map[string]channelState
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status              string                  `json:"status"`
	UptimeSeconds       int64                   `json:"uptime_seconds"`
	APILastOKAt         string                  `json:"api_last_ok_at,omitempty"`
	APILastErr          string                  `json:"api_last_error,omitempty"`
	ActiveConversations int                     `json:"active_conversations"`
	Channels            map[string]channelState `json:"channels"`
}

// NewService wires the service. At least one transport adapter must be
// enabled.
func NewService(cfg *config.Config, prober Prober, manager *conversation.Manager, adapters []channel.Adapter, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if manager == nil {
		return nil, errors.New("conversation manager is required")
	}
	if len(adapters) == 0 {
		return nil, errors.New("at least one transport adapter is required")
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		prober:        prober,
		manager:       manager,
		channels:      adapters,
		channelStates: channelStates,
	}, nil
}

// Run starts the status server, the periodic VK API probe, and every
// transport adapter, then blocks until cancellation or a fatal error.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if err := s.probeAPI(ctx); err != nil {
		return err
	}

	serverErrors := make(chan error, 1)
	go s.runStatusServer(ctx, serverErrors)

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = s.probeAPI(ctx)
			}
		}
	}()

	errCh := make(chan error, len(s.channels))
	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})

		go func() {
			err := adapter.Run(ctx, s.handleInbound)
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

func (s *Service) handleInbound(ctx context.Context, inbound bus.InboundMessage) {
	s.manager.HandleInbound(ctx, inbound)
}

func (s *Service) runStatusServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultStatusHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultStatusPort
	}

	addr := host + ":" + strconv.Itoa(port)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Status server started", "address", addr)
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

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	apiLastOK := ""
	if !s.apiLastOKAt.IsZero() {
		apiLastOK = s.apiLastOKAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:              status,
		UptimeSeconds:       uptime,
		APILastOKAt:         apiLastOK,
		APILastErr:          s.apiLastErr,
		ActiveConversations: s.manager.ActiveConversations(),
		Channels:            channels,
	}
}

func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anyRunning := false
	for _, state := range s.channelStates {
		if state.Running {
			anyRunning = true
			break
		}
	}
	if !anyRunning {
		return false
	}

	if s.apiLastOKAt.IsZero() || s.apiLastErr != "" {
		return false
	}

	return true
}

func (s *Service) probeAPI(ctx context.Context) error {
	if err := s.prober.GroupsGetByID(ctx, s.cfg.Group.ID); err != nil {
		s.mu.Lock()
		s.apiLastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("vk api probe failed: %w", err)
	}

	s.mu.Lock()
	s.apiLastErr = ""
	s.apiLastOKAt = time.Now().UTC()
	s.mu.Unlock()

	return nil
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
