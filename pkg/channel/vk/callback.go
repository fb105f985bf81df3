package vkchannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"anonwall/pkg/channel"
	"anonwall/pkg/config"
)

const callbackName = "webhook"

// CallbackAdapter serves the VK Callback API: the platform POSTs events to
// the configured path, starting with a confirmation handshake.
type CallbackAdapter struct {
	cfg     config.WebhookConfig
	groupID int64
	log     *slog.Logger
}

// NewCallbackAdapter validates webhook configuration and constructs the
// adapter.
func NewCallbackAdapter(cfg config.WebhookConfig, groupID int64, log *slog.Logger) (*CallbackAdapter, error) {
	if strings.TrimSpace(cfg.Confirmation) == "" {
		return nil, errors.New("transport.webhook.confirmation is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &CallbackAdapter{
		cfg:     cfg,
		groupID: groupID,
		log:     log.With("component", "channel.webhook"),
	}, nil
}

// Name returns the channel identifier used in status reporting and logs.
func (a *CallbackAdapter) Name() string {
	return callbackName
}

// callbackEvent is one Callback API delivery.
type callbackEvent struct {
	Type    string `json:"type"`
	GroupID int64  `json:"group_id"`
	Secret  string `json:"secret"`
	Object  struct {
		Message messageEvent `json:"message"`
	} `json:"object"`
}

// Run serves the callback endpoint until the context is cancelled.
func (a *CallbackAdapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	host := strings.TrimSpace(a.cfg.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	path := a.cfg.Path
	if path == "" {
		path = "/bot"
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		a.handleEvent(ctx, w, r, handler)
	})

	server := &http.Server{
		Addr:              host + ":" + strconv.Itoa(a.cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	a.log.Info("Callback endpoint started", "address", server.Addr, "path", path)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve callback endpoint: %w", err)
	}

	return nil
}

func (a *CallbackAdapter) handleEvent(ctx context.Context, w http.ResponseWriter, r *http.Request, handler channel.Handler) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var event callbackEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		a.log.Warn("Rejecting malformed callback event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if a.cfg.Secret != "" && event.Secret != a.cfg.Secret {
		a.log.Warn("Rejecting callback event with bad secret", "type", event.Type)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	switch event.Type {
	case "confirmation":
		fmt.Fprint(w, a.cfg.Confirmation)
	case "message_new":
		inbound := toInbound(event.Object.Message)
		a.log.Debug("Received message", "sender_id", inbound.SenderID, "attachments", len(inbound.Attachments))
		// Acknowledge immediately; the conversation runs on its own.
		go handler(ctx, inbound)
		fmt.Fprint(w, "ok")
	default:
		fmt.Fprint(w, "ok")
	}
}
