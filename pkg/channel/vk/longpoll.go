package vkchannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"anonwall/pkg/channel"
	"anonwall/pkg/vk"
)

const (
	longPollName = "longpoll"
	// defaultWait is the server-side hold in seconds per poll request.
	defaultWait = 25
)

// errSessionExpired means the server key or ts is stale and a fresh
// session must be opened.
var errSessionExpired = errors.New("long poll session expired")

// LongPollAdapter consumes the community's Bots Long Poll stream.
type LongPollAdapter struct {
	api        *vk.Client
	groupID    int64
	log        *slog.Logger
	httpClient *http.Client
	wait       int
}

// NewLongPollAdapter builds the long-poll transport for one community.
func NewLongPollAdapter(api *vk.Client, groupID int64, log *slog.Logger) *LongPollAdapter {
	if log == nil {
		log = slog.Default()
	}

	return &LongPollAdapter{
		api:     api,
		groupID: groupID,
		log:     log.With("component", "channel.longpoll"),
		// Read timeout must exceed the server hold plus slack.
		httpClient: &http.Client{Timeout: time.Duration(defaultWait+10) * time.Second},
		wait:       defaultWait,
	}
}

// Name returns the channel identifier used in status reporting and logs.
func (a *LongPollAdapter) Name() string {
	return longPollName
}

// Run opens a long poll session and forwards message_new events through
// the handler, reopening the session whenever the server expires it.
func (a *LongPollAdapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	for {
		server, err := a.openSession(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("open long poll session: %w", err)
		}
		a.log.Info("Long poll session opened")

		err = a.poll(ctx, server, handler)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, errSessionExpired):
			a.log.Info("Long poll session expired, reopening")
		default:
			a.log.Warn("Long poll session ended, reopening", "error", err)
		}
	}
}

// openSession requests a fresh session with bounded backoff. The backoff
// lives entirely in the transport; pipeline operations never retry.
func (a *LongPollAdapter) openSession(ctx context.Context) (vk.LongPollServer, error) {
	var server vk.LongPollServer
	err := retry.Do(
		func() error {
			var err error
			server, err = a.api.GroupsGetLongPollServer(ctx, a.groupID)
			return err
		},
		retry.Attempts(10),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			a.log.Warn("Retrying long poll session open", "attempt", n+1, "error", err)
		}),
	)

	return server, err
}

// pollResponse is one a_check result. A non-zero Failed code invalidates
// part or all of the session state.
type pollResponse struct {
	TS      string `json:"ts"`
	Failed  int    `json:"failed"`
	Updates []struct {
		Type   string `json:"type"`
		Object struct {
			Message messageEvent `json:"message"`
		} `json:"object"`
	} `json:"updates"`
}

func (a *LongPollAdapter) poll(ctx context.Context, server vk.LongPollServer, handler channel.Handler) error {
	ts := server.TS
	for {
		resp, err := a.check(ctx, server, ts)
		if err != nil {
			return err
		}

		switch resp.Failed {
		case 0:
		case 1:
			// Event history is partially lost; resume from the new ts.
			ts = resp.TS
			continue
		default:
			return errSessionExpired
		}
		ts = resp.TS

		for _, update := range resp.Updates {
			if update.Type != "message_new" {
				continue
			}
			inbound := toInbound(update.Object.Message)
			a.log.Debug("Received message", "sender_id", inbound.SenderID, "attachments", len(inbound.Attachments))
			handler(ctx, inbound)
		}
	}
}

func (a *LongPollAdapter) check(ctx context.Context, server vk.LongPollServer, ts string) (pollResponse, error) {
	params := url.Values{}
	params.Set("act", "a_check")
	params.Set("key", server.Key)
	params.Set("ts", ts)
	params.Set("wait", strconv.Itoa(a.wait))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.Server+"?"+params.Encode(), nil)
	if err != nil {
		return pollResponse{}, fmt.Errorf("build poll request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return pollResponse{}, fmt.Errorf("poll updates: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pollResponse{}, fmt.Errorf("read poll response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return pollResponse{}, fmt.Errorf("poll updates: unexpected status %d", resp.StatusCode)
	}

	var decoded pollResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return pollResponse{}, fmt.Errorf("decode poll response: %w", err)
	}

	return decoded, nil
}
