package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

// ErrStreamRejected is returned by Run when the server refuses the upgrade
// because of the bearer token, or answers authenticate with an error. Retrying
// cannot fix either.
var ErrStreamRejected = errors.New("client: realtime connection rejected")

const (
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
)

// StreamConfig tunes a Stream.
type StreamConfig struct {
	Dialer         *websocket.Dialer
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// OnNotification runs after a pushed notification is merged into the store.
	OnNotification func(Notification)
	// OnDisconnect runs after a session ends, before the backoff wait.
	OnDisconnect func(err error, retryIn time.Duration)
}

// Stream follows the realtime channel for a Store's user and keeps the store
// reconciled: pushes are merged as they arrive and the store is reloaded after
// every successful (re)authentication.
type Stream struct {
	client *Client
	store  *Store
	cfg    StreamConfig
}

type streamFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type streamMessage struct {
	Message string `json:"message"`
}

// NewStream builds a Stream. The client's token is sent on every dial.
func NewStream(c *Client, store *Store, cfg StreamConfig) *Stream {
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	return &Stream{client: c, store: store, cfg: cfg}
}

// Run connects and reconnects until ctx is cancelled or the server rejects the token.
func (s *Stream) Run(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.InitialBackoff
	policy.MaxInterval = s.cfg.MaxBackoff
	policy.Reset()

	for {
		errSession := s.session(ctx, policy)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(errSession, ErrStreamRejected) {
			return errSession
		}
		wait := policy.NextBackOff()
		if s.cfg.OnDisconnect != nil {
			s.cfg.OnDisconnect(errSession, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails. The backoff is reset once the
// server confirms authentication.
func (s *Stream) session(ctx context.Context, policy *backoff.ExponentialBackOff) error {
	header := http.Header{}
	if token := s.client.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := s.cfg.Dialer.DialContext(ctx, s.client.websocketURL(), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("%w: status %d", ErrStreamRejected, resp.StatusCode)
		}
		return fmt.Errorf("client: dial realtime: %w", err)
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	userID, _ := json.Marshal(s.store.UserID())
	if errWrite := conn.WriteJSON(streamFrame{Event: "authenticate", Data: userID}); errWrite != nil {
		return fmt.Errorf("client: send authenticate: %w", errWrite)
	}

	authenticated := false
	for {
		var frame streamFrame
		if errRead := conn.ReadJSON(&frame); errRead != nil {
			return fmt.Errorf("client: read realtime: %w", errRead)
		}
		switch frame.Event {
		case "authenticated":
			authenticated = true
			policy.Reset()
			// Pushes missed while disconnected are only recoverable by refetching.
			if errLoad := s.store.Load(ctx); errLoad != nil && ctx.Err() == nil {
				return fmt.Errorf("client: reload after connect: %w", errLoad)
			}
		case "notification":
			var n Notification
			if errUnmarshal := json.Unmarshal(frame.Data, &n); errUnmarshal != nil {
				continue
			}
			s.store.UpsertNotification(n)
			if s.cfg.OnNotification != nil {
				s.cfg.OnNotification(n)
			}
		case "error":
			var msg streamMessage
			_ = json.Unmarshal(frame.Data, &msg)
			if !authenticated {
				return fmt.Errorf("%w: %s", ErrStreamRejected, msg.Message)
			}
			return fmt.Errorf("client: realtime error: %s", msg.Message)
		}
	}
}
