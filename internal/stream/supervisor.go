// Package stream implements the stream supervisor: authenticated
// connect, subscribe, ping/pong keepalive, reconnect-with-backoff, and
// dispatch of inbound updates, carried over a gorilla/websocket
// connection standing in for the real gRPC proto client.
package stream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"copytrader/internal/logger"
)

const (
	maxReconnectAttempts = 3
	reconnectBackoff     = 5 * time.Second
)

// Config configures the subscription filter and connection.
type Config struct {
	Endpoint          string
	Token             string
	AccountInclude    []string
	AccountExclude    []string
}

// Supervisor owns a single live connection and its control-channel
// sink; only the heartbeat task and the supervisor itself may write to
// it, each under the same mutex.
type Supervisor struct {
	cfg Config
	log *logger.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	lastMessageMu sync.RWMutex
	lastMessageAt time.Time
}

func New(cfg Config) *Supervisor {
	return &Supervisor{
		cfg: cfg,
		log: logger.New("STREAM"),
	}
}

// LastMessageAt returns the monotonic timestamp of the last inbound
// stream message, used by the watchdog timer.
func (s *Supervisor) LastMessageAt() time.Time {
	s.lastMessageMu.RLock()
	defer s.lastMessageMu.RUnlock()
	return s.lastMessageAt
}

func (s *Supervisor) touchLastMessage() {
	s.lastMessageMu.Lock()
	s.lastMessageAt = time.Now()
	s.lastMessageMu.Unlock()
}

// connect dials and subscribes once; no retry here, that's Run's job.
func (s *Supervisor) connect(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if s.cfg.Token != "" {
		header.Set("x-token", s.cfg.Token)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.Endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	req := SubscribeRequest{
		Transactions: map[string]Filter{
			"all": {
				AccountInclude: s.cfg.AccountInclude,
				AccountExclude: s.cfg.AccountExclude,
				Commitment:     "processed",
				Failed:         false,
				Vote:           boolPtr(false),
			},
		},
	}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return conn, nil
}

func boolPtr(b bool) *bool { return &b }

// Run makes up to maxReconnectAttempts connect attempts (5s backoff
// between them), then reads updates until a stream-level error breaks the
// loop. onUpdate is invoked for every inbound Update; Run returns once
// the read loop terminates (either ctx cancellation or an
// unrecoverable read error).
func (s *Supervisor) Run(ctx context.Context, onUpdate func(Update)) error {
	var lastErr error
	var conn *websocket.Conn
	for attempt := 0; attempt < maxReconnectAttempts; attempt++ {
		c, err := s.connect(ctx)
		if err == nil {
			conn = c
			break
		}
		lastErr = err
		s.log.Error("connect attempt %d/%d failed: %v", attempt+1, maxReconnectAttempts, err)
		if attempt == maxReconnectAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectBackoff):
		}
	}
	if conn == nil {
		return fmt.Errorf("failed to connect after %d attempts: %w", maxReconnectAttempts, lastErr)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn.Close()
		s.conn = nil
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var upd Update
		if err := conn.ReadJSON(&upd); err != nil {
			s.log.Error("stream read error: %v", err)
			return fmt.Errorf("stream read error: %w", err)
		}
		s.touchLastMessage()

		if upd.Ping != nil {
			s.replyPong(upd.Ping.ID)
			continue
		}
		onUpdate(upd)
	}
}

// replyPong answers an upstream Ping with an immediate Pong, the same
// obligation the heartbeat task has for its own outbound Ping.
func (s *Supervisor) replyPong(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return
	}
	if err := s.conn.WriteJSON(Update{Pong: &Ping{ID: id}}); err != nil {
		s.log.Error("failed to send pong: %v", err)
	}
}

// SendPing is invoked by the heartbeat timer every 30s; a send error
// should terminate the supervisor and signal the caller.
func (s *Supervisor) SendPing(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("no active connection")
	}
	if err := s.conn.WriteJSON(Update{Ping: &Ping{ID: 1}}); err != nil {
		return fmt.Errorf("heartbeat send failed: %w", err)
	}
	return nil
}
