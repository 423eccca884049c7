// Package channel owns the persistent push connection to the telemetry
// broker: connect, in-band authorization, bounded reconnect and
// teardown.
package channel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/models"
)

// authAckFrame is the literal acknowledgement the broker sends once it
// accepts the credential frame. Frames arriving before it are untrusted
// and dropped.
var authAckFrame = []byte("authorized")

var errRetriesExhausted = errors.New("reconnect attempts exhausted")

// TokenSource supplies the access token sent as the channel's first
// frame, refreshing it when absent or expired.
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
}

// Config are the channel tunables; all of them come from the top-level
// configuration.
type Config struct {
	URL               string
	ConnectTimeout    time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectTries uint
}

// Manager runs the channel state machine:
//
//	Disconnected → Connecting → AwaitingAuthorization → Authorized
//	                     ↑                                   |
//	                     └──────── Reconnecting ←────────────┘
//
// Abnormal closures re-enter through Reconnecting up to the configured
// bound; a normal closure goes straight to Disconnected with no retry.
type Manager struct {
	cfg    Config
	tokens TokenSource
	dialer *websocket.Dialer
	logger zerolog.Logger

	state atomic.Int32

	// retries counts reconnect attempts since the last authorization
	// ack; only the ack resets it, so a connection that dies before
	// being authorized keeps consuming the budget.
	retries atomic.Uint32

	mu            sync.Mutex
	conn          *websocket.Conn
	generation    uint64
	sessionCtx    context.Context
	sessionCancel context.CancelFunc

	events chan Event
}

// NewManager creates a channel manager. Events() must be drained by
// exactly one consumer.
func NewManager(cfg Config, tokens TokenSource, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		tokens: tokens,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.ConnectTimeout,
		},
		logger: log.With().Str("component", "channel").Logger(),
		events: make(chan Event, 64),
	}
}

// Events returns the stream of channel events for the reconcile loop.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// SetURL retargets the manager at a different stream endpoint. Takes
// effect on the next Connect; callers close the channel first when
// switching brokers.
func (m *Manager) SetURL(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg.URL = url
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

// Connect establishes the channel. The first dial happens synchronously;
// if it fails, the bounded reconnect loop takes over in the background
// and the dial error is returned.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()

	if m.conn != nil {
		m.mu.Unlock()
		return nil
	}

	if m.sessionCancel != nil {
		m.sessionCancel()
	}

	m.sessionCtx, m.sessionCancel = context.WithCancel(context.WithoutCancel(ctx))
	sessionCtx := m.sessionCtx
	m.mu.Unlock()

	m.retries.Store(0)
	m.setState(StateConnecting)

	if err := m.dialAndAuthorize(ctx); err != nil {
		go m.reconnect(sessionCtx)
		return err
	}

	return nil
}

// Close tears the channel down intentionally: normal-closure frame,
// handle discarded, no reconnect. Safe to call repeatedly and when no
// channel is open.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionCancel != nil {
		m.sessionCancel()
		m.sessionCancel = nil
	}

	// Invalidate any running read loop before touching the handle.
	m.generation++

	if m.conn != nil {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")

		if err := m.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			m.logger.Debug().Err(err).Msg("Failed to send close frame")
		}

		_ = m.conn.Close()
		m.conn = nil
	}

	m.retries.Store(0)
	m.setState(StateDisconnected)
}

// dialAndAuthorize performs one connect attempt: refresh the token if
// needed, dial, send the credential frame, start the read loop.
func (m *Manager) dialAndAuthorize(ctx context.Context) error {
	token, err := m.tokens.GetValidToken(ctx)
	if err != nil {
		return fmt.Errorf("cannot authorize channel: %w", err)
	}

	m.mu.Lock()
	url := m.cfg.URL
	m.mu.Unlock()

	conn, resp, err := m.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			m.logger.Debug().Int("status", resp.StatusCode).Msg("Channel handshake rejected")
		}

		return fmt.Errorf("%w: dial %s: %s", models.ErrConnection, url, err)
	}

	// The wire's own handshake: the raw access token goes out as the
	// first frame, distinct from any HTTP auth header.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(token)); err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: sending credential frame: %s", models.ErrConnection, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.generation++
	gen := m.generation
	m.mu.Unlock()

	m.setState(StateAwaitingAuthorization)
	m.emit(ConnectedEvent{})

	go m.readLoop(conn, gen)

	m.logger.Info().Str("url", m.cfg.URL).Msg("Channel connected, awaiting authorization")

	return nil
}

// readLoop consumes frames until the connection dies. It belongs to one
// connection generation; once the manager moves on, its events are
// silently discarded.
func (m *Manager) readLoop(conn *websocket.Conn, gen uint64) {
	authorized := false

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			m.handleClosure(gen, err)
			return
		}

		if !m.currentGeneration(gen) {
			return
		}

		if !authorized {
			if bytes.Equal(bytes.TrimSpace(payload), authAckFrame) {
				authorized = true
				m.retries.Store(0)
				m.setState(StateAuthorized)
				m.emit(AuthorizedEvent{})
				m.logger.Info().Msg("Channel authorized")
			} else {
				// Not yet trusted; drop it.
				m.logger.Debug().Int("bytes", len(payload)).Msg("Ignoring frame received before authorization")
			}

			continue
		}

		m.emit(TelemetryEvent{Payload: payload})
	}
}

// handleClosure classifies a dead connection: the explicit normal-close
// code means intentional teardown, anything else re-enters the state
// machine through Reconnecting.
func (m *Manager) handleClosure(gen uint64, err error) {
	m.mu.Lock()

	if gen != m.generation {
		// A Close or newer connect already superseded this loop.
		m.mu.Unlock()
		return
	}

	m.conn = nil
	sessionCtx := m.sessionCtx
	m.mu.Unlock()

	code := closeCode(err)

	if code == websocket.CloseNormalClosure {
		m.setState(StateDisconnected)
		m.emit(ClosedEvent{Code: code, Normal: true})
		m.logger.Info().Msg("Channel closed normally")

		return
	}

	m.logger.Warn().Err(err).Int("code", code).Msg("Channel closed abnormally, reconnecting")
	m.emit(ClosedEvent{Code: code, Err: err})

	go m.reconnect(sessionCtx)
}

// reconnect retries the dial with a fixed delay up to the configured
// bound. Exhaustion is terminal: it is surfaced once and never silently
// retried.
func (m *Manager) reconnect(ctx context.Context) {
	if ctx == nil || ctx.Err() != nil {
		return
	}

	m.setState(StateReconnecting)

	operation := func() (struct{}, error) {
		attempt := m.retries.Add(1)
		if attempt > uint32(m.cfg.MaxReconnectTries) {
			return struct{}{}, backoff.Permanent(errRetriesExhausted)
		}

		if err := m.dialAndAuthorize(ctx); err != nil {
			m.logger.Warn().
				Err(err).
				Uint32("attempt", attempt).
				Uint("max", m.cfg.MaxReconnectTries).
				Msg("Reconnect attempt failed")

			if errors.Is(err, models.ErrUnauthorized) {
				// The refresher already signed us out; retrying cannot
				// help.
				return struct{}{}, backoff.Permanent(err)
			}

			return struct{}{}, err
		}

		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(m.cfg.ReconnectDelay)),
	)
	if err != nil {
		if ctx.Err() != nil {
			// Torn down intentionally mid-retry; Close already reported.
			return
		}

		m.setState(StateDisconnected)
		m.logger.Error().Err(err).Msg("Channel reconnect attempts exhausted")
		m.emit(ClosedEvent{Err: err, Terminal: true})
	}
}

func (m *Manager) currentGeneration(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return gen == m.generation
}

// emit delivers an event to the reconcile loop. A full buffer blocks the
// sender until the consumer catches up or the session ends: dropping an
// ack would skip the registry reset for the new epoch, and dropping a
// telemetry frame would lose its writes.
func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
		return
	default:
	}

	m.mu.Lock()
	ctx := m.sessionCtx
	m.mu.Unlock()

	if ctx == nil {
		m.logger.Warn().Type("event", ev).Msg("Dropping event with no active session")
		return
	}

	select {
	case m.events <- ev:
	case <-ctx.Done():
		m.logger.Debug().Type("event", ev).Msg("Session ended before event was consumed")
	}
}

func closeCode(err error) int {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code
	}

	return websocket.CloseAbnormalClosure
}
