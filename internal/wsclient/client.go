// Package wsclient maintains the agent's persistent connection to the server.
package wsclient

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/config"
	"github.com/openclaw/dial-agent-go/internal/endpoint"
	apperrors "github.com/openclaw/dial-agent-go/internal/errors"
	"github.com/openclaw/dial-agent-go/internal/events"
	"github.com/openclaw/dial-agent-go/internal/metrics"
	"github.com/openclaw/dial-agent-go/internal/model"
)

const maxMessageSize = 64 * 1024

// Rebind reasons
const (
	ReasonMissingToken = "missing_token"
	ReasonMissingURL   = "missing_url"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler receives the inbound commands that concern call sessions.
type Handler interface {
	HandleDial(req model.DialRequest)
	HandleDialCancel(cancel model.DialCancel)
	HandleServerCallEnd(cmd model.CallEndCommand)
}

// CredentialSource is owned by the binding flow. The client reads credentials and
// only clears them when the server revokes the device.
type CredentialSource interface {
	Credentials(ctx context.Context) (model.Credentials, error)
	ClearBinding(ctx context.Context) error
}

type Options struct {
	DeviceID   string
	AppVersion string
	Clock      clock.Clock
	Backoff    Backoff
	Metrics    *metrics.Metrics
}

type Client struct {
	creds      CredentialSource
	bus        *events.Bus
	clock      clock.Clock
	backoff    Backoff
	metrics    *metrics.Metrics
	dialer     *websocket.Dialer
	deviceID   string
	appVersion string

	mu             sync.Mutex
	handler        Handler
	state          State
	conn           *websocket.Conn
	generation     uint64
	attempts       int
	stopped        bool
	heartbeatDone  chan struct{}
	reconnectTimer *clock.Timer

	writeMu sync.Mutex
}

func New(creds CredentialSource, bus *events.Bus, opts Options) *Client {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	backoff := opts.Backoff
	if backoff.MaxAttempts == 0 {
		backoff = DefaultBackoff()
	}

	return &Client{
		creds:      creds,
		bus:        bus,
		clock:      clk,
		backoff:    backoff,
		metrics:    opts.Metrics,
		dialer:     &websocket.Dialer{HandshakeTimeout: config.ConnectionDialTimeout},
		deviceID:   opts.DeviceID,
		appVersion: opts.AppVersion,
	}
}

// SetHandler wires the receiver of inbound call commands.
func (c *Client) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

// Attempts returns the number of consecutive reconnect attempts scheduled.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect establishes the connection. It is a no-op while connecting or connected.
// Missing credentials fail with a precondition error and are never retried.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.stopped = false
	c.cancelReconnectLocked()
	c.state = StateConnecting
	c.mu.Unlock()

	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return apperrors.Storage(err)
	}

	if creds.ConnectionToken == "" {
		return c.needRebind(ReasonMissingToken)
	}
	url := endpoint.NormalizeConnectionURL(creds.ConnectionURL)
	if url == "" {
		return c.needRebind(ReasonMissingURL)
	}

	log.Info().Str("component", "wsclient").Str("url", url).Msg("connecting")

	dialCtx, cancel := context.WithTimeout(ctx, config.ConnectionDialTimeout)
	conn, _, err := c.dialer.DialContext(dialCtx, endpoint.WithToken(url, creds.ConnectionToken), nil)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("component", "wsclient").Msg("connection failed")
		c.setState(StateDisconnected)
		c.bus.Publish(events.NewEvent(events.TypeError, "", map[string]string{"error": err.Error()}))
		c.scheduleReconnect()
		return apperrors.Connectivity(err)
	}
	conn.SetReadLimit(maxMessageSize)

	c.mu.Lock()
	if c.stopped {
		c.state = StateDisconnected
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.generation++
	gen := c.generation
	c.startHeartbeatLocked()
	c.mu.Unlock()

	log.Info().Str("component", "wsclient").Msg("connected")

	c.sendDeviceOnline()
	c.bus.Publish(events.NewEvent(events.TypeConnected, "", nil))

	go c.readLoop(conn, gen)
	return nil
}

func (c *Client) needRebind(reason string) error {
	c.setState(StateDisconnected)
	log.Warn().Str("component", "wsclient").Str("reason", reason).Msg("device needs rebinding")
	c.bus.Publish(events.NewEvent(events.TypeNeedRebind, "", map[string]string{"reason": reason}))
	return apperrors.Precondition(reason)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// Disconnect tears down the socket and every timer. No reconnect follows.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.stopped = true
	c.cancelReconnectLocked()
	c.stopHeartbeatLocked()
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.generation++
	c.mu.Unlock()

	if conn == nil {
		return
	}

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(config.ConnectionWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	_ = conn.Close()

	log.Info().Str("component", "wsclient").Msg("disconnected")
}

func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("component", "wsclient").Msg("unexpected close")
			}
			c.handleClose(gen)
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Warn().Err(err).Str("component", "wsclient").Msg("failed to parse message")
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) handleClose(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.conn == nil {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.stopHeartbeatLocked()
	c.mu.Unlock()

	_ = conn.Close()
	log.Info().Str("component", "wsclient").Msg("connection closed")
	c.bus.Publish(events.NewEvent(events.TypeDisconnected, "", nil))

	c.scheduleReconnect()
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.stopped || c.reconnectTimer != nil {
		c.mu.Unlock()
		return
	}
	if !c.backoff.ShouldRetry(c.attempts) {
		attempts := c.attempts
		c.mu.Unlock()

		log.Error().Str("component", "wsclient").Int("attempts", attempts).Msg("max reconnect attempts reached")
		c.bus.Publish(events.NewEvent(events.TypeMaxReconnect, "", map[string]int{"attempts": attempts}))
		return
	}

	c.attempts++
	attempt := c.attempts
	delay := c.backoff.Delay(attempt)
	c.reconnectTimer = c.clock.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			return
		}
		if err := c.Connect(context.Background()); err != nil {
			log.Debug().Err(err).Str("component", "wsclient").Int("attempt", attempt).Msg("reconnect attempt failed")
		}
	})
	c.mu.Unlock()

	c.metrics.ReconnectAttempt()
	log.Info().Str("component", "wsclient").Int("attempt", attempt).Dur("delay", delay).Msg("reconnect scheduled")
}

func (c *Client) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Client) startHeartbeatLocked() {
	c.stopHeartbeatLocked()

	done := make(chan struct{})
	c.heartbeatDone = done
	ticker := c.clock.Ticker(config.HeartbeatInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if c.Connected() {
					_ = c.Send(model.TypeHeartbeat, nil)
				}
			}
		}
	}()
}

func (c *Client) stopHeartbeatLocked() {
	if c.heartbeatDone != nil {
		close(c.heartbeatDone)
		c.heartbeatDone = nil
	}
}
