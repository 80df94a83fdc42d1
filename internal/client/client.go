// Package client implements the reconnecting push-channel client. It holds
// one channel to the notification service, authenticates on open, and
// redials forever on loss with a fixed delay. Transient failures are never
// surfaced to the caller; the loop only ends with its context.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/renshaw/taskwire/internal/models"
)

// DefaultRetryDelay is the fixed pause between a lost channel and the next
// connect attempt.
const DefaultRetryDelay = 3 * time.Second

// DefaultToastDuration bounds how long an in-app toast stays visible.
const DefaultToastDuration = 5 * time.Second

// State of the channel as seen by this client.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateOpen          State = "open"
	StateAuthenticated State = "authenticated"
)

// Alerter surfaces user-facing alerts for identity-scoped notifications.
// Alert is the native notification path, gated by host permission; Toast is
// the in-app path and always fires.
type Alerter interface {
	Alert(title, body string)
	Toast(message string, duration time.Duration)
}

// Handler processes one inbound notification.
type Handler func(n models.Notification)

// Client is a reconnecting push channel for one identity.
type Client struct {
	url           string
	origin        string
	identity      string
	retryDelay    time.Duration
	toastDuration time.Duration
	logger        *slog.Logger
	alerter       Alerter

	mu       sync.Mutex
	handlers map[string]Handler
	state    State
	conn     *websocket.Conn
}

// Option configures a Client.
type Option func(*Client)

// WithRetryDelay overrides the fixed reconnect delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// WithAlerter installs the user-facing alert sink.
func WithAlerter(a Alerter) Option {
	return func(c *Client) { c.alerter = a }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for serverURL (ws:// or wss://) and identity.
func New(serverURL, identity string, opts ...Option) *Client {
	c := &Client{
		url:           serverURL,
		origin:        originFromWS(serverURL),
		identity:      identity,
		retryDelay:    DefaultRetryDelay,
		toastDuration: DefaultToastDuration,
		logger:        slog.Default(),
		handlers:      make(map[string]Handler),
		state:         StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle registers a handler for one notification type. Must be called
// before Run.
func (c *Client) Handle(typ string, h Handler) {
	c.mu.Lock()
	c.handlers[typ] = h
	c.mu.Unlock()
}

// State returns the current channel state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run drives the connect/authenticate/receive loop until ctx is done.
// It never returns an error for channel loss; it waits the fixed delay and
// dials again.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}

		c.setState(StateConnecting)
		conn, err := websocket.Dial(c.url, "", c.origin)
		if err != nil {
			c.logger.Warn("client: dial failed",
				slog.String("url", c.url),
				slog.String("error", err.Error()))
			c.setState(StateDisconnected)
			if !c.waitRetry(ctx) {
				return
			}
			continue
		}

		c.runConn(ctx, conn)

		c.setState(StateDisconnected)
		if !c.waitRetry(ctx) {
			return
		}
	}
}

// runConn owns one live connection: authenticate, then receive until the
// connection dies or ctx is canceled.
func (c *Client) runConn(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	// Unblock the decode loop when the session ends.
	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-connDone:
		}
	}()
	defer func() {
		_ = conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	auth := models.AuthFrame{Type: models.TypeAuthenticate, UserID: c.identity}
	if err := json.NewEncoder(conn).Encode(auth); err != nil {
		c.logger.Warn("client: authenticate send failed", slog.String("error", err.Error()))
		return
	}
	c.setState(StateAuthenticated)
	c.logger.Info("client: channel authenticated", slog.String("identity", c.identity))

	decoder := json.NewDecoder(conn)
	for {
		var n models.Notification
		if err := decoder.Decode(&n); err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, io.EOF) {
				c.logger.Warn("client: receive failed", slog.String("error", err.Error()))
			}
			return
		}
		c.dispatch(n)
	}
}

// dispatch routes one notification through the handler table. Unknown
// types are logged and ignored; a handler panic would take the loop down,
// so handlers are expected to be trivial.
func (c *Client) dispatch(n models.Notification) {
	switch n.Type {
	case models.TypeTaskAssigned:
		var d models.TaskAssignedData
		if err := json.Unmarshal(n.Data, &d); err == nil {
			c.surfaceAlert("New Task Assigned", d.TaskTitle)
		}
	case models.TypeTaskReminder:
		var d models.TaskReminderData
		if err := json.Unmarshal(n.Data, &d); err == nil {
			c.surfaceAlert("Task Reminder", d.TaskTitle)
		}
	case models.TypeConnectionEstablished, models.TypeTaskUpdate,
		models.TypeUnreadNotifications, models.TypeFileSystemChange:
		// Known types with no built-in side effect.
	default:
		c.logger.Warn("client: unknown notification type", slog.String("type", n.Type))
		return
	}

	c.mu.Lock()
	h := c.handlers[n.Type]
	c.mu.Unlock()
	if h != nil {
		h(n)
	}
}

func (c *Client) surfaceAlert(title, body string) {
	if c.alerter == nil {
		return
	}
	c.alerter.Alert(title, body)
	c.alerter.Toast(title+": "+body, c.toastDuration)
}

// waitRetry pauses for the fixed delay. Returns false when ctx ended, so
// no reconnect timer outlives the owning session.
func (c *Client) waitRetry(ctx context.Context) bool {
	timer := time.NewTimer(c.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// originFromWS derives the handshake origin from a ws(s) URL.
func originFromWS(wsURL string) string {
	switch {
	case strings.HasPrefix(wsURL, "wss://"):
		return "https://" + strings.TrimPrefix(wsURL, "wss://")
	case strings.HasPrefix(wsURL, "ws://"):
		return "http://" + strings.TrimPrefix(wsURL, "ws://")
	default:
		return wsURL
	}
}
