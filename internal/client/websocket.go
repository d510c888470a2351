// ABOUTME: WebSocket client for the live endpoint of a node
// ABOUTME: Reconnects on close, demultiplexes frames and sends control samples
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/VILLASframework/villas-live-go/internal/stats"
	"github.com/VILLASframework/villas-live-go/pkg/webmsg"
)

// Subprotocol is negotiated on every live connection
const Subprotocol = "live"

const (
	DefaultRetryDelay = time.Second
	writeTimeout      = 5 * time.Second
	handshakeTimeout  = 10 * time.Second
)

var ErrNotConnected = errors.New("not connected")

// State of the connection
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

// Config holds client configuration
type Config struct {
	URL           string // ws://host:port/<node>
	RetryDelay    time.Duration
	Layout        webmsg.Layout
	Header        http.Header
	ClientID      string
	OnStateChange func(State, error)
}

// Stats counts traffic since the client was created
type Stats struct {
	Messages     uint64
	Samples      uint64
	DecodeErrors uint64
	Sent         uint64
	Connects     uint64
}

// Client maintains one live connection at a time
type Client struct {
	config Config
	dialer *websocket.Dialer

	mu     sync.RWMutex
	conn   *websocket.Conn
	state  State
	paused bool
	wake   chan struct{}

	writeMu sync.Mutex

	// Samples delivers every decoded sample in arrival order. It is
	// closed when Run returns.
	Samples chan webmsg.Sample

	tracker      *stats.Tracker
	messages     atomic.Uint64
	samples      atomic.Uint64
	decodeErrors atomic.Uint64
	sent         atomic.Uint64
	connects     atomic.Uint64
}

// NewClient creates a new client. Run must be called exactly once.
func NewClient(config Config) *Client {
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	if config.ClientID == "" {
		config.ClientID = uuid.NewString()
	}

	return &Client{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			Subprotocols:     []string{Subprotocol},
		},
		wake:    make(chan struct{}, 1),
		Samples: make(chan webmsg.Sample, 256),
		tracker: stats.NewTracker(),
	}
}

// WebsocketURL derives the live endpoint of node from an API base URL
func WebsocketURL(api, node string) (string, error) {
	u, err := url.Parse(api)
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("api url %q has no host", api)
	}
	if node == "" {
		return "", errors.New("node name is empty")
	}

	live := url.URL{Scheme: u.Scheme, Host: u.Host, User: u.User, Path: "/" + node}
	return live.String(), nil
}

// Run connects and reconnects until ctx is done
func (c *Client) Run(ctx context.Context) error {
	defer close(c.Samples)

	for {
		if err := c.waitUnpaused(ctx); err != nil {
			return nil
		}

		err := c.runOnce(ctx)
		c.setState(StateDisconnected, err)
		if err != nil {
			log.Warn().Err(err).Str("url", c.config.URL).Msg("Connection lost")
		}

		if ctx.Err() != nil {
			return nil
		}
		if c.IsPaused() {
			continue
		}

		log.Debug().Dur("delay", c.config.RetryDelay).Msg("Reconnecting")
		timer := time.NewTimer(c.config.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (c *Client) waitUnpaused(ctx context.Context) error {
	for c.IsPaused() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		}
	}
	return ctx.Err()
}

// runOnce holds one connection until it closes
func (c *Client) runOnce(ctx context.Context) error {
	c.setState(StateConnecting, nil)
	log.Info().Str("url", c.config.URL).Msg("Connecting")

	header := c.config.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("X-Client-Id", c.config.ClientID)

	conn, resp, err := c.dialer.DialContext(ctx, c.config.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial failed: HTTP %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}
	if conn.Subprotocol() != Subprotocol {
		log.Debug().Str("subprotocol", conn.Subprotocol()).Msg("Server did not confirm subprotocol")
	}

	c.mu.Lock()
	if c.paused {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.connects.Add(1)
	c.tracker.Reset()
	c.setState(StateConnected, nil)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.IsPaused() {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}

		if messageType != websocket.BinaryMessage {
			log.Debug().Int("type", messageType).Msg("Ignoring non-binary message")
			continue
		}
		if err := c.handleBinaryMessage(ctx, data); err != nil {
			return nil
		}
	}
}

// handleBinaryMessage delivers every frame of one message. Frames decoded
// before a malformed one are kept.
func (c *Client) handleBinaryMessage(ctx context.Context, data []byte) error {
	received := time.Now()
	c.messages.Add(1)

	samples, err := webmsg.DecodeAllLayout(data, c.config.Layout)
	if err != nil {
		c.decodeErrors.Add(1)
		log.Warn().Err(err).Int("size", len(data)).Int("decoded", len(samples)).Msg("Malformed message")
	}

	for _, s := range samples {
		c.samples.Add(1)
		c.tracker.Observe(s, received)

		select {
		case c.Samples <- s:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Send encodes s as one frame and writes it as one binary message
func (c *Client) Send(s webmsg.Sample) error {
	buf, err := webmsg.Encode(s)
	if err != nil {
		return fmt.Errorf("failed to encode sample: %w", err)
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return fmt.Errorf("failed to send sample: %w", err)
	}
	c.sent.Add(1)
	return nil
}

// Pause closes the connection and suppresses reconnects until Resume
func (c *Client) Pause() {
	c.mu.Lock()
	c.paused = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "paused")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		conn.Close()
	}
	log.Info().Msg("Paused")
}

// Resume reconnects after Pause
func (c *Client) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	log.Info().Msg("Resumed")
}

// IsPaused reports whether Pause is in effect
func (c *Client) IsPaused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// State returns the connection state
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if !changed {
		return
	}
	log.Debug().Stringer("state", state).Msg("Connection state changed")
	if c.config.OnStateChange != nil {
		c.config.OnStateChange(state, err)
	}
}

// Stats returns the traffic counters
func (c *Client) Stats() Stats {
	return Stats{
		Messages:     c.messages.Load(),
		Samples:      c.samples.Load(),
		DecodeErrors: c.decodeErrors.Load(),
		Sent:         c.sent.Load(),
		Connects:     c.connects.Load(),
	}
}

// Tracker exposes delay and sequence statistics of the current connection
func (c *Client) Tracker() *stats.Tracker {
	return c.tracker
}

// NodeName returns the last path element of the configured URL
func (c *Client) NodeName() string {
	u, err := url.Parse(c.config.URL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
