package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/warfare-dev/extension/pkg/streaming"
)

const (
	outboxSize   = 10_000
	ackBuffer    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
	baseBackoff  = time.Second
)

// replaySet is what a freshly reconnected relay needs to rebuild its
// scoreboard: the rotation header and the latest points message per flag.
type replaySet struct {
	start  []byte
	points map[string][]byte
	order  []string
}

func (r *replaySet) reset(start []byte) {
	r.start = start
	r.points = nil
	r.order = nil
}

func (r *replaySet) setPoints(flag string, data []byte) {
	if r.start == nil {
		return
	}
	if r.points == nil {
		r.points = make(map[string][]byte)
	}
	if _, ok := r.points[flag]; !ok {
		r.order = append(r.order, flag)
	}
	r.points[flag] = data
}

func (r *replaySet) messages() [][]byte {
	if r.start == nil {
		return nil
	}
	out := make([][]byte, 0, 1+len(r.order))
	out = append(out, r.start)
	for _, flag := range r.order {
		out = append(out, r.points[flag])
	}
	return out
}

// connection owns the socket to the relay. One supervisor goroutine pumps
// the outbox and redials when the socket breaks.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	replay replaySet
	closed bool

	outbox chan []byte
	acks   chan streaming.AckMessage
	done   chan struct{}

	target  string
	backoff time.Duration
	logger  *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		outbox:  make(chan []byte, outboxSize),
		acks:    make(chan streaming.AckMessage, ackBuffer),
		done:    make(chan struct{}),
		backoff: baseBackoff,
		logger:  logger,
	}
}

// relayURL appends the shared secret to the relay address.
func relayURL(rawURL, secret string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", secret)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// dial makes the first connection synchronously so Init can report it, then
// hands the socket to the supervisor.
func (c *connection) dial(rawURL, secret string) error {
	target, err := relayURL(rawURL, secret)
	if err != nil {
		return err
	}
	c.target = target

	conn, _, err := ws.DefaultDialer.Dial(target, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.supervise(conn)
	return nil
}

func (c *connection) supervise(conn *ws.Conn) {
	for conn != nil {
		err := c.pump(conn)
		_ = conn.Close()
		if err == nil || c.isClosed() {
			return
		}
		c.logger.Warn("Relay connection lost", "error", err)
		conn = c.redial()
	}
}

func (c *connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// pump writes queued messages until the socket fails or the connection is
// closed. Reads happen on a helper goroutine that exits with the socket.
func (c *connection) pump(conn *ws.Conn) error {
	readErr := make(chan error, 1)
	go func() { readErr <- c.readAcks(conn) }()

	for {
		select {
		case <-c.done:
			return nil
		case err := <-readErr:
			return err
		case data := <-c.outbox:
			if err := writeText(conn, data); err != nil {
				return err
			}
		}
	}
}

func writeText(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// readAcks routes ack frames to waiters. Anything else from the relay is
// ignored.
func (c *connection) readAcks(conn *ws.Conn) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			c.logger.Debug("Ignoring relay message", "raw", string(message))
			continue
		}
		select {
		case c.acks <- ack:
		default:
			c.logger.Debug("Ack buffer full, dropping", "for", ack.For)
		}
	}
}

// redial retries with exponential backoff and replays the current rotation
// on the new socket before anything else is written to it.
func (c *connection) redial() *ws.Conn {
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()

	wait := c.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return nil
		case <-time.After(wait):
		}
		wait = min(wait*2, maxBackoff)

		conn, _, err := ws.DefaultDialer.Dial(c.target, nil)
		if err != nil {
			c.logger.Warn("Relay redial failed", "attempt", attempt, "error", err)
			continue
		}

		c.mu.Lock()
		pending := c.replay.messages()
		c.mu.Unlock()

		if err := replay(conn, pending); err != nil {
			c.logger.Warn("Relay replay failed", "attempt", attempt, "error", err)
			_ = conn.Close()
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("Relay reconnected", "attempt", attempt, "replayed", len(pending))
		return conn
	}

	c.logger.Error("Giving up on relay", "attempts", maxReconnect)
	return nil
}

func replay(conn *ws.Conn, msgs [][]byte) error {
	for _, data := range msgs {
		if err := writeText(conn, data); err != nil {
			return err
		}
	}
	return nil
}

// send queues data for the supervisor and drops it when the outbox is full.
func (c *connection) send(data []byte) {
	select {
	case c.outbox <- data:
	default:
		c.logger.Warn("Relay outbox full, dropping message")
	}
}

// sendAndWait queues data and blocks until the relay acks ackFor.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case ack := <-c.acks:
			if ack.For == ackFor {
				return nil
			}
		case <-deadline.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

func (c *connection) startRotation(data []byte) {
	c.mu.Lock()
	c.replay.reset(data)
	c.mu.Unlock()
}

func (c *connection) endRotation() {
	c.mu.Lock()
	c.replay.reset(nil)
	c.mu.Unlock()
}

func (c *connection) latestPoints(flag string, data []byte) {
	c.mu.Lock()
	c.replay.setPoints(flag, data)
	c.mu.Unlock()
}

// close says goodbye to the relay and stops the supervisor.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return conn.Close()
}
