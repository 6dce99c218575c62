package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/salonbook/mapsync/pkg/streaming"
)

const (
	sendChSize   = 4096
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// connection manages a WebSocket connection with a single write goroutine.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{} // closed on shutdown
	closed bool

	// loops tracks the read and reconnect goroutines, writers the write loop
	loops   sync.WaitGroup
	writers sync.WaitGroup
	// writer is held by whichever goroutine currently writes to conn
	writer sync.Mutex

	wsURL string
	token string

	// replay returns the messages that rebuild the client scene after a reconnect.
	replay func() [][]byte

	baseBackoff time.Duration

	logger *slog.Logger
}

func newConnection(logger *slog.Logger, replay func() [][]byte) *connection {
	return &connection{
		sendCh:      make(chan []byte, sendChSize),
		ackCh:       make(chan streaming.AckMessage, ackChSize),
		done:        make(chan struct{}),
		replay:      replay,
		baseBackoff: time.Second,
		logger:      logger,
	}
}

// dial connects to the WebSocket server and starts read/write loops.
func (c *connection) dial(rawURL, token string) error {
	c.wsURL = rawURL
	c.token = token

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.startLoops()
	c.mu.Unlock()
	return nil
}

// startLoops must be called with mu held so it cannot race close.
func (c *connection) startLoops() {
	c.writers.Add(1)
	c.loops.Add(1)
	go c.writeLoop(c.conn)
	go c.readLoop(c.conn)
}

// dialOnce performs a single WebSocket dial with the access token query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("access_token", c.token)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh and writes messages to conn. It returns on error,
// on shutdown, or once conn has been replaced; the reconnect replay rebuilds
// whatever it dropped.
func (c *connection) writeLoop(conn *ws.Conn) {
	defer c.writers.Done()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			c.mu.Lock()
			current := c.conn
			c.mu.Unlock()

			if current != conn {
				return
			}

			if err := c.write(conn, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.startReconnect(conn)
				return
			}
		}
	}
}

func (c *connection) write(conn *ws.Conn, data []byte) error {
	c.writer.Lock()
	defer c.writer.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// readLoop reads ack messages from conn and routes them to ackCh.
func (c *connection) readLoop(conn *ws.Conn) {
	defer c.loops.Done()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			c.startReconnect(conn)
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}

		if ack.Type == streaming.TypeAck {
			select {
			case c.ackCh <- ack:
			default:
				c.logger.Debug("Ack channel full, dropping", "for", ack.For)
			}
		}
	}
}

// startReconnect drops failed and runs reconnect in a tracked goroutine.
// Only the first caller for a given conn does anything.
func (c *connection) startReconnect(failed *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn == nil || c.conn != failed {
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.loops.Add(1)
	c.mu.Unlock()

	go c.reconnect()
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. On success it replays the current scene and restarts
// the read/write loops.
func (c *connection) reconnect() {
	defer c.loops.Done()

	backoff := c.baseBackoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		timer := time.NewTimer(backoff)
		select {
		case <-c.done:
			timer.Stop()
			return
		case <-timer.C:
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		// the replayed scene supersedes anything queued while disconnected
		c.discardQueued()
		if err := c.replayTo(conn); err != nil {
			c.logger.Warn("Failed to replay scene after reconnect", "error", err)
			_ = conn.Close()
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.startLoops()
		c.mu.Unlock()

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

func (c *connection) replayTo(conn *ws.Conn) error {
	if c.replay == nil {
		return nil
	}
	for _, data := range c.replay() {
		if err := c.write(conn, data); err != nil {
			return err
		}
	}
	return nil
}

func (c *connection) discardQueued() {
	for {
		select {
		case <-c.sendCh:
		default:
			return
		}
	}
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// sendAndWait sends data and blocks until the client acknowledges with a
// matching ack message or the timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
			// Not our ack, keep waiting.
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close flushes queued messages plus final, sends a close frame and waits
// for every goroutine to exit.
func (c *connection) close(final []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.mu.Unlock()

	// messages must not overtake one the write loop is still holding
	c.writers.Wait()

	var err error
	if conn != nil {
		err = c.flush(conn, final)
		c.writer.Lock()
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		c.writer.Unlock()
		if cerr := conn.Close(); err == nil {
			err = cerr
		}
	}

	c.loops.Wait()

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	return err
}

// flush writes whatever is still queued, then final.
func (c *connection) flush(conn *ws.Conn, final []byte) error {
	for {
		select {
		case data := <-c.sendCh:
			if err := c.write(conn, data); err != nil {
				return err
			}
		default:
			if final == nil {
				return nil
			}
			return c.write(conn, final)
		}
	}
}
