package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/shehryarbajwa/browserkube-console/internal/logging"
)

// Status tracks the shared push connection
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusEstablishing Status = "establishing"
	StatusConnected    Status = "connected"
)

// ErrSuperseded is returned when a newer Connect or a Disconnect won the race
var ErrSuperseded = errors.New("connection superseded")

// FrameFunc receives frames in arrival order from a single goroutine. It must not call
// Connect or Disconnect.
type FrameFunc func(frame []byte)

// Conn owns the single live push socket. The raw handle never leaves this type.
type Conn struct {
	dialer  *websocket.Dialer
	onFrame FrameFunc
	log     zerolog.Logger

	// held while a frame is delivered; a generation bump waits for it
	deliver sync.Mutex

	mu      sync.Mutex
	ws      *websocket.Conn
	gen     uint64
	url     string
	status  Status
	lastErr error
	done    chan struct{}
	watch   []func(Status)
}

// NewConn creates a disconnected manager
func NewConn(onFrame FrameFunc) *Conn {
	done := make(chan struct{})
	close(done)
	return &Conn{
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		onFrame: onFrame,
		log:     logging.For("events"),
		status:  StatusDisconnected,
		done:    done,
	}
}

// OnStatus registers a callback for status transitions. Callbacks run with the manager
// locked and must not call back into it.
func (c *Conn) OnStatus(fn func(Status)) {
	c.mu.Lock()
	c.watch = append(c.watch, fn)
	c.mu.Unlock()
}

// Connect replaces any live socket with a new one to url
func (c *Conn) Connect(ctx context.Context, url string) error {
	c.deliver.Lock()
	c.mu.Lock()
	c.closeLocked()
	c.gen++
	gen := c.gen
	c.url = url
	c.lastErr = nil
	c.setStatusLocked(StatusEstablishing)
	c.mu.Unlock()
	c.deliver.Unlock()

	ws, _, err := c.dialer.DialContext(ctx, url, nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		if ws != nil {
			ws.Close()
		}
		return ErrSuperseded
	}
	if err != nil {
		c.lastErr = err
		c.setStatusLocked(StatusDisconnected)
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c.ws = ws
	c.done = make(chan struct{})
	c.setStatusLocked(StatusConnected)
	c.log.Info().Str("url", url).Msg("✓ Event channel connected")

	go c.readLoop(ws, gen, c.done)
	return nil
}

// Disconnect closes the live socket, if any. No frame is delivered once it returns.
func (c *Conn) Disconnect() {
	c.deliver.Lock()
	defer c.deliver.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.closeLocked()
	c.setStatusLocked(StatusDisconnected)
}

// Status returns the current connection status
func (c *Conn) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the last connection error
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// URL returns the address of the last Connect
func (c *Conn) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// Done is closed when the current connection ends for any reason
func (c *Conn) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Conn) readLoop(ws *websocket.Conn, gen uint64, done chan struct{}) {
	defer close(done)
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if gen == c.gen {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.lastErr = err
					c.log.Warn().Err(err).Msg("Event channel dropped")
				}
				c.ws = nil
				c.setStatusLocked(StatusDisconnected)
			}
			c.mu.Unlock()
			ws.Close()
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		c.deliverFrame(gen, data)
	}
}

// deliverFrame hands data to onFrame unless a newer Connect or a Disconnect retired gen
func (c *Conn) deliverFrame(gen uint64, data []byte) {
	if c.onFrame == nil {
		return
	}
	c.deliver.Lock()
	defer c.deliver.Unlock()
	c.mu.Lock()
	current := gen == c.gen
	c.mu.Unlock()
	if current {
		c.onFrame(data)
	}
}

func (c *Conn) closeLocked() {
	if c.ws == nil {
		return
	}
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.ws.Close()
	c.ws = nil
}

func (c *Conn) setStatusLocked(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	for _, fn := range c.watch {
		fn(s)
	}
}
