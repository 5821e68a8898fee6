package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shehryarbajwa/browserkube-console/internal/logging"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// Endpoints derives the socket addresses of a session
type Endpoints interface {
	VNCURL(id string) (string, error)
	LogsURL(id string) (string, error)
}

// maxLogLines bounds the live log buffer
const maxLogLines = 5000

// Controller opens the VNC and log streams for the selected running session and closes
// them when the selection goes away or moves to another id
type Controller struct {
	endpoints Endpoints
	vnc       *Stream
	logs      *Stream
	lines     *Lines
	log       zerolog.Logger

	mu       sync.Mutex
	id       string
	vncFrame func([]byte)
	onChange func()
}

// NewController creates a controller with both streams closed
func NewController(endpoints Endpoints, opts Options) *Controller {
	c := &Controller{
		endpoints: endpoints,
		lines:     NewLines(maxLogLines),
		log:       logging.For("stream"),
	}
	c.vnc = New("vnc", opts, func(_ int, data []byte) {
		c.mu.Lock()
		fn := c.vncFrame
		c.mu.Unlock()
		if fn != nil {
			fn(data)
		}
	})
	c.logs = New("logs", opts, func(_ int, data []byte) {
		c.lines.Write(data)
		c.changed()
	})
	c.vnc.OnState(func(State) { c.changed() })
	c.logs.OnState(func(State) { c.changed() })
	return c
}

// OnChange registers a callback for new log lines and state transitions
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// OnVNCFrame registers a consumer for raw VNC frames
func (c *Controller) OnVNCFrame(fn func([]byte)) {
	c.mu.Lock()
	c.vncFrame = fn
	c.mu.Unlock()
}

// Open starts both streams for a running session. Opening the id already open is a no-op;
// a terminated session only closes what is open.
func (c *Controller) Open(ctx context.Context, s models.Session) error {
	c.mu.Lock()
	same := c.id == s.ID
	c.mu.Unlock()
	if same && !s.State.IsTerminal() {
		return nil
	}

	c.Close()
	if s.State.IsTerminal() {
		return nil
	}

	vncURL, err := c.endpoints.VNCURL(s.ID)
	if err != nil {
		return fmt.Errorf("vnc url for %s: %w", s.ID, err)
	}
	logsURL, err := c.endpoints.LogsURL(s.ID)
	if err != nil {
		return fmt.Errorf("logs url for %s: %w", s.ID, err)
	}

	c.mu.Lock()
	c.id = s.ID
	c.mu.Unlock()

	c.vnc.Open(ctx, vncURL)
	c.logs.Open(ctx, logsURL)
	c.log.Info().Str("session_id", s.ID).Msg("📺 Streams opened")
	return nil
}

// Close stops both streams and drops buffered log lines
func (c *Controller) Close() {
	c.mu.Lock()
	id := c.id
	c.id = ""
	c.mu.Unlock()

	c.vnc.Close()
	c.logs.Close()
	c.lines.Reset()
	if id != "" {
		c.log.Info().Str("session_id", id).Msg("Streams closed")
		c.changed()
	}
}

// ID returns the session whose streams are open
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Status reports both stream states
func (c *Controller) Status() (vnc, logs State) {
	return c.vnc.State(), c.logs.State()
}

// LogLines returns the buffered live log
func (c *Controller) LogLines() []string {
	return c.lines.All()
}

// SendVNC forwards input to the VNC socket
func (c *Controller) SendVNC(messageType int, data []byte) error {
	return c.vnc.Send(messageType, data)
}

func (c *Controller) changed() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
