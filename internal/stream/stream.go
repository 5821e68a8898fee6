// Package stream keeps the VNC and log sockets of the active session alive
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/shehryarbajwa/browserkube-console/internal/logging"
)

// State of a supervised stream
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateRetrying   State = "retrying"
	StateFailed     State = "failed"
	StateClosed     State = "closed"
)

// Options bounds the reconnect loop
type Options struct {
	MaxRetries int
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// DefaultOptions retries five times between 500ms and 15s
func DefaultOptions() Options {
	return Options{MaxRetries: 5, MinBackoff: 500 * time.Millisecond, MaxBackoff: 15 * time.Second}
}

// FrameFunc receives every message read from the socket
type FrameFunc func(messageType int, data []byte)

// Stream is one supervised websocket. A dropped connection is redialled with exponential
// backoff until MaxRetries consecutive attempts fail; a successful open resets the count.
type Stream struct {
	name    string
	dialer  *websocket.Dialer
	opts    Options
	onFrame FrameFunc
	log     zerolog.Logger

	mu      sync.Mutex
	state   State
	url     string
	cancel  context.CancelFunc
	done    chan struct{}
	conn    *websocket.Conn
	lastErr error
	onState func(State)
}

// New creates a closed stream
func New(name string, opts Options, onFrame FrameFunc) *Stream {
	return &Stream{
		name:    name,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		opts:    opts,
		onFrame: onFrame,
		log:     logging.For("stream").With().Str("stream", name).Logger(),
		state:   StateClosed,
	}
}

// OnState registers a callback for state transitions
func (s *Stream) OnState(fn func(State)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

// Open closes any running connection and starts supervising url
func (s *Stream) Open(ctx context.Context, url string) {
	s.Close()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.url = url
	s.cancel = cancel
	s.done = done
	s.lastErr = nil
	s.mu.Unlock()

	s.setState(StateConnecting)
	go s.run(ctx, url, done)
}

// Close stops the stream and waits for its goroutine
func (s *Stream) Close() {
	s.mu.Lock()
	cancel, done, conn := s.cancel, s.done, s.conn
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		conn.Close()
	}
	<-done
}

// State returns the current state
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that ended the last attempt
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// URL returns the address being supervised
func (s *Stream) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Done is closed when the current supervision loop ends; nil when closed
func (s *Stream) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Stream) run(ctx context.Context, url string, done chan struct{}) {
	defer close(done)

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.opts.MinBackoff
	exp.MaxInterval = s.opts.MaxBackoff
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.opts.MaxRetries)), ctx)

	operation := func() error {
		conn, _, err := s.dialer.DialContext(ctx, url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("dial %s: %w", s.name, err)
		}

		// a blocked ReadMessage only returns once the socket is closed
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		s.setState(StateOpen)
		s.log.Info().Str("url", url).Msg("✅ Stream connected")
		policy.Reset()

		err = s.read(conn)
		conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()

		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.setState(StateRetrying)
		s.log.Warn().Err(err).Dur("backoff", wait).Msg("Stream dropped, backing off")
	}

	err := backoff.RetryNotify(operation, policy, notify)
	switch {
	case ctx.Err() != nil, websocket.IsCloseError(err, websocket.CloseNormalClosure):
		s.setState(StateClosed)
	case err != nil:
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.setState(StateFailed)
		s.log.Error().Err(err).Msg("❌ Stream gave up reconnecting")
	default:
		s.setState(StateClosed)
	}
}

func (s *Stream) read(conn *websocket.Conn) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("Stream read error")
			}
			return err
		}
		if s.onFrame != nil {
			s.onFrame(messageType, data)
		}
	}
}

// Send writes a message on the open connection
func (s *Stream) Send(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return errNotOpen
	}
	return s.conn.WriteMessage(messageType, data)
}

var errNotOpen = errors.New("stream is not open")

func (s *Stream) setState(state State) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	fn := s.onState
	s.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}
