// Package commands pages through the recorded WebDriver command log of a session
package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/shehryarbajwa/browserkube-console/internal/logging"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

var (
	// ErrExhausted means the last page has been consumed
	ErrExhausted = errors.New("command log exhausted")
	// ErrBusy means a page fetch is already in flight
	ErrBusy = errors.New("command page fetch in flight")
	// ErrNoSession means no session is selected
	ErrNoSession = errors.New("no session selected")
	// ErrSuperseded means the paginator was reset for another session
	ErrSuperseded = errors.New("command paging superseded")
)

// Fetcher loads one page of a command log
type Fetcher interface {
	Commands(ctx context.Context, id, pageToken string, pageSize int) (models.CommandPage, error)
}

// State of the paginator
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
)

// Options tunes paging
type Options struct {
	PageSize int
	// Throttle is the minimum spacing between two page fetches
	Throttle time.Duration
	// Debounce coalesces bursts of NearBottom signals
	Debounce time.Duration
}

// DefaultOptions mirrors the farm UI: 15 commands a page, one page a second, 200ms scroll debounce
func DefaultOptions() Options {
	return Options{PageSize: 15, Throttle: time.Second, Debounce: 200 * time.Millisecond}
}

// Paginator holds the command pages loaded so far for one session
type Paginator struct {
	api     Fetcher
	opts    Options
	limiter *rate.Limiter
	log     zerolog.Logger

	mu        sync.Mutex
	sessionID string
	token     string
	commands  []models.Command
	gen       uint64
	inflight  *semaphore.Weighted
	state     State
	lastErr   error
	timer     *time.Timer
	onChange  func()
	onError   func(error)
}

// NewPaginator creates an idle paginator with no session
func NewPaginator(api Fetcher, opts Options) *Paginator {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultOptions().PageSize
	}
	limit := rate.Inf
	if opts.Throttle > 0 {
		limit = rate.Every(opts.Throttle)
	}
	return &Paginator{
		api:      api,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		log:      logging.For("commands"),
		inflight: semaphore.NewWeighted(1),
		state:    StateIdle,
	}
}

// OnChange registers a callback fired after every page or reset
func (p *Paginator) OnChange(fn func()) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// OnError registers a callback for failed page fetches
func (p *Paginator) OnError(fn func(error)) {
	p.mu.Lock()
	p.onError = fn
	p.mu.Unlock()
}

// Reset drops loaded pages and points the paginator at a new session ("" for none).
// A fetch still in flight for the previous session is discarded when it lands. The returned
// generation scopes NextFor to this session.
func (p *Paginator) Reset(sessionID string) uint64 {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.sessionID = sessionID
	p.commands = nil
	p.lastErr = nil
	p.state = StateIdle
	p.inflight = semaphore.NewWeighted(1)
	p.token = ""
	if sessionID != "" {
		p.token = models.InitialPageToken
	}
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	fn := p.onChange
	p.mu.Unlock()

	if fn != nil {
		fn()
	}
	return gen
}

// Next fetches the page for the current token and appends it. It refuses to run while
// another fetch is in flight or once the token is exhausted. A failure keeps the list and
// the token so the same page is asked for again next time.
func (p *Paginator) Next(ctx context.Context) error {
	return p.next(ctx, 0, false)
}

// NextFor is Next on behalf of the session a Reset returned gen for. Once the paginator
// has moved on it returns ErrSuperseded without touching the newer session.
func (p *Paginator) NextFor(ctx context.Context, gen uint64) error {
	return p.next(ctx, gen, true)
}

func (p *Paginator) next(ctx context.Context, want uint64, scoped bool) error {
	p.mu.Lock()
	if scoped && want != p.gen {
		p.mu.Unlock()
		return ErrSuperseded
	}
	if p.sessionID == "" {
		p.mu.Unlock()
		return ErrNoSession
	}
	if p.token == "" {
		p.mu.Unlock()
		return ErrExhausted
	}
	sem := p.inflight
	if !sem.TryAcquire(1) {
		p.mu.Unlock()
		return ErrBusy
	}
	gen, id, token := p.gen, p.sessionID, p.token
	p.state = StateFetching
	p.mu.Unlock()
	defer sem.Release(1)

	if err := p.limiter.Wait(ctx); err != nil {
		p.finish(gen, nil, p.failure(ctx, err))
		return err
	}

	page, err := p.api.Commands(ctx, id, token, p.opts.PageSize)
	if err != nil {
		if !p.finish(gen, nil, p.failure(ctx, err)) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("fetch commands page for %s: %w", id, err)
	}
	if !p.finish(gen, &page, nil) {
		return nil
	}
	p.log.Debug().
		Str("session_id", id).
		Int("commands", len(page.Commands)).
		Bool("last", page.NewPageToken == "").
		Msg("📄 Command page loaded")
	return nil
}

// failure is the error worth recording; a caller giving up is not one
func (p *Paginator) failure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// finish applies a fetch outcome if its generation is still current
func (p *Paginator) finish(gen uint64, page *models.CommandPage, err error) bool {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return false
	}
	p.state = StateIdle
	if err != nil {
		p.lastErr = err
	} else if page != nil {
		p.lastErr = nil
		p.commands = append(p.commands, page.Commands...)
		p.token = page.NewPageToken
	}
	onChange, onError := p.onChange, p.onError
	p.mu.Unlock()

	if err != nil && onError != nil && !errors.Is(err, context.Canceled) {
		onError(err)
	}
	if onChange != nil {
		onChange()
	}
	return true
}

// NearBottom is the scroll signal: the reader is close to the end of the loaded list.
// Signals are debounced; the trailing one triggers Next.
func (p *Paginator) NearBottom(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	gen := p.gen
	p.timer = time.AfterFunc(p.opts.Debounce, func() {
		err := p.NextFor(ctx, gen)
		if err != nil && !errors.Is(err, ErrBusy) && !errors.Is(err, ErrExhausted) && !errors.Is(err, ErrSuperseded) {
			p.log.Warn().Err(err).Msg("⚠️ Scroll-triggered page fetch failed")
		}
	})
}

// Snapshot is a copy of the paginator state
type Snapshot struct {
	SessionID string
	Commands  []models.Command
	Token     string
	State     State
	Exhausted bool
	Err       error
}

// Snapshot copies the current state
func (p *Paginator) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		SessionID: p.sessionID,
		Commands:  append([]models.Command(nil), p.commands...),
		Token:     p.token,
		State:     p.state,
		Exhausted: p.sessionID != "" && p.token == "",
		Err:       p.lastErr,
	}
}
