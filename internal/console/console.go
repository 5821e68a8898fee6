// Package console wires the session state layer together: REST snapshots, the push
// channel, the active-session context and its streams
package console

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/shehryarbajwa/browserkube-console/internal/artifacts"
	"github.com/shehryarbajwa/browserkube-console/internal/catalog"
	"github.com/shehryarbajwa/browserkube-console/internal/client"
	"github.com/shehryarbajwa/browserkube-console/internal/commands"
	"github.com/shehryarbajwa/browserkube-console/internal/config"
	"github.com/shehryarbajwa/browserkube-console/internal/details"
	"github.com/shehryarbajwa/browserkube-console/internal/events"
	"github.com/shehryarbajwa/browserkube-console/internal/filter"
	"github.com/shehryarbajwa/browserkube-console/internal/logging"
	"github.com/shehryarbajwa/browserkube-console/internal/session"
	"github.com/shehryarbajwa/browserkube-console/internal/stream"
	"github.com/shehryarbajwa/browserkube-console/internal/webdriver"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// Console owns every component of the session state layer
type Console struct {
	cfg       config.Config
	api       *client.Client
	store     *session.Store
	sessions  *session.Manager
	catalog   *catalog.Manager
	chips     *filter.Chips
	pager     *commands.Paginator
	selection *details.Selection
	streams   *stream.Controller
	artifacts *artifacts.Manager
	conn      *events.Conn
	decoder   *events.Decoder
	log       zerolog.Logger

	mu       sync.RWMutex
	status   models.SessionStatus
	search   string
	toasts   []Toast
	awaiting map[string]time.Time
	refresh  *time.Timer
	runCtx   context.Context
	cancel   context.CancelFunc

	// streamMu serializes opening and closing the active session's streams
	streamMu sync.Mutex

	changed chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Console
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient swaps the HTTP client used for REST calls
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// New builds a console from configuration. Nothing touches the network until Start.
func New(cfg config.Config, opts ...Option) *Console {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Console{
		cfg:      cfg,
		chips:    filter.NewChips(),
		catalog:  catalog.NewManager(),
		log:      logging.For("console"),
		awaiting: make(map[string]time.Time),
		changed:  make(chan struct{}, 1),
		runCtx:   context.Background(),
	}

	c.api = client.New(cfg.BaseURL, cfg.RequestTimeout,
		client.WithHTTPClient(o.httpClient),
		client.WithSessionTimeouts(cfg.CreateSessionTimeout, cfg.DeleteSessionTimeout),
		client.WithErrorHandler(func(err *client.RequestError) {
			c.Notify(LevelError, err.Error())
		}),
	)

	policy := session.PushStateOnly
	if cfg.FullReplaceOnPush {
		policy = session.PushFullReplace
	}
	c.store = session.NewStore(policy)
	c.store.OnChange(c.signal)

	caps := webdriver.DefaultOptions()
	c.sessions = session.NewManager(c.store, c.api, caps)

	c.pager = commands.NewPaginator(c.api, commands.Options{
		PageSize: cfg.CommandsPageSize,
		Throttle: cfg.CommandsThrottle,
		Debounce: cfg.ScrollDebounce,
	})
	c.pager.OnChange(c.signal)
	c.pager.OnError(func(err error) {
		c.Notify(LevelError, fmt.Sprintf("Failed to load commands: %v", err))
	})

	c.selection = details.NewSelection(c.api, c.store, c.pager)
	c.selection.OnChange(c.signal)

	c.streams = stream.NewController(c.api, stream.Options{
		MaxRetries: cfg.StreamMaxRetries,
		MinBackoff: cfg.StreamMinBackoff,
		MaxBackoff: cfg.StreamMaxBackoff,
	})
	c.streams.OnChange(c.signal)

	c.artifacts = artifacts.NewManager(c.api)

	c.decoder = events.NewDecoder(c)
	c.conn = events.NewConn(func(frame []byte) {
		if err := c.decoder.Decode(frame); err != nil {
			c.log.Warn().Err(err).Msg("Dropping push frame")
		}
	})
	c.conn.OnStatus(func(events.Status) { c.signal() })
	return c
}

// Start loads the browser catalog, sessions, terminated sessions and status in parallel,
// connects the push channel and keeps it connected until ctx is cancelled
func (c *Console) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.runCtx = ctx
	c.cancel = cancel
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.catalog.Load(gctx, c.api); err != nil {
			return err
		}
		c.chips.Populate(c.catalog.Raw())
		return nil
	})
	g.Go(func() error { return c.sessions.Fetch(gctx) })
	g.Go(func() error { return c.sessions.FetchTerminated(gctx) })
	g.Go(func() error { return c.fetchStatus(gctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to load console state: %w", err)
	}
	c.log.Info().
		Int("active", len(c.store.Active())).
		Int("terminated", len(c.store.Terminated())).
		Msg("✓ Console state loaded")

	url, err := c.api.EventsURL()
	if err != nil {
		return fmt.Errorf("invalid events url: %w", err)
	}
	if err := c.conn.Connect(ctx, url); err != nil {
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.superviseEvents(ctx, url)
	}()
	return nil
}

// Run starts the console and blocks until ctx is cancelled
func (c *Console) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	c.Close()
	return nil
}

// Close tears down the push channel, streams and pending timers
func (c *Console) Close() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.conn.Disconnect()
	c.streams.Close()
	c.selection.Clear()

	c.mu.Lock()
	if c.refresh != nil {
		c.refresh.Stop()
		c.refresh = nil
	}
	c.mu.Unlock()
	c.wg.Wait()
	c.log.Info().Msg("✅ Console stopped")
}

func (c *Console) fetchStatus(ctx context.Context) error {
	st, err := c.api.Status(ctx)
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}
	c.HandleStatus(st)
	return nil
}

// Changed delivers a coalesced signal after any state change
func (c *Console) Changed() <-chan struct{} {
	return c.changed
}

func (c *Console) signal() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

// Config returns the configuration the console runs with
func (c *Console) Config() config.Config {
	return c.cfg
}

// Store exposes the session store
func (c *Console) Store() *session.Store {
	return c.store
}

// Chips exposes the filter chips
func (c *Console) Chips() *filter.Chips {
	return c.chips
}

// Catalog exposes the browser catalog
func (c *Console) Catalog() *catalog.Manager {
	return c.catalog
}

// Artifacts exposes the bundle manager
func (c *Console) Artifacts() *artifacts.Manager {
	return c.artifacts
}

// Streams exposes the VNC and log stream controller
func (c *Console) Streams() *stream.Controller {
	return c.streams
}

// Client exposes the REST client
func (c *Console) Client() *client.Client {
	return c.api
}

// Connection reports the push channel status
func (c *Console) Connection() events.Status {
	return c.conn.Status()
}

// Status returns the last quota aggregate
func (c *Console) Status() models.SessionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// SetSearch sets the name filter of the session list
func (c *Console) SetSearch(query string) {
	c.mu.Lock()
	c.search = query
	c.mu.Unlock()
	c.signal()
}

// Rows is the merged session list after chip filters and the name search
func (c *Console) Rows() []models.Row {
	c.mu.RLock()
	query := c.search
	c.mu.RUnlock()
	return filter.Search(query, filter.Apply(c.chips.Filter(), c.store.Rows()))
}

// Active returns the view of the selected session
func (c *Console) Active() details.View {
	return c.selection.View()
}
