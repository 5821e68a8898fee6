// Package details tracks the single active session and the data loaded for it
package details

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shehryarbajwa/browserkube-console/internal/commands"
	"github.com/shehryarbajwa/browserkube-console/internal/logging"
	"github.com/shehryarbajwa/browserkube-console/internal/session"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// API is what the selection needs from the REST client
type API interface {
	Result(ctx context.Context, id string) (models.SessionDetails, error)
	SessionFile(ctx context.Context, id, fileName string) ([]byte, error)
}

// Lookup resolves an id against the session store
type Lookup interface {
	Lookup(id string) (models.Row, bool)
}

// View is a snapshot of the active session and what has been loaded for it
type View struct {
	ID       string
	Row      models.Row
	Details  *models.SessionDetails
	Logs     []byte
	Loading  bool
	Err      error
	Commands commands.Snapshot
}

// Selection owns the active session. Every Select starts a new activation with its own
// context; anything that resolves for an older activation is dropped.
type Selection struct {
	api   API
	store Lookup
	pager *commands.Paginator
	log   zerolog.Logger

	mu       sync.Mutex
	id       string
	gen      uint64
	cancel   context.CancelFunc
	details  *models.SessionDetails
	logs     []byte
	loading  bool
	err      error
	onChange func()
}

// NewSelection creates an empty selection
func NewSelection(api API, store Lookup, pager *commands.Paginator) *Selection {
	return &Selection{
		api:   api,
		store: store,
		pager: pager,
		log:   logging.For("details"),
	}
}

// OnChange registers a callback fired whenever the view changes
func (s *Selection) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Commands exposes the paginator of the active session
func (s *Selection) Commands() *commands.Paginator {
	return s.pager
}

// Select makes id the active session. Previously loaded details, logs and commands are
// cleared and in-flight work for the old activation is cancelled. For a terminated session
// it loads the details, then the log file, then the first command page, and returns once
// that is done or the activation is superseded.
func (s *Selection) Select(ctx context.Context, id string) error {
	row, ok := s.store.Lookup(id)
	if !ok {
		return fmt.Errorf("select %s: %w", id, session.ErrNotFound)
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	actx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.id = id
	s.details = nil
	s.logs = nil
	s.err = nil
	_, terminated := row.(models.TerminatedRow)
	s.loading = terminated
	s.mu.Unlock()

	page := s.pager.Reset(id)
	s.notify()

	if !terminated {
		return nil
	}
	return s.load(actx, gen, page, id)
}

func (s *Selection) load(ctx context.Context, gen, page uint64, id string) error {
	d, err := s.api.Result(ctx, id)
	if err != nil {
		s.apply(gen, func() {
			s.err = err
			s.loading = false
		})
		return fmt.Errorf("load details of %s: %w", id, err)
	}
	if !s.apply(gen, func() { s.details = &d }) {
		return nil
	}

	if d.LogsRefAddr != "" {
		raw, err := s.api.SessionFile(ctx, id, d.LogsRefAddr)
		if err != nil {
			s.log.Warn().Err(err).Str("session_id", id).Msg("⚠️ Failed to load session logs")
		} else if !s.apply(gen, func() { s.logs = raw }) {
			return nil
		}
	}

	if !s.apply(gen, func() { s.loading = false }) {
		return nil
	}

	err = s.pager.NextFor(ctx, page)
	switch {
	case err == nil, errors.Is(err, commands.ErrExhausted), errors.Is(err, commands.ErrBusy),
		errors.Is(err, commands.ErrSuperseded):
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		return err
	}
}

// apply runs fn under the lock only if gen is still the current activation
func (s *Selection) apply(gen uint64, fn func()) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	fn()
	s.mu.Unlock()
	s.notify()
	return true
}

// Clear deselects and cancels in-flight work
func (s *Selection) Clear() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.id = ""
	s.details = nil
	s.logs = nil
	s.err = nil
	s.loading = false
	s.mu.Unlock()

	s.pager.Reset("")
	s.notify()
}

// ID returns the active session id, "" when nothing is selected
func (s *Selection) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// View snapshots the active session
func (s *Selection) View() View {
	s.mu.Lock()
	v := View{
		ID:      s.id,
		Details: s.details,
		Logs:    s.logs,
		Loading: s.loading,
		Err:     s.err,
	}
	s.mu.Unlock()

	if v.ID != "" {
		v.Row, _ = s.store.Lookup(v.ID)
	}
	v.Commands = s.pager.Snapshot()
	return v
}

func (s *Selection) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
