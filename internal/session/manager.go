package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shehryarbajwa/browserkube-console/internal/client"
	"github.com/shehryarbajwa/browserkube-console/internal/logging"
	"github.com/shehryarbajwa/browserkube-console/internal/webdriver"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// API is the slice of the REST client the manager needs
type API interface {
	Sessions(ctx context.Context) ([]models.Session, error)
	Results(ctx context.Context) ([]models.TerminatedSession, error)
	CreateSession(ctx context.Context, capabilities any) (client.CreateSessionResponse, error)
	DeleteSession(ctx context.Context, id string) error
}

// Manager runs the session REST operations against the store
type Manager struct {
	store *Store
	api   API
	caps  webdriver.Options
	log   zerolog.Logger
}

// NewManager creates a session manager
func NewManager(store *Store, api API, caps webdriver.Options) *Manager {
	return &Manager{
		store: store,
		api:   api,
		caps:  caps,
		log:   logging.For("session"),
	}
}

// Store exposes the underlying store
func (m *Manager) Store() *Store {
	return m.store
}

// Fetch replaces the active map with GET /sessions/
func (m *Manager) Fetch(ctx context.Context) error {
	list, err := m.api.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("fetch sessions: %w", err)
	}
	m.store.ReplaceActive(list)
	return nil
}

// FetchTerminated replaces the terminated map with GET /results/
func (m *Manager) FetchTerminated(ctx context.Context) error {
	list, err := m.api.Results(ctx)
	if err != nil {
		return fmt.Errorf("fetch terminated sessions: %w", err)
	}
	m.store.ReplaceTerminated(list)
	return nil
}

// Create asks the farm for a new session. The store is not touched beyond the create status;
// the session shows up when its first push arrives.
func (m *Manager) Create(ctx context.Context, req models.CreateSessionRequest) (string, error) {
	caps, err := webdriver.Build(req, m.caps)
	if err != nil {
		return "", err
	}

	m.store.SetCreateStatus(CreatePending)
	resp, err := m.api.CreateSession(ctx, caps)
	if err != nil {
		m.store.SetCreateStatus(CreateRejected)
		return "", fmt.Errorf("create session: %w", err)
	}

	// a push may already have flipped the status
	if m.store.CreateStatus() == CreatePending {
		m.store.SetCreateStatus(CreateFulfilled)
	}
	m.log.Info().
		Str("session_id", resp.Value.SessionID).
		Str("browser", req.Browser).
		Str("version", req.BrowserVersion).
		Msg("🚀 Session requested")
	return resp.Value.SessionID, nil
}

// Delete marks the session terminating and issues the DELETE. Removal waits for the push.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if _, ok := m.store.Get(id); !ok {
		return ErrNotFound
	}
	if err := m.store.UpdateState(id, models.StateTerminating); err != nil {
		return err
	}

	if err := m.api.DeleteSession(ctx, id); err != nil {
		m.log.Warn().Err(err).Str("session_id", id).Msg("⚠️ Delete request failed, waiting for push to settle state")
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	m.log.Info().Str("session_id", id).Msg("🔌 Session termination requested")
	return nil
}
