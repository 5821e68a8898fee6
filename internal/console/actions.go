package console

import (
	"context"
	"fmt"

	"github.com/shehryarbajwa/browserkube-console/internal/artifacts"
	"github.com/shehryarbajwa/browserkube-console/internal/details"
	"github.com/shehryarbajwa/browserkube-console/internal/session"
	"github.com/shehryarbajwa/browserkube-console/internal/stream"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// Select makes id the active session and opens its streams when it is still running
func (c *Console) Select(ctx context.Context, id string) error {
	row, ok := c.store.Lookup(id)
	if !ok {
		return fmt.Errorf("select %s: %w", id, session.ErrNotFound)
	}
	if _, archived := row.(models.TerminatedRow); archived {
		c.streamMu.Lock()
		c.streams.Close()
		c.streamMu.Unlock()
	}
	// streams follow whatever selection won once this call is done, even when another
	// Select or Deselect interleaved with it
	defer c.syncStreams()
	return c.selection.Select(ctx, id)
}

// syncStreams opens the streams of the selected session when it is running and closes
// them otherwise
func (c *Console) syncStreams() {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	id := c.selection.ID()
	row, _ := c.store.Lookup(id)
	r, running := row.(models.ActiveRow)
	if !running || id == "" {
		c.streams.Close()
		return
	}
	if err := c.streams.Open(c.streamContext(), r.S); err != nil {
		c.log.Warn().Err(err).Str("session_id", id).Msg("⚠️ Failed to open streams")
	}
}

// streamContext outlives single requests: streams stay up until deselection or shutdown
func (c *Console) streamContext() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runCtx
}

// Deselect clears the active session and closes its streams
func (c *Console) Deselect() {
	c.selection.Clear()
	c.syncStreams()
}

// ActiveID returns the selected session id
func (c *Console) ActiveID() string {
	return c.selection.ID()
}

// Selection exposes the active-session context
func (c *Console) Selection() *details.Selection {
	return c.selection
}

// Create resolves the request against the catalog and asks the farm for a session
func (c *Console) Create(ctx context.Context, req models.CreateSessionRequest) (string, error) {
	if len(c.catalog.Platforms()) > 0 {
		resolved, err := c.catalog.Resolve(req)
		if err != nil {
			c.Notify(LevelError, err.Error())
			return "", err
		}
		req = resolved
	}

	id, err := c.sessions.Create(ctx, req)
	if err != nil {
		return "", err
	}
	c.Notify(LevelSuccess, fmt.Sprintf("Session %s requested", id))
	return id, nil
}

// CreateStatus reports the state of the last create call
func (c *Console) CreateStatus() session.CreateStatus {
	return c.store.CreateStatus()
}

// Delete asks the farm to terminate a session
func (c *Console) Delete(ctx context.Context, id string) error {
	return c.sessions.Delete(ctx, id)
}

// NextCommands loads the next command page of the active session
func (c *Console) NextCommands(ctx context.Context) error {
	return c.pager.Next(ctx)
}

// NearBottom forwards the scroll signal of the command list
func (c *Console) NearBottom() {
	c.pager.NearBottom(c.streamContext())
}

// Download bundles a terminated session into dir
func (c *Console) Download(ctx context.Context, id, dir string) (string, artifacts.Manifest, error) {
	if _, ok := c.store.GetTerminated(id); !ok {
		if _, active := c.store.Get(id); active {
			return "", artifacts.Manifest{}, fmt.Errorf("session %s is still running", id)
		}
	}
	path, manifest, err := c.artifacts.Save(ctx, id, dir)
	if err != nil {
		c.Notify(LevelError, fmt.Sprintf("Download failed: %v", err))
		return "", artifacts.Manifest{}, err
	}
	c.Notify(LevelSuccess, fmt.Sprintf("Saved %s", path))
	return path, manifest, nil
}

// Screenshot triggers a capture of a running session
func (c *Console) Screenshot(ctx context.Context, id string) error {
	if _, ok := c.store.Get(id); !ok {
		return fmt.Errorf("screenshot %s: %w", id, session.ErrNotFound)
	}
	return c.artifacts.TakeScreenshot(ctx, id)
}

// VNCURL is the upstream VNC socket of a session
func (c *Console) VNCURL(id string) (string, error) {
	return c.api.VNCURL(id)
}

// LogsURL is the upstream live log socket of a session
func (c *Console) LogsURL(id string) (string, error) {
	return c.api.LogsURL(id)
}

// LogLines is the live log tail of the active running session
func (c *Console) LogLines() []string {
	return c.streams.LogLines()
}

// StreamStatus reports the VNC and log socket states of the active session
func (c *Console) StreamStatus() (vnc, logs stream.State) {
	return c.streams.Status()
}
