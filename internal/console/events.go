package console

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// HandleSessions merges a pushed session array into the store. Sessions the push removed
// are expected to show up in the terminated results shortly, so a refresh of those is
// scheduled; the streams of a removed active session are closed.
func (c *Console) HandleSessions(list []models.Session) {
	out := c.store.Apply(list)
	if len(out.Removed) == 0 {
		return
	}

	active := c.selection.ID()
	now := time.Now()
	c.mu.Lock()
	for _, id := range out.Removed {
		c.awaiting[id] = now
	}
	c.mu.Unlock()

	for _, id := range out.Removed {
		if id == active {
			c.syncStreams()
		}
	}
	c.scheduleResultsRefresh()
}

// HandleStatus replaces the quota aggregate
func (c *Console) HandleStatus(status models.SessionStatus) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
	c.signal()
}

func (c *Console) scheduleResultsRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refresh != nil {
		c.refresh.Stop()
	}
	c.refresh = time.AfterFunc(c.cfg.ResultsRefreshWait, c.refreshResults)
}

// refreshResults reloads terminated sessions and reports ids the push removed that the
// archive does not know about
func (c *Console) refreshResults() {
	c.mu.RLock()
	ctx := c.runCtx
	c.mu.RUnlock()
	if ctx.Err() != nil {
		return
	}

	if err := c.sessions.FetchTerminated(ctx); err != nil {
		c.log.Warn().Err(err).Msg("⚠️ Failed to refresh terminated sessions")
		return
	}

	c.mu.Lock()
	pending := c.awaiting
	c.awaiting = make(map[string]time.Time)
	c.mu.Unlock()

	for id, removedAt := range pending {
		if _, ok := c.store.GetTerminated(id); ok {
			continue
		}
		c.log.Warn().
			Str("session_id", id).
			Dur("since", time.Since(removedAt)).
			Msg("Terminated session missing from results")
	}

	// a selected session that just finished switches over to its archived record
	if id := c.selection.ID(); id != "" {
		if _, ok := pending[id]; ok {
			if _, archived := c.store.GetTerminated(id); archived {
				go c.Select(ctx, id)
			}
		}
	}
}

// superviseEvents redials the push channel whenever it drops and reloads the REST
// snapshots after every reconnect, since pushes sent while offline are lost
func (c *Console) superviseEvents(ctx context.Context, url string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.conn.Done():
		}
		if ctx.Err() != nil {
			return
		}

		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = c.cfg.StreamMinBackoff
		exp.MaxInterval = c.cfg.StreamMaxBackoff
		exp.MaxElapsedTime = 0

		err := backoff.RetryNotify(func() error {
			return c.conn.Connect(ctx, url)
		}, backoff.WithContext(exp, ctx), func(err error, wait time.Duration) {
			c.log.Warn().Err(err).Dur("backoff", wait).Msg("Event channel reconnect failed, backing off")
		})
		if err != nil {
			return
		}

		c.log.Info().Msg("🔄 Event channel restored, reloading snapshots")
		if err := c.sessions.Fetch(ctx); err != nil {
			c.log.Warn().Err(err).Msg("⚠️ Failed to reload sessions")
		}
		if err := c.sessions.FetchTerminated(ctx); err != nil {
			c.log.Warn().Err(err).Msg("⚠️ Failed to reload terminated sessions")
		}
		if err := c.fetchStatus(ctx); err != nil {
			c.log.Warn().Err(err).Msg("⚠️ Failed to reload status")
		}
	}
}
