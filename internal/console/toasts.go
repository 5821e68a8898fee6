package console

import (
	"time"

	"github.com/google/uuid"
)

// Level of a toast
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// maxToasts bounds the notification list
const maxToasts = 20

// Toast is a user-facing notification that closes itself after the configured delay
type Toast struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Created time.Time `json:"created"`
}

// Notify publishes a toast and returns its id
func (c *Console) Notify(level Level, message string) string {
	t := Toast{
		ID:      uuid.New().String(),
		Level:   level,
		Message: message,
		Created: time.Now(),
	}

	c.mu.Lock()
	c.toasts = append(c.toasts, t)
	if len(c.toasts) > maxToasts {
		c.toasts = c.toasts[len(c.toasts)-maxToasts:]
	}
	c.mu.Unlock()

	switch level {
	case LevelError:
		c.log.Error().Str("toast_id", t.ID).Msg(message)
	default:
		c.log.Info().Str("toast_id", t.ID).Msg(message)
	}

	if c.cfg.ToastAutoClose > 0 {
		time.AfterFunc(c.cfg.ToastAutoClose, func() { c.Dismiss(t.ID) })
	}
	c.signal()
	return t.ID
}

// Dismiss removes a toast; unknown ids are ignored
func (c *Console) Dismiss(id string) {
	c.mu.Lock()
	removed := false
	for i, t := range c.toasts {
		if t.ID == id {
			c.toasts = append(c.toasts[:i:i], c.toasts[i+1:]...)
			removed = true
			break
		}
	}
	c.mu.Unlock()
	if removed {
		c.signal()
	}
}

// Toasts returns the visible toasts, oldest first
func (c *Console) Toasts() []Toast {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Toast(nil), c.toasts...)
}
