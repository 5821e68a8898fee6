package events

import (
	"encoding/json"
	"fmt"

	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// Handler consumes decoded push frames
type Handler interface {
	HandleSessions(sessions []models.Session)
	HandleStatus(status models.SessionStatus)
}

// Decoder classifies raw frames by their name discriminator
type Decoder struct {
	handler Handler
}

// NewDecoder creates a decoder dispatching to h
func NewDecoder(h Handler) *Decoder {
	return &Decoder{handler: h}
}

// Decode handles one frame. Unknown names are ignored; malformed frames return an error
// and leave the handler untouched.
func (d *Decoder) Decode(frame []byte) error {
	var ev models.Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		return fmt.Errorf("malformed push frame: %w", err)
	}

	switch ev.Name {
	case models.EventSession:
		var sessions []models.Session
		if err := json.Unmarshal(ev.Payload, &sessions); err != nil {
			return fmt.Errorf("malformed session payload: %w", err)
		}
		d.handler.HandleSessions(sessions)
	case models.EventStatus:
		var status models.SessionStatus
		if err := json.Unmarshal(ev.Payload, &status); err != nil {
			return fmt.Errorf("malformed status payload: %w", err)
		}
		d.handler.HandleStatus(status)
	}
	return nil
}
