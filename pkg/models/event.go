package models

import "encoding/json"

// Event names carried by the push channel
const (
	EventSession = "session"
	EventStatus  = "status"
)

// Event is a single push frame; Payload is decoded according to Name
type Event struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}
