package models

import "time"

// SessionStats counts sessions by phase
type SessionStats struct {
	All        int `json:"all"`
	Running    int `json:"running"`
	Connecting int `json:"connecting,omitempty"`
	Queued     int `json:"queued,omitempty"`
}

// SessionStatus is the global quota and usage aggregate
type SessionStatus struct {
	QuotesLimit int           `json:"quotesLimit"`
	MaxTimeout  time.Duration `json:"maxTimeout"`
	Stats       SessionStats  `json:"stats"`
}
