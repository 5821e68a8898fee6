package models

import (
	"strings"
	"time"
)

// SessionState represents the lifecycle state of a browser session
type SessionState string

const (
	StatePending     SessionState = "pending"
	StateRunning     SessionState = "running"
	StateTerminating SessionState = "terminating"
	StateTerminated  SessionState = "terminated"
)

// ParseState normalizes a wire state ("Running", "TERMINATED", ...) to its lower-case form
func ParseState(s string) SessionState {
	return SessionState(strings.ToLower(strings.TrimSpace(s)))
}

// IsTerminal reports whether no further transitions are expected
func (s SessionState) IsTerminal() bool {
	return ParseState(string(s)) == StateTerminated
}

// Session represents a remote browser instance tracked by the farm
type Session struct {
	ID               string       `json:"id"`
	Name             string       `json:"name,omitempty"`
	Image            string       `json:"image,omitempty"`
	Type             string       `json:"type,omitempty"`
	State            SessionState `json:"state"`
	Browser          string       `json:"browser,omitempty"`
	BrowserVersion   string       `json:"browserVersion,omitempty"`
	PlatformName     string       `json:"platformName,omitempty"`
	ScreenResolution string       `json:"screenResolution,omitempty"`
	Manual           bool         `json:"manual,omitempty"`
	VncOn            bool         `json:"vncOn,omitempty"`
	VncPsw           string       `json:"vncPsw,omitempty"`
	LogsOn           bool         `json:"logsOn,omitempty"`
	CreatedAt        int64        `json:"createdAt,omitempty"` // epoch millis
}

// Normalize lower-cases the state and falls back to the id when no name was given
func (s Session) Normalize() Session {
	s.State = ParseState(string(s.State))
	if s.Name == "" {
		s.Name = s.ID
	}
	return s
}

// Created returns CreatedAt as a time value
func (s Session) Created() time.Time {
	return time.UnixMilli(s.CreatedAt)
}

// TerminatedSession is the archived record of a finished session
type TerminatedSession = Session

// TerminatedSessionsResponse is the payload of GET /results/
type TerminatedSessionsResponse struct {
	Items []TerminatedSession `json:"Items"`
}

// SessionDetails is the supplementary record fetched for the active terminated session
type SessionDetails struct {
	ID             string       `json:"id"`
	Browser        string       `json:"browser,omitempty"`
	BrowserVersion string       `json:"browserVersion,omitempty"`
	CreatedAt      int64        `json:"createdAt,omitempty"`
	Image          string       `json:"image,omitempty"`
	Type           string       `json:"type,omitempty"`
	State          SessionState `json:"state,omitempty"`
	LogsRefAddr    string       `json:"logsRefAddr,omitempty"`
	VideoRefAddr   string       `json:"videoRefAddr,omitempty"`
	VncOn          bool         `json:"vncOn,omitempty"`
	LogsOn         bool         `json:"logsOn,omitempty"`
}

// CreateSessionRequest describes a manual session the user asks for
type CreateSessionRequest struct {
	Name             string `json:"sessionName,omitempty"`
	PlatformName     string `json:"platformName,omitempty"`
	Browser          string `json:"browserName"`
	BrowserVersion   string `json:"browserVersion"`
	ScreenResolution string `json:"screenResolution,omitempty"`
	RecordVideo      bool   `json:"recordVideo"`
}
