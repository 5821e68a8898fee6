package models

import "time"

// InitialPageToken is sent with the first command page request
const InitialPageToken = "first page"

// Command is one recorded WebDriver protocol call
type Command struct {
	SessionID  string    `json:"sessionId"`
	CommandID  string    `json:"commandId"`
	Method     string    `json:"method"`
	Command    string    `json:"command"`
	Request    []byte    `json:"request"`
	StatusCode int       `json:"statusCode"`
	Response   []byte    `json:"response"`
	Timestamp  time.Time `json:"timestamp"`
}

// Succeeded reports a 2xx status code
func (c Command) Succeeded() bool {
	return c.StatusCode >= 200 && c.StatusCode < 300
}

// CommandPage is one page of a session's command log
type CommandPage struct {
	Commands     []Command `json:"commands"`
	NewPageToken string    `json:"newPageToken"`
}

// ScreenshotList is the payload of GET /sessions/{id}/screenshots
type ScreenshotList struct {
	Screenshots []string `json:"screenshots"`
}
