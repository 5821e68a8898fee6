package stream

import (
	"strings"
	"sync"
)

// Lines decodes log frames into UTF-8 lines and keeps the most recent ones
type Lines struct {
	mu    sync.Mutex
	limit int
	lines []string
}

// NewLines keeps at most limit lines; limit <= 0 keeps everything
func NewLines(limit int) *Lines {
	return &Lines{limit: limit}
}

// Decode splits one frame into lines. Invalid UTF-8 is replaced, CRLF endings are trimmed.
func Decode(frame []byte) []string {
	text := strings.ToValidUTF8(string(frame), "�")
	text = strings.TrimRight(text, "\r\n")
	parts := strings.Split(text, "\n")
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(p, "\r")
	}
	return parts
}

// Write decodes a frame and appends its lines
func (l *Lines) Write(frame []byte) []string {
	decoded := Decode(frame)
	l.mu.Lock()
	l.lines = append(l.lines, decoded...)
	if l.limit > 0 && len(l.lines) > l.limit {
		l.lines = append([]string(nil), l.lines[len(l.lines)-l.limit:]...)
	}
	l.mu.Unlock()
	return decoded
}

// Reset drops every line
func (l *Lines) Reset() {
	l.mu.Lock()
	l.lines = nil
	l.mu.Unlock()
}

// All returns a copy of the kept lines
func (l *Lines) All() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}
