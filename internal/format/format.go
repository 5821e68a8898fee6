// Package format renders session and command values for display
package format

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// Time renders a millisecond span as HH:MM:SS. Hours are not wrapped at 24.
func Time(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / int64(time.Hour/time.Millisecond)
	minutes := (ms % int64(time.Hour/time.Millisecond)) / int64(time.Minute/time.Millisecond)
	seconds := (ms % int64(time.Minute/time.Millisecond)) / int64(time.Second/time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// Duration renders d the same way as Time
func Duration(d time.Duration) string {
	return Time(d.Milliseconds())
}

// Title upper-cases the first letter and lower-cases the rest ("LINUX" -> "Linux")
func Title(s string) string {
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + strings.ToLower(s[size:])
}

// Method returns the second "/" segment of a WebDriver command path: "/session/{id}/url" -> "session"
func Method(command string) string {
	parts := strings.Split(command, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// CommandOffset is how far into the session a command ran, measured from the first command
func CommandOffset(cmd models.Command, first models.Command) time.Duration {
	if first.Timestamp.IsZero() || cmd.Timestamp.IsZero() {
		return 0
	}
	return cmd.Timestamp.Sub(first.Timestamp)
}

// wallClock is the 1h:2m:3s form used by the availability column
func wallClock(t time.Time) string {
	return fmt.Sprintf("%dh:%dm:%ds", t.Hour(), t.Minute(), t.Second())
}

// Availability renders the window a session may live in: created .. created+timeout
func Availability(createdAt int64, timeout time.Duration, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	start := time.UnixMilli(createdAt).In(loc)
	return wallClock(start) + " - " + wallClock(start.Add(timeout))
}

// Remaining is the time left before a manual session hits its duration; never negative
func Remaining(createdAt int64, duration time.Duration, now time.Time) time.Duration {
	left := time.UnixMilli(createdAt).Add(duration).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Mode labels a session as driven by a human or by automation
func Mode(s models.Session) string {
	if s.Manual {
		return "Manual"
	}
	return "Auto"
}
