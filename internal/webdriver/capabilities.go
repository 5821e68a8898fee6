package webdriver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

const (
	defaultSessionName  = "Manual session"
	defaultResolution   = "1920x1080"
	defaultColorDepth   = "24"
	defaultVideoStorage = "file:///home/seluser/videos"
)

// ErrBrowserRequired is returned for requests that do not name a browser
var ErrBrowserRequired = errors.New("browserName is required")

// Options are the farm-wide knobs of a manual session
type Options struct {
	SessionTimeout time.Duration
	VideoEndpoint  string
}

// DefaultOptions mirrors what the console has always requested
func DefaultOptions() Options {
	return Options{
		SessionTimeout: 60 * time.Minute,
		VideoEndpoint:  defaultVideoStorage,
	}
}

// Capabilities is a WebDriver New Session document carrying both the legacy
// desiredCapabilities block and the W3C capabilities block
type Capabilities struct {
	DesiredCapabilities map[string]any `json:"desiredCapabilities"`
	Capabilities        W3C            `json:"capabilities"`
}

// W3C is the alwaysMatch/firstMatch pair
type W3C struct {
	AlwaysMatch map[string]any   `json:"alwaysMatch"`
	FirstMatch  []map[string]any `json:"firstMatch"`
}

// Build turns a manual session request into a capabilities document
func Build(req models.CreateSessionRequest, opts Options) (Capabilities, error) {
	browser := strings.ToLower(strings.TrimSpace(req.Browser))
	if browser == "" {
		return Capabilities{}, ErrBrowserRequired
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = DefaultOptions().SessionTimeout
	}
	if opts.VideoEndpoint == "" {
		opts.VideoEndpoint = defaultVideoStorage
	}

	timeout := fmt.Sprintf("%dm", int(opts.SessionTimeout.Minutes()))
	name := strings.TrimSpace(req.Name)
	labels := map[string]string{"manual": "true"}

	vendor := map[string]any{"enableVideo": req.RecordVideo}
	if name != "" {
		vendor["name"] = name
	}

	desired := map[string]any{
		"browserName":         browser,
		"browserVersion":      req.BrowserVersion,
		"browserkube:options": vendor,
		"enableVNC":           true,
		"saveVideoEndpoint":   opts.VideoEndpoint,
		"labels":              labels,
		"sessionTimeout":      timeout,
		"name":                firstNonEmpty(name, defaultSessionName),
	}
	if req.PlatformName != "" {
		desired["platformName"] = req.PlatformName
	}

	always := map[string]any{
		"browserName":         browser,
		"browserVersion":      req.BrowserVersion,
		"browserkube:options": vendor,
		"selenoid:options": map[string]any{
			"enableVNC":         true,
			"sessionTimeout":    timeout,
			"saveVideoEndpoint": opts.VideoEndpoint,
			"labels":            labels,
			"screenResolution":  screenResolution(req.ScreenResolution),
		},
	}
	if req.PlatformName != "" {
		always["platformName"] = req.PlatformName
	}
	for k, v := range browserOptions(browser) {
		always[k] = v
	}

	return Capabilities{
		DesiredCapabilities: desired,
		Capabilities: W3C{
			AlwaysMatch: always,
			FirstMatch:  []map[string]any{{}},
		},
	}, nil
}

func browserOptions(browser string) map[string]any {
	switch browser {
	case "chrome":
		return map[string]any{
			"goog:chromeOptions": map[string]any{"args": []string{"start-maximized"}},
		}
	case "firefox":
		return map[string]any{
			"moz:firefoxOptions": map[string]any{
				"prefs": map[string]any{
					"browser.fullscreen.animateUp": 0,
					"browser.fullscreen.autohide":  false,
				},
			},
		}
	case "edge", "msedge", "microsoftedge":
		return map[string]any{
			"ms:edgeOptions": map[string]any{"args": []string{"start-maximized"}},
		}
	default:
		return nil
	}
}

// screenResolution appends the color depth the VNC server expects (1920x1080 -> 1920x1080x24)
func screenResolution(res string) string {
	res = strings.TrimSpace(res)
	if res == "" {
		res = defaultResolution
	}
	if strings.Count(res, "x") == 1 {
		res += "x" + defaultColorDepth
	}
	return res
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
