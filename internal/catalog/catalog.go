// Package catalog indexes the farm's browser catalog for the create-session form and the filter chips
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shehryarbajwa/browserkube-console/internal/format"
	"github.com/shehryarbajwa/browserkube-console/internal/logging"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// TypeWebDriver marks catalog entries that can back a manual session
const TypeWebDriver = "WEBDRIVER"

// ErrUnsupported is returned when a request names something the farm does not offer
var ErrUnsupported = errors.New("unsupported browser selection")

// Version is one installable browser version
type Version struct {
	Value       string
	Image       string
	Resolutions []string
}

// BrowserOptions groups the versions of one browser on a platform
type BrowserOptions struct {
	Label    string
	Value    string
	Versions []Version
}

// Platform groups the browsers of one platform
type Platform struct {
	Label    string
	Value    string
	Browsers []BrowserOptions
}

// Source fetches the raw catalog
type Source interface {
	Browsers(ctx context.Context) ([]models.Browser, error)
}

// Manager holds the indexed catalog
type Manager struct {
	mu        sync.RWMutex
	raw       []models.Browser
	platforms []Platform
	log       zerolog.Logger
}

// NewManager creates an empty catalog
func NewManager() *Manager {
	return &Manager{log: logging.For("catalog")}
}

// Load fetches and indexes the catalog
func (m *Manager) Load(ctx context.Context, src Source) error {
	list, err := src.Browsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load browser catalog: %w", err)
	}
	m.Set(list)
	m.log.Info().Int("entries", len(list)).Msg("📚 Browser catalog loaded")
	return nil
}

// Set indexes an already fetched catalog. Only WebDriver entries are kept in the index;
// Raw still returns everything.
func (m *Manager) Set(list []models.Browser) {
	var platforms []Platform
	for _, b := range list {
		if b.Type != TypeWebDriver {
			continue
		}
		p := findPlatform(&platforms, b.PlatformName)
		br := findBrowser(p, b.Name)
		if hasVersion(br, b.Version) {
			continue
		}
		br.Versions = append(br.Versions, Version{Value: b.Version, Image: b.Image, Resolutions: b.Resolutions})
	}

	m.mu.Lock()
	m.raw = append([]models.Browser(nil), list...)
	m.platforms = platforms
	m.mu.Unlock()
}

func findPlatform(list *[]Platform, name string) *Platform {
	for i := range *list {
		if (*list)[i].Value == name {
			return &(*list)[i]
		}
	}
	*list = append(*list, Platform{Label: format.Title(name), Value: name})
	return &(*list)[len(*list)-1]
}

func findBrowser(p *Platform, name string) *BrowserOptions {
	for i := range p.Browsers {
		if p.Browsers[i].Value == name {
			return &p.Browsers[i]
		}
	}
	p.Browsers = append(p.Browsers, BrowserOptions{Label: format.Title(name), Value: name})
	return &p.Browsers[len(p.Browsers)-1]
}

func hasVersion(b *BrowserOptions, v string) bool {
	for _, existing := range b.Versions {
		if existing.Value == v {
			return true
		}
	}
	return false
}

// Raw returns the catalog as fetched
func (m *Manager) Raw() []models.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Browser(nil), m.raw...)
}

// Platforms returns the indexed catalog
func (m *Manager) Platforms() []Platform {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Platform(nil), m.platforms...)
}

// Resolve fills the blanks of a create request with catalog defaults: the first platform,
// the first listed version and its first resolution. The browser must be named.
func (m *Manager) Resolve(req models.CreateSessionRequest) (models.CreateSessionRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.platforms) == 0 {
		return req, fmt.Errorf("%w: catalog is empty", ErrUnsupported)
	}
	if req.Browser == "" {
		return req, fmt.Errorf("%w: browser is required", ErrUnsupported)
	}

	var platform *Platform
	for i := range m.platforms {
		if req.PlatformName == "" || m.platforms[i].Value == req.PlatformName {
			if hasBrowser(&m.platforms[i], req.Browser) {
				platform = &m.platforms[i]
				break
			}
		}
	}
	if platform == nil {
		return req, fmt.Errorf("%w: %s on %q", ErrUnsupported, req.Browser, req.PlatformName)
	}
	req.PlatformName = platform.Value

	var browser *BrowserOptions
	for i := range platform.Browsers {
		if platform.Browsers[i].Value == req.Browser {
			browser = &platform.Browsers[i]
		}
	}

	var version *Version
	for i := range browser.Versions {
		if req.BrowserVersion == "" || browser.Versions[i].Value == req.BrowserVersion {
			version = &browser.Versions[i]
			break
		}
	}
	if version == nil {
		return req, fmt.Errorf("%w: %s %s", ErrUnsupported, req.Browser, req.BrowserVersion)
	}
	req.BrowserVersion = version.Value

	if req.ScreenResolution == "" {
		if len(version.Resolutions) > 0 {
			req.ScreenResolution = version.Resolutions[0]
		}
		return req, nil
	}
	for _, r := range version.Resolutions {
		if r == req.ScreenResolution {
			return req, nil
		}
	}
	return req, fmt.Errorf("%w: resolution %s", ErrUnsupported, req.ScreenResolution)
}

func hasBrowser(p *Platform, name string) bool {
	for _, b := range p.Browsers {
		if b.Value == name {
			return true
		}
	}
	return false
}
