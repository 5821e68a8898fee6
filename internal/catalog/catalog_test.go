package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

type staticSource struct {
	list []models.Browser
	err  error
}

func (s staticSource) Browsers(context.Context) ([]models.Browser, error) { return s.list, s.err }

func farm() []models.Browser {
	return []models.Browser{
		{PlatformName: "LINUX", Name: "chrome", Version: "116", Type: "WEBDRIVER", Image: "chrome:116", Resolutions: []string{"1920x1080", "1280x1024"}},
		{PlatformName: "LINUX", Name: "chrome", Version: "115", Type: "WEBDRIVER", Image: "chrome:115", Resolutions: []string{"1280x1024"}},
		{PlatformName: "LINUX", Name: "chrome", Version: "116", Type: "WEBDRIVER", Image: "dup"},
		{PlatformName: "LINUX", Name: "firefox", Version: "118", Type: "WEBDRIVER", Resolutions: []string{"1024x768"}},
		{PlatformName: "WINDOWS", Name: "edge", Version: "117", Type: "WEBDRIVER", Resolutions: []string{"1920x1080"}},
		{PlatformName: "LINUX", Name: "playwright-chrome", Version: "1.40", Type: "PLAYWRIGHT"},
	}
}

func TestLoadIndexesWebDriverEntries(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Load(context.Background(), staticSource{list: farm()}))

	platforms := m.Platforms()
	require.Len(t, platforms, 2)
	assert.Equal(t, "Linux", platforms[0].Label)
	require.Len(t, platforms[0].Browsers, 2)
	assert.Equal(t, "Chrome", platforms[0].Browsers[0].Label)
	require.Len(t, platforms[0].Browsers[0].Versions, 2)
	assert.Equal(t, "chrome:116", platforms[0].Browsers[0].Versions[0].Image)
	assert.Len(t, m.Raw(), 6)
}

func TestLoadPropagatesErrors(t *testing.T) {
	m := NewManager()
	err := m.Load(context.Background(), staticSource{err: errors.New("down")})
	require.Error(t, err)
	assert.Empty(t, m.Platforms())
}

func TestResolveFillsDefaults(t *testing.T) {
	m := NewManager()
	m.Set(farm())

	req, err := m.Resolve(models.CreateSessionRequest{Browser: "chrome"})
	require.NoError(t, err)
	assert.Equal(t, "LINUX", req.PlatformName)
	assert.Equal(t, "116", req.BrowserVersion)
	assert.Equal(t, "1920x1080", req.ScreenResolution)

	req, err = m.Resolve(models.CreateSessionRequest{Browser: "edge"})
	require.NoError(t, err)
	assert.Equal(t, "WINDOWS", req.PlatformName)
}

func TestResolveRejectsUnknownSelections(t *testing.T) {
	m := NewManager()
	m.Set(farm())

	for _, req := range []models.CreateSessionRequest{
		{},
		{Browser: "safari"},
		{Browser: "chrome", BrowserVersion: "90"},
		{Browser: "chrome", BrowserVersion: "115", ScreenResolution: "1920x1080"},
		{Browser: "edge", PlatformName: "LINUX"},
	} {
		_, err := m.Resolve(req)
		assert.ErrorIs(t, err, ErrUnsupported, "%+v", req)
	}
}
