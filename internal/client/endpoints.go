package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

const (
	pathStatus     = "/status"
	pathBrowsers   = "/browsers"
	pathSessions   = "/sessions/"
	pathResults    = "/results/"
	pathWebDriver  = "/wd/hub/session"
	pathEvents     = "/events"
	pathVNC        = "/vnc/"
	pathLogs       = "/logs/"
	screenshotsSub = "/screenshots"
	commandsSub    = "/commands"
	filesSub       = "/files/"
)

// CreateSessionResponse is the WebDriver New Session reply
type CreateSessionResponse struct {
	Value struct {
		SessionID    string         `json:"sessionId"`
		Capabilities map[string]any `json:"capabilities"`
	} `json:"value"`
}

// Browsers fetches the capability catalog
func (c *Client) Browsers(ctx context.Context) ([]models.Browser, error) {
	var out []models.Browser
	if err := c.Get(ctx, pathBrowsers, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Sessions fetches the active session list
func (c *Client) Sessions(ctx context.Context) ([]models.Session, error) {
	var out []models.Session
	if err := c.Get(ctx, pathSessions, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Results fetches terminated sessions
func (c *Client) Results(ctx context.Context) ([]models.TerminatedSession, error) {
	var out models.TerminatedSessionsResponse
	if err := c.Get(ctx, pathResults, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Result fetches the details of one terminated session
func (c *Client) Result(ctx context.Context, id string) (models.SessionDetails, error) {
	var out models.SessionDetails
	if err := c.Get(ctx, pathResults+url.PathEscape(id), &out); err != nil {
		return models.SessionDetails{}, err
	}
	return out, nil
}

// SessionFile downloads a stored log or video blob. Failures are not toasted.
func (c *Client) SessionFile(ctx context.Context, id, fileName string) ([]byte, error) {
	var out []byte
	if err := c.Get(ctx, SessionFilePath(id, fileName), &out, WithoutErrorHandling()); err != nil {
		return nil, err
	}
	return out, nil
}

// SessionFilePath is the API path of a stored session file
func SessionFilePath(id, fileName string) string {
	return pathSessions + url.PathEscape(id) + filesSub + fileName
}

// Screenshots lists stored screenshots of a session
func (c *Client) Screenshots(ctx context.Context, id string) ([]string, error) {
	var out models.ScreenshotList
	if err := c.Get(ctx, pathSessions+url.PathEscape(id)+screenshotsSub, &out); err != nil {
		return nil, err
	}
	return out.Screenshots, nil
}

// TakeScreenshot asks the farm to capture the session screen
func (c *Client) TakeScreenshot(ctx context.Context, id string) error {
	return c.Post(ctx, pathSessions+url.PathEscape(id)+screenshotsSub, struct{}{}, nil)
}

// Status fetches the quota and usage aggregate
func (c *Client) Status(ctx context.Context) (models.SessionStatus, error) {
	var out models.SessionStatus
	if err := c.Get(ctx, pathStatus, &out); err != nil {
		return models.SessionStatus{}, err
	}
	return out, nil
}

// CreateSession posts a desired-capabilities document to the WebDriver endpoint
func (c *Client) CreateSession(ctx context.Context, capabilities any) (CreateSessionResponse, error) {
	var out CreateSessionResponse
	if err := c.Post(ctx, pathWebDriver, capabilities, &out, WithTimeout(c.createTimeout)); err != nil {
		return CreateSessionResponse{}, err
	}
	return out, nil
}

// DeleteSession terminates a session through the WebDriver endpoint
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.Delete(ctx, pathWebDriver+"/"+url.PathEscape(id), nil, WithTimeout(c.deleteTimeout))
}

// Commands fetches one page of a session's command log. Failures are not toasted.
func (c *Client) Commands(ctx context.Context, id, pageToken string, pageSize int) (models.CommandPage, error) {
	q := url.Values{}
	q.Set("pageToken", pageToken)
	q.Set("pageSize", strconv.Itoa(pageSize))

	var out models.CommandPage
	err := c.Get(ctx, pathSessions+url.PathEscape(id)+commandsSub, &out, WithQuery(q), WithoutErrorHandling())
	if err != nil {
		return models.CommandPage{}, err
	}
	return out, nil
}

// EventsURL is the push channel address
func (c *Client) EventsURL() (string, error) {
	return WebSocketURL(c.baseURL, pathEvents)
}

// VNCURL is the VNC relay address of a session
func (c *Client) VNCURL(id string) (string, error) {
	return WebSocketURL(c.baseURL, pathVNC+id)
}

// LogsURL is the live log stream address of a session
func (c *Client) LogsURL(id string) (string, error) {
	return WebSocketURL(c.baseURL, pathLogs+id)
}
