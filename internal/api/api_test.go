package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/browserkube-console/internal/catalog"
	"github.com/shehryarbajwa/browserkube-console/internal/commands"
	"github.com/shehryarbajwa/browserkube-console/internal/console"
	"github.com/shehryarbajwa/browserkube-console/internal/details"
	"github.com/shehryarbajwa/browserkube-console/internal/ratelimit"
	"github.com/shehryarbajwa/browserkube-console/internal/session"
	"github.com/shehryarbajwa/browserkube-console/internal/stream"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

type fakeBackend struct {
	store     *session.Store
	active    details.View
	createErr error
	nextErr   error
	selected  string
	deleted   []string
	toasts    []console.Toast
}

func newBackend() *fakeBackend {
	store := session.NewStore(session.PushStateOnly)
	store.ReplaceActive([]models.Session{
		{ID: "a", Name: "checkout", State: "running", Browser: "chrome", BrowserVersion: "116", ScreenResolution: "1920x1080", CreatedAt: 2},
		{ID: "b", Name: "login", State: "running", Browser: "firefox", BrowserVersion: "118", Manual: true, CreatedAt: 1},
	})
	store.ReplaceTerminated([]models.TerminatedSession{{ID: "z", Name: "checkout old", State: "terminated", Browser: "chrome", BrowserVersion: "115"}})
	return &fakeBackend{store: store}
}

func (b *fakeBackend) Store() *session.Store { return b.store }

func (b *fakeBackend) Status() models.SessionStatus {
	return models.SessionStatus{QuotesLimit: 5, Stats: models.SessionStats{All: 2, Running: 2}}
}

func (b *fakeBackend) Create(context.Context, models.CreateSessionRequest) (string, error) {
	if b.createErr != nil {
		return "", b.createErr
	}
	b.store.SetCreateStatus(session.CreateFulfilled)
	return "new", nil
}

func (b *fakeBackend) Delete(_ context.Context, id string) error {
	if _, ok := b.store.Get(id); !ok {
		return session.ErrNotFound
	}
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *fakeBackend) Select(_ context.Context, id string) error {
	row, ok := b.store.Lookup(id)
	if !ok {
		return session.ErrNotFound
	}
	b.selected = id
	b.active = details.View{ID: id, Row: row}
	return nil
}

func (b *fakeBackend) Deselect() { b.selected = "" }
func (b *fakeBackend) Active() details.View { return b.active }
func (b *fakeBackend) NextCommands(context.Context) error { return b.nextErr }
func (b *fakeBackend) Toasts() []console.Toast { return b.toasts }
func (b *fakeBackend) Dismiss(string) {}
func (b *fakeBackend) VNCURL(id string) (string, error) { return "ws://upstream/vnc/" + id, nil }
func (b *fakeBackend) LogsURL(id string) (string, error) { return "ws://upstream/logs/" + id, nil }

func router(b *fakeBackend, rpm int) http.Handler {
	return NewHandler(b).SetupRoutes(stream.NewRelay(), ratelimit.NewLimiter(rpm, 2), rpm)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListSessionsMergesAndFilters(t *testing.T) {
	h := router(newBackend(), 0)

	rec := do(t, h, http.MethodGet, "/v1/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []Row
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, "terminated", rows[2].Kind)

	rec = do(t, h, http.MethodGet, "/v1/sessions?chrome=116,115&q=checkout", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)

	rec = do(t, h, http.MethodGet, "/v1/sessions?manual=Manual", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].ID)
}

func TestCreateSession(t *testing.T) {
	b := newBackend()
	h := router(b, 0)

	rec := do(t, h, http.MethodPost, "/v1/sessions", `{"browserName":"chrome","browserVersion":"116"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sessionId":"new"`)

	rec = do(t, h, http.MethodPost, "/v1/sessions", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	b.createErr = catalog.ErrUnsupported
	rec = do(t, h, http.MethodPost, "/v1/sessions", `{"browserName":"safari"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	b := newBackend()
	h := router(b, 0)

	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodDelete, "/v1/sessions/a", "").Code)
	assert.Equal(t, []string{"a"}, b.deleted)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/v1/sessions/nope", "").Code)
}

func TestSelectAndReadActive(t *testing.T) {
	b := newBackend()
	h := router(b, 0)

	rec := do(t, h, http.MethodPut, "/v1/active/z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view ActiveView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "z", view.ID)
	require.NotNil(t, view.Session)
	assert.Equal(t, "terminated", view.Session.Kind)
	assert.NotNil(t, view.Commands.Items)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/active", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPut, "/v1/active/ghost", "").Code)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/v1/active", "").Code)
	assert.Empty(t, b.selected)
}

func TestNextCommandsStatuses(t *testing.T) {
	b := newBackend()
	h := router(b, 0)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/active/commands/next", "").Code)

	b.nextErr = commands.ErrExhausted
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, "/v1/active/commands/next", "").Code)

	b.nextErr = commands.ErrBusy
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/v1/active/commands/next", "").Code)

	b.nextErr = errors.New("boom")
	assert.Equal(t, http.StatusInternalServerError, do(t, h, http.MethodPost, "/v1/active/commands/next", "").Code)
}

func TestStatusAndToasts(t *testing.T) {
	b := newBackend()
	h := router(b, 0)

	rec := do(t, h, http.MethodGet, "/v1/status", "")
	assert.Contains(t, rec.Body.String(), `"quotesLimit":5`)

	rec = do(t, h, http.MethodGet, "/v1/toasts", "")
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestRateLimitOnMutations(t *testing.T) {
	h := router(newBackend(), 1)

	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/v1/sessions", `{"browserName":"chrome"}`).Code)
	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/v1/sessions", `{"browserName":"chrome"}`).Code)
	rec := do(t, h, http.MethodPost, "/v1/sessions", `{"browserName":"chrome"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// reads are not limited
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/sessions", "").Code)
	}
}

func TestCORSAndRequestID(t *testing.T) {
	h := router(newBackend(), 0)

	rec := do(t, h, http.MethodGet, "/v1/status", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestPreflightIsAnsweredForEveryRoute(t *testing.T) {
	h := router(newBackend(), 0)

	for _, path := range []string{"/v1/sessions", "/v1/sessions/a", "/v1/active/a", "/v1/active/commands/next"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE", path)
	}
}

func TestRelayRejectsUnknownSession(t *testing.T) {
	h := router(newBackend(), 0)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/vnc/ghost", "").Code)
}
