package console

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/shehryarbajwa/browserkube-console/internal/config"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// farm is an in-process BrowserKube backend
type farm struct {
	srv *httptest.Server

	mu         sync.Mutex
	sessions   []models.Session
	results    []models.TerminatedSession
	createCode int
	created    int
	deleted    []string
	sockets    []*websocket.Conn
	connects   int
}

func newFarm(t *testing.T) *farm {
	t.Helper()
	f := &farm{createCode: http.StatusOK}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	r := mux.NewRouter()
	r.HandleFunc("/browsers", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []models.Browser{
			{PlatformName: "LINUX", Name: "chrome", Version: "116", Type: "WEBDRIVER", Resolutions: []string{"1920x1080"}},
			{PlatformName: "LINUX", Name: "firefox", Version: "118", Type: "WEBDRIVER", Resolutions: []string{"1280x1024"}},
		})
	})
	r.HandleFunc("/sessions/", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.sessions)
	})
	r.HandleFunc("/results/", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, models.TerminatedSessionsResponse{Items: f.results})
	})
	r.HandleFunc("/results/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		writeJSON(w, models.SessionDetails{ID: id, LogsRefAddr: id + ".log"})
	})
	r.HandleFunc("/sessions/{id}/files/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("driver log"))
	})
	r.HandleFunc("/sessions/{id}/commands", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("pageToken")
		page := models.CommandPage{Commands: []models.Command{{CommandID: token}}}
		if token == models.InitialPageToken {
			page.NewPageToken = "second"
		}
		writeJSON(w, page)
	})
	r.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, models.SessionStatus{QuotesLimit: 10, MaxTimeout: time.Hour, Stats: models.SessionStats{All: 1}})
	})
	r.HandleFunc("/wd/hub/session", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.created++
		code := f.createCode
		f.mu.Unlock()
		if code != http.StatusOK {
			w.WriteHeader(code)
			writeJSON(w, map[string]any{"value": map[string]string{"message": "no quota"}})
			return
		}
		writeJSON(w, map[string]any{"value": map[string]any{"sessionId": "fresh"}})
	}).Methods(http.MethodPost)
	r.HandleFunc("/wd/hub/session/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, mux.Vars(r)["id"])
		f.mu.Unlock()
	}).Methods(http.MethodDelete)
	r.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.sockets = append(f.sockets, ws)
		f.connects++
		f.mu.Unlock()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})

	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// push sends a session event to every connected console
func (f *farm) push(t *testing.T, sessions ...models.Session) {
	t.Helper()
	payload, _ := json.Marshal(sessions)
	frame, _ := json.Marshal(models.Event{Name: models.EventSession, Payload: payload})

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ws := range f.sockets {
		ws.WriteMessage(websocket.TextMessage, frame)
	}
}

// dropSockets closes every event socket from the server side
func (f *farm) dropSockets() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ws := range f.sockets {
		ws.Close()
	}
	f.sockets = nil
}

func (f *farm) createCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func (f *farm) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *farm) connections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *farm) config() config.Config {
	cfg := config.Default()
	cfg.BaseURL = f.srv.URL
	cfg.CommandsThrottle = time.Millisecond
	cfg.ScrollDebounce = 5 * time.Millisecond
	cfg.ResultsRefreshWait = 10 * time.Millisecond
	cfg.StreamMinBackoff = 5 * time.Millisecond
	cfg.StreamMaxBackoff = 20 * time.Millisecond
	cfg.ToastAutoClose = 0
	return cfg
}
