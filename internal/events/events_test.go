package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

type recordingHandler struct {
	mu       sync.Mutex
	sessions [][]models.Session
	statuses []models.SessionStatus
}

func (h *recordingHandler) HandleSessions(s []models.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = append(h.sessions, s)
}

func (h *recordingHandler) HandleStatus(s models.SessionStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, s)
}

func (h *recordingHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions), len(h.statuses)
}

func TestDecodeDispatchesByName(t *testing.T) {
	h := &recordingHandler{}
	d := NewDecoder(h)

	require.NoError(t, d.Decode([]byte(`{"name":"session","payload":[{"id":"a","state":"Pending"},{"id":"b","state":"running"}]}`)))
	require.NoError(t, d.Decode([]byte(`{"name":"status","payload":{"quotesLimit":5,"maxTimeout":600000000000,"stats":{"all":2,"running":1}}}`)))

	require.Len(t, h.sessions, 1)
	assert.Equal(t, "a", h.sessions[0][0].ID)
	assert.Equal(t, "b", h.sessions[0][1].ID)
	require.Len(t, h.statuses, 1)
	assert.Equal(t, 5, h.statuses[0].QuotesLimit)
	assert.Equal(t, 10*time.Minute, h.statuses[0].MaxTimeout)
}

func TestDecodeIgnoresUnknownAndRejectsMalformed(t *testing.T) {
	h := &recordingHandler{}
	d := NewDecoder(h)

	assert.NoError(t, d.Decode([]byte(`{"name":"heartbeat","payload":{}}`)))
	assert.Error(t, d.Decode([]byte(`{"name":"session",`)))
	assert.Error(t, d.Decode([]byte(`{"name":"session","payload":{"id":"x"}}`)))

	s, st := h.counts()
	assert.Zero(t, s)
	assert.Zero(t, st)
}

func eventServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for _, f := range frames {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// hold the socket open until the client goes away
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnDeliversFramesInOrder(t *testing.T) {
	srv := eventServer(t, []string{"1", "2", "3"})

	var mu sync.Mutex
	var got []string
	c := NewConn(func(frame []byte) {
		mu.Lock()
		got = append(got, string(frame))
		mu.Unlock()
	})

	require.NoError(t, c.Connect(context.Background(), wsURL(srv)))
	assert.Equal(t, StatusConnected, c.Status())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"1", "2", "3"}, got)
	mu.Unlock()

	c.Disconnect()
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestConnectReplacesPreviousSocket(t *testing.T) {
	first := eventServer(t, nil)
	second := eventServer(t, nil)

	var statuses []Status
	c := NewConn(nil)
	c.OnStatus(func(s Status) { statuses = append(statuses, s) })

	require.NoError(t, c.Connect(context.Background(), wsURL(first)))
	firstDone := c.Done()
	require.NoError(t, c.Connect(context.Background(), wsURL(second)))

	select {
	case <-firstDone:
	case <-time.After(2 * time.Second):
		t.Fatal("first socket was not closed")
	}
	assert.Equal(t, StatusConnected, c.Status())
	assert.Equal(t, wsURL(second), c.URL())

	c.Disconnect()
	assert.Equal(t, []Status{
		StatusEstablishing, StatusConnected,
		StatusEstablishing, StatusConnected,
		StatusDisconnected,
	}, statuses)
}

func TestConnectFailureRecordsError(t *testing.T) {
	c := NewConn(nil)
	err := c.Connect(context.Background(), "ws://127.0.0.1:1/events")
	require.Error(t, err)
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Error(t, c.Err())
}

func TestNoFrameDeliveredAfterDisconnect(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			if err := ws.WriteMessage(websocket.TextMessage, []byte("tick")); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	var mu sync.Mutex
	delivered := 0
	c := NewConn(func([]byte) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return delivered
	}

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Connect(context.Background(), wsURL(srv)))
		before := count()
		require.Eventually(t, func() bool { return count() > before }, 2*time.Second, time.Millisecond)

		c.Disconnect()
		after := count()
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, after, count(), "iteration %d", i)
	}
}
