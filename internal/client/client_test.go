package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, mux *http.ServeMux, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithHTTPClient(srv.Client())}, opts...)
	return New(srv.URL+"/browserkube", time.Second, opts...)
}

func TestSessionsDecodesList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/browserkube/sessions/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = io.WriteString(w, `[{"id":"s1","state":"Running","browser":"chrome","createdAt":1700000000000}]`)
	})
	c := newTestClient(t, mux)

	sessions, err := c.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
	assert.Equal(t, "Running", string(sessions[0].State))
}

func TestErrorHandlerReceivesFormattedError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/browserkube/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"message":"quota service down"}`)
	})
	var handled []*RequestError
	c := newTestClient(t, mux, WithErrorHandler(func(err *RequestError) { handled = append(handled, err) }))

	_, err := c.Status(context.Background())
	require.Error(t, err)
	require.Len(t, handled, 1)
	assert.Equal(t, "[STATUS:502] : quota service down", err.Error())

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusBadGateway, reqErr.StatusCode)
}

func TestCommandsSkipsErrorHandlerAndSendsQuery(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/browserkube/sessions/s1/commands", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			assert.Equal(t, "first page", r.URL.Query().Get("pageToken"))
			assert.Equal(t, "15", r.URL.Query().Get("pageSize"))
			_, _ = io.WriteString(w, `{"commands":[{"commandId":"c1","statusCode":200,"timestamp":"2024-01-01T00:00:00Z"}],"newPageToken":"p2"}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})
	handled := 0
	c := newTestClient(t, mux, WithErrorHandler(func(*RequestError) { handled++ }))

	page, err := c.Commands(context.Background(), "s1", "first page", 15)
	require.NoError(t, err)
	assert.Equal(t, "p2", page.NewPageToken)
	require.Len(t, page.Commands, 1)
	assert.True(t, page.Commands[0].Succeeded())

	_, err = c.Commands(context.Background(), "s1", "p2", 15)
	require.Error(t, err)
	assert.Zero(t, handled)
}

func TestCreateSessionUsesCreateTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/browserkube/wd/hub/session", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_, _ = io.WriteString(w, `{"value":{"sessionId":"new"}}`)
	})
	c := newTestClient(t, mux, WithSessionTimeouts(10*time.Millisecond, time.Second))

	_, err := c.CreateSession(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTransportErrorWithoutStatus(t *testing.T) {
	c := New("http://127.0.0.1:1/browserkube", 200*time.Millisecond)
	err := c.DeleteSession(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[WDHUBSESSIONS1]")
}

func TestWebSocketURL(t *testing.T) {
	u, err := WebSocketURL("https://farm.example.com/browserkube/", "/events")
	require.NoError(t, err)
	assert.Equal(t, "wss://farm.example.com/browserkube/events", u)

	c := New("http://localhost:4444/browserkube", time.Second)
	u, err = c.VNCURL("abc")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:4444/browserkube/vnc/abc", u)

	u, err = c.LogsURL("abc")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:4444/browserkube/logs/abc", u)
}
