package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialEvents(t *testing.T, ts *httptest.Server, cookie *http.Cookie) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	header.Add("Cookie", cookie.String())
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/events", header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEventsDeliverRefreshesToOwnSession(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	mine, myCookie := env.signIn(t)
	_, otherCookie := env.signIn(t)

	myConn := dialEvents(t, ts, myCookie)
	otherConn := dialEvents(t, ts, otherCookie)
	require.Eventually(t, func() bool { return env.srv.hub.Clients() == 2 }, time.Second, time.Millisecond)

	_, err := mine.Cache.Refresh(context.Background())
	require.NoError(t, err)

	myConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := myConn.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Type string `json:"type"`
		Data struct {
			TotalIssues int `json:"totalIssues"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg, &event))
	assert.Equal(t, EventBulkDataRefreshed, event.Type)
	assert.Equal(t, 6, event.Data.TotalIssues)

	// the other session saw nothing
	otherConn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	_, _, err = otherConn.ReadMessage()
	assert.Error(t, err)
}

func TestEventsRejectForeignOrigin(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()
	_, cookie := env.signIn(t)

	header := http.Header{}
	header.Add("Cookie", cookie.String())
	header.Add("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/events", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHubDropsEventsForSlowClients(t *testing.T) {
	h := NewHub()
	c := &wsClient{hub: h, sessionID: "s1", send: make(chan []byte, 1)}
	h.register(c)

	h.deliver(delivery{sessionID: "s1", msg: []byte("one")})
	h.deliver(delivery{sessionID: "s1", msg: []byte("two")})

	assert.Equal(t, 0, h.Clients())
	assert.Equal(t, []byte("one"), <-c.send)
	_, open := <-c.send
	assert.False(t, open)

	// unregistering after the drop is harmless
	h.unregister(c)
}

func TestHubRunClosesClientsOnShutdown(t *testing.T) {
	h := NewHub()
	c := &wsClient{hub: h, sessionID: "s1", send: make(chan []byte, 1)}
	h.register(c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	h.Publish("s1", "ping", nil)
	assert.Equal(t, `{"type":"ping","data":null}`, string(<-c.send))

	cancel()
	<-done
	_, open := <-c.send
	assert.False(t, open)
}
