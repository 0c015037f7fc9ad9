package dev

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialReload(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + ReloadPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ReloadMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg ReloadMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestReloadServerBroadcast(t *testing.T) {
	rs := NewReloadServer(zerolog.Nop())
	mux := http.NewServeMux()
	mux.HandleFunc(ReloadPath, rs.HandleWebSocket)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := dialReload(t, srv)
	b := dialReload(t, srv)
	require.Eventually(t, func() bool { return rs.ClientCount() == 2 }, 5*time.Second, 10*time.Millisecond)

	rs.NotifyReload()
	assert.Equal(t, ReloadTypeFull, readMessage(t, a).Type)
	assert.Equal(t, ReloadTypeFull, readMessage(t, b).Type)

	rs.NotifyCSS("main.css")
	msg := readMessage(t, a)
	assert.Equal(t, ReloadMessage{Type: ReloadTypeCSS, File: "main.css"}, msg)

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool { return rs.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	rs.Close()
	assert.Equal(t, 0, rs.ClientCount())
}

func TestReloadServerRejectsPlainHTTP(t *testing.T) {
	rs := NewReloadServer(zerolog.Nop())
	rec := httptest.NewRecorder()
	rs.HandleWebSocket(rec, httptest.NewRequest(http.MethodGet, ReloadPath, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, rs.ClientCount())
}

func TestClientScriptHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	ClientScriptHandler(rec, httptest.NewRequest(http.MethodGet, ClientScriptPath, nil))
	assert.Equal(t, "application/javascript; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "'/__livereload'")
}
