package ws_test

import (
	"context"
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

	"github.com/alertbeacon/alertbeacon/internal/pattern"
	wsHub "github.com/alertbeacon/alertbeacon/internal/ws"
)

func startHub(t *testing.T, current wsHub.StateFunc) (string, *wsHub.Hub) {
	t.Helper()

	hub := wsHub.New(current, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg wsHub.Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestHub_SendsSnapshotOnConnect(t *testing.T) {
	current := pattern.State{Mode: pattern.ModeOn, Owner: "g1", Level: true, Version: 7}
	url, hub := startHub(t, func() pattern.State { return current })

	conn := dial(t, url)
	msg := readMessage(t, conn)
	assert.Equal(t, "snapshot", msg.Event)
	assert.Equal(t, pattern.ModeOn, msg.Data.Mode)
	assert.Equal(t, "g1", msg.Data.Owner)
	assert.Equal(t, uint64(7), msg.Data.Version)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHub_PublishBroadcasts(t *testing.T) {
	url, hub := startHub(t, func() pattern.State { return pattern.State{Mode: pattern.ModeOff} })

	a := dial(t, url)
	b := dial(t, url)
	readMessage(t, a)
	readMessage(t, b)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 5*time.Millisecond)

	hub.Publish(pattern.State{Mode: pattern.ModeBlinking, Owner: "crit", Remaining: 5, Level: true})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.Equal(t, "state", msg.Event)
		assert.Equal(t, pattern.ModeBlinking, msg.Data.Mode)
		assert.Equal(t, 5, msg.Data.Remaining)
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	url, hub := startHub(t, nil)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 5*time.Millisecond)

	// publishing with no clients is a no-op
	hub.Publish(pattern.State{Mode: pattern.ModeOff})
}
