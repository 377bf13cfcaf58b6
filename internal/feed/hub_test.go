package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/landctl/internal/registry"
	"github.com/danmuck/landctl/internal/testutil/testlog"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func TestHubBroadcastsLedgerRecords(t *testing.T) {
	testlog.Start(t)

	hub := NewHub(4, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	e := registry.New("root", registry.WithObserver(hub))
	id, err := e.RegisterLand("alice", registry.Registration{
		Dimensions:  registry.Dimensions{Width: 1, Height: 1, Depth: 1},
		LandType:    registry.Entertainment,
		Description: "arena",
	})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, registry.OpRegister, msg.Op)
	require.Equal(t, id, msg.LandID)
	require.Len(t, msg.Transactions, 1)
	require.Equal(t, registry.KindRegistration, msg.Transactions[0].Kind)
	require.Equal(t, registry.Principal("alice"), msg.Transactions[0].To)
}

func TestHubDropsSlowClients(t *testing.T) {
	testlog.Start(t)

	hub := NewHub(1, nil)
	slow := &client{remote: "slow", send: make(chan []byte, 1)}
	hub.clients[slow] = struct{}{}

	ev := registry.Event{Op: registry.OpAddAdmin}
	hub.Observe(ev)
	require.Equal(t, 1, hub.Clients())
	hub.Observe(ev)
	require.Equal(t, 0, hub.Clients())

	_, ok := <-slow.send
	require.True(t, ok, "buffered frame is still delivered")
	_, ok = <-slow.send
	require.False(t, ok, "send channel is closed after the drop")
}

func TestHubRefusesAfterClose(t *testing.T) {
	testlog.Start(t)

	hub := NewHub(0, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	hub.Close()
	conn := dial(t, srv)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.Equal(t, 0, hub.Clients())
}

func TestHubChecksOrigin(t *testing.T) {
	testlog.Start(t)

	hub := NewHub(0, []string{"https://app.example.com"})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	cases := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"no origin", "", true},
		{"configured origin", "https://app.example.com", true},
		{"same host", srv.URL, true},
		{"foreign origin", "https://evil.example.net", false},
	}
	for _, tc := range cases {
		header := http.Header{}
		if tc.origin != "" {
			header.Set("Origin", tc.origin)
		}
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
		if !tc.ok {
			require.ErrorIs(t, err, websocket.ErrBadHandshake, tc.name)
			require.Equal(t, http.StatusForbidden, resp.StatusCode, tc.name)
			continue
		}
		require.NoError(t, err, tc.name)
		_ = conn.Close()
	}
}
