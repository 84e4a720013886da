package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func startHub(t *testing.T, origins ...string) (*Hub, func()) {
	t.Helper()

	hub := NewHub(origins)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()

	return hub, func() {
		cancel()
		<-done
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func subscribe(t *testing.T, conn *websocket.Conn, channel string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe", Data: map[string]any{"channel": channel}}))
}

func TestHubStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub, stop := startHub(t)
	assert.Equal(t, 0, hub.ClientCount())
	stop()

	// publishing after shutdown must not block
	hub.Publish(ChannelResults, EventResultDeclared, nil)
}

func TestHubDeliversToSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub, stop := startHub(t)
	defer stop()

	hub.SetSnapshot(ChannelResults, func() any { return []string{"128-10-370"} })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, []string{ChannelResults, ChannelMarkets})
	}))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	subscribe(t, conn, ChannelResults)
	snap := readEvent(t, conn)
	assert.Equal(t, EventSnapshot, snap.Type)
	assert.Equal(t, ChannelResults, snap.Channel)
	assert.Equal(t, []any{"128-10-370"}, snap.Data)

	hub.Publish(ChannelMarkets, EventMarketStatus, "not subscribed")
	hub.Publish(ChannelResults, EventResultDeclared, map[string]string{"display": "128-1*-***"})

	ev := readEvent(t, conn)
	assert.Equal(t, EventResultDeclared, ev.Type)
	assert.Equal(t, map[string]any{"display": "128-1*-***"}, ev.Data)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHubRejectsDisallowedChannel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub, stop := startHub(t)
	defer stop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, []string{ChannelResults})
	}))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	subscribe(t, conn, ChannelAdmin)
	ev := readEvent(t, conn)
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, ChannelAdmin, ev.Channel)
}

func TestHubAutoSubscribe(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub, stop := startHub(t)
	defer stop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, []string{ChannelAdmin}, ChannelAdmin)
	}))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(ChannelAdmin, EventBetPlaced, map[string]int{"count": 2})
	ev := readEvent(t, conn)
	assert.Equal(t, EventBetPlaced, ev.Type)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))
	assert.Equal(t, "pong", readEvent(t, conn).Type)
}

func TestHubOriginCheck(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	serve := func(t *testing.T, origins ...string) func(path, origin string) int {
		hub, stop := startHub(t, origins...)
		mux := http.NewServeMux()
		mux.HandleFunc("/admin", func(w http.ResponseWriter, r *http.Request) {
			hub.ServeWS(w, r, []string{ChannelAdmin}, ChannelAdmin)
		})
		mux.HandleFunc("/public", func(w http.ResponseWriter, r *http.Request) {
			hub.ServeWS(w, r, []string{ChannelResults})
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(func() {
			srv.Close()
			stop()
		})

		base := "ws" + strings.TrimPrefix(srv.URL, "http")
		return func(path, origin string) int {
			header := http.Header{}
			switch origin {
			case "":
			case "self":
				header.Set("Origin", srv.URL)
			default:
				header.Set("Origin", origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(base+path, header)
			if err == nil {
				conn.Close()
				return http.StatusSwitchingProtocols
			}
			require.NotNil(t, resp, err)
			return resp.StatusCode
		}
	}

	t.Run("listed origins", func(t *testing.T) {
		connect := serve(t, "https://app.example.com")

		cases := []struct {
			name, path, origin string
			want               int
		}{
			{"no origin", "/admin", "", http.StatusSwitchingProtocols},
			{"same host", "/admin", "self", http.StatusSwitchingProtocols},
			{"listed origin", "/admin", "https://app.example.com", http.StatusSwitchingProtocols},
			{"foreign origin on admin", "/admin", "https://evil.example", http.StatusForbidden},
			{"foreign origin on public", "/public", "https://evil.example", http.StatusForbidden},
		}
		for _, tc := range cases {
			assert.Equal(t, tc.want, connect(tc.path, tc.origin), tc.name)
		}
	})

	t.Run("wildcard opens public channels only", func(t *testing.T) {
		connect := serve(t, "*")
		assert.Equal(t, http.StatusSwitchingProtocols, connect("/public", "https://evil.example"))
		assert.Equal(t, http.StatusForbidden, connect("/admin", "https://evil.example"))
	})
}
