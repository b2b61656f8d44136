package realtime

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

	"github.com/noah-isme/grievance-api/internal/models"
)

func startHub(t *testing.T, bus Bus) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(bus, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Attach(conn, r.URL.Query().Get("user"))
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Count() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubBroadcastsToAllClients(t *testing.T) {
	hub, srv := startHub(t, nil)
	a := dial(t, srv, "staff-1")
	b := dial(t, srv, "admin-1")
	waitForClients(t, hub, 2)

	evt := models.NotificationEvent{ID: "e1", Type: models.EventGrievanceSubmitted, TrackingID: "GRV-2025-000001"}
	require.NoError(t, hub.Publish(context.Background(), evt))

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var got models.NotificationEvent
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "GRV-2025-000001", got.TrackingID)
	}
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, srv := startHub(t, nil)
	conn := dial(t, srv, "staff-1")
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
}

type loopbackBus struct {
	ch chan []byte
}

func (b *loopbackBus) Publish(_ context.Context, payload []byte) error {
	b.ch <- payload
	return nil
}

func (b *loopbackBus) Subscribe(context.Context) (<-chan []byte, error) {
	return b.ch, nil
}

func TestHubRoutesThroughBus(t *testing.T) {
	bus := &loopbackBus{ch: make(chan []byte, 1)}
	hub, srv := startHub(t, bus)
	conn := dial(t, srv, "staff-1")
	waitForClients(t, hub, 1)

	require.NoError(t, hub.Publish(context.Background(), models.NotificationEvent{ID: "e2", TrackingID: "GRV-2025-000002"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "GRV-2025-000002")
}
