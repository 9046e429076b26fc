package realtime

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

	"github.com/noah-isme/smart-report-api/internal/models"
)

func startHub(t *testing.T) (*Hub, *httptest.Server, func(principal *models.Principal) *websocket.Conn) {
	t.Helper()
	hub := NewHub(NewLocalChannel(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, hub.Start(ctx))

	principals := make(chan *models.Principal, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Attach(conn, <-principals)
	}))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})

	dial := func(principal *models.Principal) *websocket.Conn {
		principals <- principal
		before := hub.Count()
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return hub.Count() == before+1 }, time.Second, 5*time.Millisecond)
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}
	return hub, server, dial
}

func readEvent(t *testing.T, conn *websocket.Conn) (models.Event, error) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var event models.Event
	err := conn.ReadJSON(&event)
	return event, err
}

func TestHubRoutesEventsByClass(t *testing.T) {
	hub, _, dial := startHub(t)
	classA := "class-a"
	classB := "class-b"
	admin := dial(&models.Principal{UserID: "admin", Role: models.RoleAdmin})
	studentA := dial(&models.Principal{UserID: "s1", Role: models.RoleStudent, ClassID: &classA})
	studentB := dial(&models.Principal{UserID: "s2", Role: models.RoleStudent, ClassID: &classB})

	require.NoError(t, hub.Publish(context.Background(), models.Event{Type: models.EventReportSubmitted, ClassID: classA}))

	event, err := readEvent(t, admin)
	require.NoError(t, err)
	assert.Equal(t, models.EventReportSubmitted, event.Type)

	event, err = readEvent(t, studentA)
	require.NoError(t, err)
	assert.Equal(t, classA, event.ClassID)

	_, err = readEvent(t, studentB)
	assert.Error(t, err)
}

func TestHubRegistrationEventsReachAdminsOnly(t *testing.T) {
	hub, _, dial := startHub(t)
	class := "class-a"
	admin := dial(&models.Principal{UserID: "admin", Role: models.RoleAdmin})
	student := dial(&models.Principal{UserID: "s1", Role: models.RoleStudent, ClassID: &class})

	require.NoError(t, hub.Publish(context.Background(), models.Event{Type: models.EventUserRegistered}))

	event, err := readEvent(t, admin)
	require.NoError(t, err)
	assert.Equal(t, models.EventUserRegistered, event.Type)

	_, err = readEvent(t, student)
	assert.Error(t, err)
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub, _, dial := startHub(t)
	conn := dial(&models.Principal{UserID: "admin", Role: models.RoleAdmin})

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubRefusesClientsAfterShutdown(t *testing.T) {
	hub := NewHub(NewLocalChannel(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, hub.Start(ctx))

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Attach(conn, &models.Principal{UserID: "late", Role: models.RoleAdmin})
	}))
	defer server.Close()

	cancel()
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return hub.stopped
	}, time.Second, 5*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
	assert.Equal(t, 0, hub.Count())

	require.NoError(t, hub.Publish(context.Background(), models.Event{Type: models.EventUserRegistered}))
	assert.Equal(t, 0, hub.Count())
}

func TestLocalChannelCancel(t *testing.T) {
	ch := NewLocalChannel()
	events, cancel, err := ch.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, ch.Publish(context.Background(), models.Event{Type: models.EventReportSubmitted}))
	assert.Equal(t, models.EventReportSubmitted, (<-events).Type)

	cancel()
	_, open := <-events
	assert.False(t, open)
	require.NoError(t, ch.Publish(context.Background(), models.Event{Type: models.EventReportSubmitted}))
}

func TestDecodeEvent(t *testing.T) {
	event, err := decodeEvent(`{"type":"report_status_changed","class_id":"c1","payload":{"status":"APPROVED"}}`)
	require.NoError(t, err)
	assert.Equal(t, models.EventReportStatusChanged, event.Type)
	assert.Equal(t, "APPROVED", event.Payload["status"])

	_, err = decodeEvent(`{"class_id":"c1"}`)
	assert.Error(t, err)
	_, err = decodeEvent(`not json`)
	assert.Error(t, err)
}
