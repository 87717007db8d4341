package events

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

	"fintrack/internal/core"
)

func startHub(t *testing.T, origins ...string) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	hub.AllowOrigins(origins)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("owner"))
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, owner string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?owner=" + owner
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubDeliversOnlyToOwner(t *testing.T) {
	hub, srv := startHub(t)
	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	waitClients(t, hub, 2)

	hub.Publish(NewRecordEvent(RecordCreated, core.Record{ID: "r1", OwnerID: "alice", Kind: core.KindExpense}))

	alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := alice.ReadMessage()
	require.NoError(t, err)
	var got RecordEvent
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, RecordCreated, got.Type)
	assert.Equal(t, "r1", got.ID)

	bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err, "bob must not see alice's events")
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "carol")
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)
}

func TestHubChecksOrigin(t *testing.T) {
	hub, srv := startHub(t, "https://app.example.com")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?owner=dave"

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.example.com"}})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	waitClients(t, hub, 1)

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	waitClients(t, hub, 1)
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, originAllowed([]string{"*"}, "https://anything.example"))
	assert.True(t, originAllowed([]string{"https://a.example"}, ""))
	assert.True(t, originAllowed([]string{"https://a.example"}, "HTTPS://A.EXAMPLE"))
	assert.False(t, originAllowed([]string{"https://a.example"}, "https://b.example"))
}

func TestRecordEventValidate(t *testing.T) {
	ok := NewRecordEvent(RecordUpdated, core.Record{ID: "r", OwnerID: "u", Kind: core.KindIncome})
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Type = "nope"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidEvent)
	bad = ok
	bad.OwnerID = ""
	assert.ErrorIs(t, bad.Validate(), ErrInvalidEvent)
}
