package live

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	r := chi.NewRouter()
	r.Get("/ws/leagues/{leagueID}", NewHandler(hub, nil).ServeWS)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, leagueID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/leagues/" + leagueID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastReachesLeagueViewers(t *testing.T) {
	hub, srv := setupTestServer(t)
	leagueID := uuid.New()
	otherLeague := uuid.New()

	viewer := dial(t, srv, leagueID.String())
	bystander := dial(t, srv, otherLeague.String())

	require.Eventually(t, func() bool {
		return hub.Viewers(leagueID) == 1 && hub.Viewers(otherLeague) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast(leagueID, "SCORE_UPDATED", map[string]int{"score1": 7, "score2": 5})

	viewer.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := viewer.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type     string         `json:"type"`
		LeagueID uuid.UUID      `json:"leagueId"`
		Payload  map[string]int `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "SCORE_UPDATED", msg.Type)
	assert.Equal(t, leagueID, msg.LeagueID)
	assert.Equal(t, 7, msg.Payload["score1"])

	bystander.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = bystander.ReadMessage()
	assert.Error(t, err, "viewers of another league receive nothing")
}

func TestViewerDisconnectLeavesRoom(t *testing.T) {
	hub, srv := setupTestServer(t)
	leagueID := uuid.New()

	conn := dial(t, srv, leagueID.String())
	require.Eventually(t, func() bool { return hub.Viewers(leagueID) == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Viewers(leagueID) == 0 }, 2*time.Second, 10*time.Millisecond)

	// Broadcasting to an empty room is a no-op.
	hub.Broadcast(leagueID, "SET_CLOSED", nil)
}

func TestServeWSRejectsInvalidLeague(t *testing.T) {
	_, srv := setupTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/leagues/not-a-uuid"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://league.example"})

	r := httptest.NewRequest("GET", "/", nil)
	assert.True(t, check(r), "no origin header")

	r.Header.Set("Origin", "https://league.example")
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(r))

	assert.True(t, originChecker([]string{"*"})(r))
}
