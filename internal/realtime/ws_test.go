package realtime

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newWSServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	verify := func(token string) (string, error) {
		if token == "good" {
			return "u1", nil
		}
		return "", errors.New("bad token")
	}
	r := gin.New()
	r.GET("/ws", NewWSHandler(hub, verify, 8, zap.NewNop()).Serve)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestWSHandler_RejectsBadToken(t *testing.T) {
	srv := newWSServer(t, NewHub(zap.NewNop()))
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=nope"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSHandler_JoinAndReceive(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := newWSServer(t, hub)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=good"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"event": SignalJoinProject, "data": "p1"}))
	require.Eventually(t, func() bool {
		_, rooms := hub.Stats()
		return rooms == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.ToRoom(t.Context(), RoomForProject("p1"), EventTaskUpdated, map[string]string{"_id": "t1"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, EventTaskUpdated, f.Event)
	assert.JSONEq(t, `{"_id":"t1"}`, string(f.Data))
}
