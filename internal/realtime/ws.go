package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier func(token string) (string, error)

type WSHandler struct {
	hub      *Hub
	verify   TokenVerifier
	buffer   int
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(hub *Hub, verify TokenVerifier, buffer int, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		verify: verify,
		buffer: buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve upgrades GET /ws?token=... and pumps frames until either side hangs up.
func (h *WSHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "missing token"})
		return
	}
	userID, err := h.verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(userID, h.buffer)
	h.hub.Register(client)
	h.logger.Info("Websocket connected", zap.String("user_id", userID))

	go h.writePump(conn, client)
	h.readPump(conn, client)
}

func (h *WSHandler) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		h.hub.Unregister(client)
		_ = conn.Close()
		h.logger.Info("Websocket disconnected", zap.String("user_id", client.UserID))
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Websocket read error", zap.Error(err))
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		projectID := joinTarget(f.Data)
		if projectID == "" {
			continue
		}
		switch f.Event {
		case SignalJoinProject:
			h.hub.Join(client, RoomForProject(projectID))
		case SignalLeaveProject:
			h.hub.Leave(client, RoomForProject(projectID))
		}
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
