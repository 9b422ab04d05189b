package notice

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware already restricts browser origins for the API
	},
}

// Subscriber is the subscribe side of the notice bus.
type Subscriber interface {
	Subscribe(sessionID string, handler func(Notice)) (cancel func(), err error)
}

// ServeWs upgrades GET /ws/notices?session_id= and relays that session's notices
// to the panel until the socket closes. authorize rejects unknown sessions.
func ServeWs(sub Subscriber, authorize func(ctx context.Context, sessionID string) bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Query("session_id")
		if sessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "session_id required"})
			return
		}
		if !authorize(c.Request.Context(), sessionID) {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid session"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		send := make(chan Notice, 64)
		cancel, err := sub.Subscribe(sessionID, func(n Notice) {
			select {
			case send <- n:
			default:
				logger.Debug("notice dropped, slow client", zap.String("session_id", sessionID))
			}
		})
		if err != nil {
			logger.Warn("notice subscribe failed", zap.Error(err))
			_ = conn.Close()
			return
		}

		done := make(chan struct{})
		go writePump(conn, send, done)
		readPump(conn)
		cancel()
		close(done)
	}
}

// readPump discards client frames; it only keeps the read deadline fresh and
// returns when the connection drops.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, send <-chan Notice, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case n := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(n); err != nil {
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
