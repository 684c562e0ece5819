package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/CoachForgeHQ/coachforge-go/config"
	"github.com/CoachForgeHQ/coachforge-go/services"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range config.AllowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	},
}

// EditorEventsHandler upgrades the connection and streams reset and
// save-state events for the request's session. The browser WebSocket API
// cannot set custom request headers, so the session id and token arrive as
// query parameters instead of the usual headers; they are validated here
// before the upgrade.
func EditorEventsHandler(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sessionId query parameter is required"})
		return
	}

	sc, exists := SessionManager.Get(sessionID)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown edit session"})
		return
	}

	if err := validateSessionToken(c.Query("token"), sessionID); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	sc.Touch()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed for session %s: %v", sc.SessionID, err)
		return
	}

	client := &services.EditorClient{
		Conn:      conn,
		SessionID: sc.SessionID,
		Send:      make(chan []byte, 16),
	}
	Hub.Register(client)

	go writePump(client)
	go readPump(client)
}

// readPump drains inbound frames; editors never send application data, so its
// only job is detecting the close.
func readPump(client *services.EditorClient) {
	defer func() {
		Hub.Unregister(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(512)
	client.Conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(client *services.EditorClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
