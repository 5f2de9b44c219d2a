package ws

import (
	"bufio"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kalaharena/backend/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // browser clients connect from anywhere
	},
}

const writeWait = 10 * time.Second

// BridgeHandler upgrades the request and relays the line protocol between
// the WebSocket and a local connection to the TCP arbiter, one text frame
// per protocol line. Note that bridged clients reach the arbiter from
// loopback, so the one-registration-per-ip rule does not bind them.
func BridgeHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade failed: %v", err)
			return
		}

		tcpConn, err := net.Dial("tcp", "127.0.0.1:"+cfg.GamePort)
		if err != nil {
			log.Printf("[WS] Could not reach arbiter: %v", err)
			wsConn.Close()
			return
		}

		log.Printf("[WS] Bridge opened for %s", c.ClientIP())
		go pumpToArbiter(wsConn, tcpConn)
		pumpToBrowser(wsConn, tcpConn)
		log.Printf("[WS] Bridge closed for %s", c.ClientIP())
	}
}

// pumpToArbiter forwards each inbound frame as one protocol line
func pumpToArbiter(wsConn *websocket.Conn, tcpConn net.Conn) {
	defer tcpConn.Close()
	defer wsConn.Close()

	for {
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if len(data) == 0 || data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		if _, err := tcpConn.Write(data); err != nil {
			return
		}
	}
}

// pumpToBrowser forwards each arbiter line as one text frame
func pumpToBrowser(wsConn *websocket.Conn, tcpConn net.Conn) {
	defer tcpConn.Close()
	defer wsConn.Close()

	scanner := bufio.NewScanner(tcpConn)
	for scanner.Scan() {
		wsConn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := wsConn.WriteMessage(websocket.TextMessage, scanner.Bytes()); err != nil {
			return
		}
	}
}
