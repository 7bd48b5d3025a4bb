package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents upgrades the connection to WebSocket and streams commit
// receipts as JSON messages until the client disconnects. Slow clients
// miss receipts rather than stalling the runtime.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	receipts, cancel := s.rt.Subscribe()
	defer cancel()

	// Drain client frames so pings and close frames are processed;
	// closing done ends the write loop.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case rc := <-receipts:
			if err := conn.WriteJSON(rc); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket write error: %v", err)
				}
				return
			}
		}
	}
}
