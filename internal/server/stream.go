package server

import (
	"net/http"
	"path"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"kanban/internal/board"
	"kanban/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// StreamMessage is one frame on the board stream.
type StreamMessage struct {
	Type  string       `json:"type"`
	Board domain.Board `json:"board"`
}

// registerStream pushes the board to websocket clients: once on connect, then
// after every applied operation.
func registerStream(r chi.Router, basePath string, store *board.Store, allowedOrigin string) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(req *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return req.Header.Get("Origin") == allowedOrigin
		},
	}
	r.Get(path.Join(basePath, "board/stream"), func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			log.WithError(err).Warn("websocket upgrade failed")
			return
		}
		fields := log.Fields{"remote": req.RemoteAddr}
		if p, ok := principalFromContext(req.Context()); ok {
			fields["subject"] = p.Subject
		}
		log.WithFields(fields).Debug("board stream opened")
		updates, unsubscribe := store.Subscribe()
		defer unsubscribe()
		go readPump(conn)
		writePump(conn, store.State(), updates)
		log.WithFields(fields).Debug("board stream closed")
	})
}

// readPump only exists to process control frames and notice disconnects.
func readPump(conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, initial domain.Board, updates <-chan domain.Board) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	if err := writeBoard(conn, "snapshot", initial); err != nil {
		return
	}
	for {
		select {
		case b, ok := <-updates:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := writeBoard(conn, "update", b); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeBoard(conn *websocket.Conn, kind string, b domain.Board) error {
	data, err := sonic.Marshal(StreamMessage{Type: kind, Board: b})
	if err != nil {
		log.WithError(err).Error("encode board frame")
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
