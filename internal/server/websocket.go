package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/tuyalocal/internal/bridge"
	"github.com/muurk/tuyalocal/internal/entity"
	"github.com/muurk/tuyalocal/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Outgoing messages queued per client
	sendBuffer = 16
)

// Message types exchanged over /ws
const (
	TypeSnapshot = "snapshot" // server -> client, all devices, sent on connect
	TypeState    = "state"    // server -> client, one device changed
	TypeCommand  = "command"  // client -> server
	TypeResult   = "result"   // server -> client, reply to a command
	TypeError    = "error"    // server -> client, malformed message
)

// Message is the JSON envelope of every WebSocket message
type Message struct {
	Type    string            `json:"type"`
	Device  *entity.Snapshot  `json:"device,omitempty"`
	Devices []entity.Snapshot `json:"devices,omitempty"`
	Command *bridge.Command   `json:"command,omitempty"`
	Result  *bridge.Result    `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	remoteAddr := r.RemoteAddr
	s.track(remoteAddr, conn)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.untrack(remoteAddr)
		s.serveClient(conn, remoteAddr)
	}()
}

// serveClient runs the read loop of one client; a second goroutine writes
// hub events and command results
func (s *Server) serveClient(conn *websocket.Conn, remoteAddr string) {
	logging.LogConnection(remoteAddr, "websocket_connected")
	defer func() {
		_ = conn.Close()
		logging.LogConnection(remoteAddr, "websocket_closed")
	}()

	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()
	initial := s.hub.Snapshots()

	out := make(chan Message, sendBuffer)
	writerDone := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		defer close(writerDone)
		writePump(conn, remoteAddr, initial, events, out, stop)
	}()

	s.readPump(conn, remoteAddr, out, writerDone)

	close(stop)
	<-writerDone
}

func (s *Server) readPump(conn *websocket.Conn, remoteAddr string, out chan<- Message, writerDone <-chan struct{}) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Info("Connection closed or error reading message",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
			}
			return
		}

		reply := s.handleMessage(remoteAddr, msg)
		select {
		case out <- reply:
		case <-writerDone:
			return
		}
	}
}

func (s *Server) handleMessage(remoteAddr string, msg Message) Message {
	switch msg.Type {
	case TypeCommand:
		if msg.Command == nil {
			return Message{Type: TypeError, Error: "command message without command"}
		}
		logging.Debug("WebSocket command received",
			zap.String("remote_addr", remoteAddr),
			zap.String("device", msg.Command.Device),
			zap.String("action", string(msg.Command.Action)),
		)
		res, _ := s.hub.Execute(*msg.Command)
		return Message{Type: TypeResult, Result: &res}
	default:
		logging.Warn("Received message with unknown type",
			zap.String("remote_addr", remoteAddr),
			zap.String("type", msg.Type),
		)
		return Message{Type: TypeError, Error: "unknown message type " + msg.Type}
	}
}

func writePump(conn *websocket.Conn, remoteAddr string, initial []entity.Snapshot, events <-chan entity.Snapshot, out <-chan Message, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(msg Message) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			logging.Info("Failed to send message",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			// Unblocks the reader
			_ = conn.Close()
			return false
		}
		return true
	}

	if !write(Message{Type: TypeSnapshot, Devices: initial}) {
		return
	}

	for {
		select {
		case <-stop:
			return
		case snap, ok := <-events:
			if !ok {
				// Hub closed
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "bridge stopped"),
					time.Now().Add(writeWait))
				_ = conn.Close()
				return
			}
			if !write(Message{Type: TypeState, Device: &snap}) {
				return
			}
		case msg := <-out:
			if !write(msg) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
