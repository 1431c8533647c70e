package net

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tetraworld/server/internal/net/packet"
	"go.uber.org/zap"
)

// WSServer accepts WebSocket connections carrying the same binary protocol
// as the datagram socket, for clients that cannot speak UDP. Each connection
// gets a bounded send queue; a client that cannot keep up is closed rather
// than allowed to exert backpressure on the fan-out.
type WSServer struct {
	hub      *Hub
	handler  Handler
	tele     *Telemetry
	log      *zap.Logger
	outQueue int

	srv      *http.Server
	upgrader websocket.Upgrader
}

func NewWSServer(port int, outQueue int, hub *Hub, handler Handler, tele *Telemetry, log *zap.Logger) *WSServer {
	s := &WSServer{
		hub:      hub,
		handler:  handler,
		tele:     tele,
		log:      log,
		outQueue: outQueue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	s.srv = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	return s
}

// Run serves until ctx is cancelled.
func (s *WSServer) Run(ctx context.Context) error {
	s.log.Info("WebSocket 伺服器啟動", zap.String("addr", s.srv.Addr))
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		s.log.Info("WebSocket 伺服器停止")
		return ctx.Err()
	}
	return err
}

func (s *WSServer) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket 升級失敗", zap.Error(err))
		return
	}
	go s.serveConn(conn)
}

// serveConn runs the per-connection read loop. The paired writer goroutine
// drains the bounded out queue; a full queue closes the connection.
func (s *WSServer) serveConn(conn *websocket.Conn) {
	key := conn.RemoteAddr().String()
	out := make(chan []byte, s.outQueue)
	done := make(chan struct{})

	go func() {
		defer conn.Close()
		for {
			select {
			case data := <-out:
				if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	c := NewClient(key, true, func(data []byte) bool {
		select {
		case out <- data:
			return true
		default:
			// Queue full: the client fell too far behind to recover
			// from deltas anyway.
			conn.Close()
			return false
		}
	})

	registered := false
	defer func() {
		close(done)
		conn.Close()
		if registered {
			if removed := s.hub.remove(key, c.SessionID); removed != nil {
				s.handler.Disconnected(removed)
			}
		}
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		s.tele.ReceivedBytes.Add(int64(len(data)))

		if !registered {
			if data[0] == packet.TagPing {
				s.handler.HandlePacket(c, data)
				continue
			}
			heroID, faction, sessionID, ok := s.handler.Admit(data)
			if !ok {
				s.log.Debug("WebSocket 未授權封包", zap.String("from", key))
				continue
			}
			c.HeroID = heroID
			c.Faction = faction
			c.SessionID = sessionID
			s.hub.add(c)
			registered = true
		}
		c.Touch(time.Now().UnixMilli())
		s.handler.HandlePacket(c, data)
	}
}
