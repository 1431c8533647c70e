package net

import (
	"context"
	"fmt"
	stdnet "net"
	"time"

	"github.com/tetraworld/server/internal/net/packet"
	"go.uber.org/zap"
)

// Handler processes inbound packets. Implemented by the protocol router.
type Handler interface {
	// Admit validates the auth header of a packet from an unregistered
	// source. ok=false drops the packet silently.
	Admit(data []byte) (heroID uint16, faction uint8, sessionID uint64, ok bool)
	// HandlePacket routes one packet from a client. The client may be
	// ephemeral (unregistered ping).
	HandlePacket(c *Client, data []byte)
	// Disconnected reports a client leaving (socket close or idle expiry)
	// so the gameplay loop can settle its hero.
	Disconnected(c *Client)
}

// UDPServer owns the datagram socket. One read loop; per-datagram work is the
// router's decode plus a bounded channel send, so a single goroutine keeps up.
type UDPServer struct {
	conn    *stdnet.UDPConn
	hub     *Hub
	handler Handler
	tele    *Telemetry
	log     *zap.Logger
}

func NewUDPServer(port int, hub *Hub, handler Handler, tele *Telemetry, log *zap.Logger) (*UDPServer, error) {
	addr := &stdnet.UDPAddr{Port: port}
	conn, err := stdnet.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %d: %w", port, err)
	}
	return &UDPServer{conn: conn, hub: hub, handler: handler, tele: tele, log: log}, nil
}

// Run reads datagrams until ctx is cancelled.
func (s *UDPServer) Run(ctx context.Context) error {
	s.log.Info("UDP 伺服器啟動", zap.String("addr", s.conn.LocalAddr().String()))
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, packet.MaxDatagram)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("UDP 伺服器停止")
				return ctx.Err()
			}
			s.log.Warn("UDP 讀取錯誤", zap.Error(err))
			continue
		}
		if n == 0 {
			continue
		}
		s.tele.ReceivedBytes.Add(int64(n))

		data := make([]byte, n)
		copy(data, buf[:n])
		s.dispatch(from, data)
	}
}

func (s *UDPServer) dispatch(from *stdnet.UDPAddr, data []byte) {
	key := from.String()
	c := s.hub.Get(key)
	if c == nil {
		// Ping needs no session; answer without registering.
		if data[0] == packet.TagPing {
			s.handler.HandlePacket(s.ephemeral(key, from), data)
			return
		}
		heroID, faction, sessionID, ok := s.handler.Admit(data)
		if !ok {
			s.log.Debug("UDP 未授權封包", zap.String("from", key))
			return
		}
		c = s.ephemeral(key, from)
		c.HeroID = heroID
		c.Faction = faction
		c.SessionID = sessionID
		s.hub.add(c)
	}
	c.Touch(time.Now().UnixMilli())
	s.handler.HandlePacket(c, data)
}

// ephemeral builds a UDP-backed client without registering it.
func (s *UDPServer) ephemeral(key string, from *stdnet.UDPAddr) *Client {
	to := *from
	return NewClient(key, false, func(data []byte) bool {
		_, err := s.conn.WriteToUDP(data, &to)
		return err == nil
	})
}
