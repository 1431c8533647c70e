package net

import (
	"context"
	"sync"
	"time"

	"github.com/tetraworld/server/internal/command"
	"github.com/tetraworld/server/internal/pack"
	"go.uber.org/zap"
)

// Hub is the registry of connected clients and the outbound fan-out point.
// The dispatcher's emit callback lands here; so does the direct-reply queue.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	tele *Telemetry
	log  *zap.Logger
}

func NewHub(tele *Telemetry, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		tele:    tele,
		log:     log,
	}
}

// Get returns the client registered under the transport key, or nil.
func (h *Hub) Get(key string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[key]
}

// add registers a client, replacing any previous holder of the key.
func (h *Hub) add(c *Client) {
	h.mu.Lock()
	_, existed := h.clients[c.Key]
	h.clients[c.Key] = c
	h.mu.Unlock()
	if !existed {
		h.tele.OnlinePlayers.Add(1)
	}
	h.log.Info("客戶端連線",
		zap.String("key", c.Key),
		zap.Uint16("hero", c.HeroID),
		zap.Bool("ws", c.WS))
}

// remove drops the client only while it still holds the key with the same
// session: a reconnect that reused the address must not be torn down by the
// old connection's expiry.
func (h *Hub) remove(key string, sessionID uint64) *Client {
	h.mu.Lock()
	c, ok := h.clients[key]
	if !ok || c.SessionID != sessionID {
		h.mu.Unlock()
		return nil
	}
	delete(h.clients, key)
	h.mu.Unlock()
	h.tele.OnlinePlayers.Add(-1)
	h.log.Info("客戶端離線", zap.String("key", key), zap.Uint16("hero", c.HeroID))
	return c
}

// Broadcast pushes each frame to every client whose subscription matches.
// Sends never block the caller: a WebSocket client with a full queue is
// dropped by its own writer.
func (h *Hub) Broadcast(frames []pack.Frame) {
	if len(frames) == 0 {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		for i := range frames {
			f := &frames[i]
			if !c.Wants(f) {
				continue
			}
			if c.send(f.Data) {
				h.tele.SentBytes.Add(int64(len(f.Data)))
				h.tele.SentGamePackets.Add(int64(f.GamePackets))
				if !c.WS {
					h.tele.SentUDPPackets.Add(1)
				}
			}
		}
	}
}

// SendDirect delivers one point-to-point payload by transport key.
func (h *Hub) SendDirect(key string, data []byte) bool {
	c := h.Get(key)
	if c == nil {
		return false
	}
	if !c.send(data) {
		return false
	}
	h.tele.SentBytes.Add(int64(len(data)))
	if !c.WS {
		h.tele.SentUDPPackets.Add(1)
	}
	return true
}

// RunDirect consumes the direct-reply queue until ctx is cancelled.
func (h *Hub) RunDirect(ctx context.Context, q *command.Queues) error {
	for {
		select {
		case cmd := <-q.Direct:
			if !h.SendDirect(cmd.Addr, cmd.Data) {
				h.log.Debug("直達回覆無目標", zap.String("key", cmd.Addr))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunIdleSweep expires silent clients on a fixed cadence. Each expiry is
// reported through onExpire (a synthetic disconnect for the gameplay loop)
// before the client is forgotten.
func (h *Hub) RunIdleSweep(ctx context.Context, idle time.Duration, onExpire func(*Client)) error {
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.sweep(time.Now().UnixMilli(), idle.Milliseconds(), onExpire)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Hub) sweep(nowMs, idleMs int64, onExpire func(*Client)) {
	h.mu.RLock()
	var stale []*Client
	for _, c := range h.clients {
		if c.IdleSince(nowMs, idleMs) {
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range stale {
		if h.remove(c.Key, c.SessionID) == nil {
			continue
		}
		h.log.Info("客戶端閒置逾時", zap.String("key", c.Key), zap.Uint16("hero", c.HeroID))
		if onExpire != nil {
			onExpire(c)
		}
	}
}
