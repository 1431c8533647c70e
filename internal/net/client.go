package net

import (
	"sync/atomic"

	"github.com/tetraworld/server/internal/pack"
)

// RegionSlots is how many region subscriptions a client carries. The slots
// come from the auth header's movement context and are refreshed on every
// authenticated packet.
const RegionSlots = 3

// Client is one connected endpoint, UDP or WebSocket. All fields written
// after registration are atomics: the receive task, the fan-out goroutine
// and the idle sweeper touch clients concurrently.
type Client struct {
	Key string // transport key: remote address
	WS  bool

	HeroID    uint16
	Faction   uint8
	SessionID uint64

	regions  [RegionSlots]atomic.Uint32
	lastSeen atomic.Int64 // unix ms

	// send pushes one already-encoded frame on the transport. Non-blocking
	// for WebSocket clients (bounded queue); a failed send reports false.
	send func(data []byte) bool
}

// NewClient builds a client over a transport send function. send must not
// block; report false on failure.
func NewClient(key string, ws bool, send func([]byte) bool) *Client {
	return &Client{Key: key, WS: ws, send: send}
}

// Send pushes one encoded frame on the client's transport.
func (c *Client) Send(data []byte) bool {
	return c.send(data)
}

// Touch refreshes the idle clock.
func (c *Client) Touch(nowMs int64) {
	c.lastSeen.Store(nowMs)
}

// IdleSince reports whether the client has been silent past the deadline.
func (c *Client) IdleSince(nowMs, idleMs int64) bool {
	return nowMs-c.lastSeen.Load() > idleMs
}

// SetRegions replaces the subscription slots.
func (c *Client) SetRegions(r [RegionSlots]uint16) {
	for i := 0; i < RegionSlots; i++ {
		c.regions[i].Store(uint32(r[i]))
	}
}

// Wants applies the fan-out filter: a frame is delivered when its faction tag
// is global or matches, and its region tag is global, subscribed, or the
// client runs with an empty first slot (firehose — fresh logins before the
// first movement packet).
func (c *Client) Wants(f *pack.Frame) bool {
	if f.Faction != 0 && f.Faction != c.Faction {
		return false
	}
	if f.Region == 0 {
		return true
	}
	if c.regions[0].Load() == 0 {
		return true
	}
	for i := 0; i < RegionSlots; i++ {
		if uint16(c.regions[i].Load()) == f.Region {
			return true
		}
	}
	return false
}
