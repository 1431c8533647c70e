package net

import "sync/atomic"

// Telemetry aggregates transport counters. Written lock-free from the
// receive/send paths, read by the dispatcher's once-a-second status frame.
type Telemetry struct {
	OnlinePlayers   atomic.Int64
	ReceivedBytes   atomic.Int64
	SentBytes       atomic.Int64
	SentUDPPackets  atomic.Int64
	SentGamePackets atomic.Int64
}
