package game

import (
	"github.com/tetraworld/server/internal/command"
	"github.com/tetraworld/server/internal/pack"
	"github.com/tetraworld/server/internal/world"
	"go.uber.org/zap"
)

// sendDirect encodes a point-to-point reply frame and hands it to the direct
// queue. Direct frames carry their own packet-id sequence: clients cannot
// reconcile them against the broadcast stream anyway.
func (d *Dispatcher) sendDirect(addr string, ws bool, updates []world.Update) {
	if len(updates) == 0 {
		return
	}
	d.directSeq++
	data, err := pack.EncodeDirect(d.directSeq, d.deps.World.NowSec(), updates)
	if err != nil {
		d.deps.Log.Warn("直達封包編碼失敗", zap.Error(err))
		return
	}
	d.deps.Queues.SendDirect(command.DirectCmd{Addr: addr, WS: ws, Data: data})
}
