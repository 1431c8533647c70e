package game

import (
	"context"
	"math/rand"
	"time"

	"github.com/tetraworld/server/internal/command"
	"github.com/tetraworld/server/internal/data"
	"github.com/tetraworld/server/internal/net"
	"github.com/tetraworld/server/internal/scripting"
	"github.com/tetraworld/server/internal/tetra"
	"github.com/tetraworld/server/internal/world"
	"go.uber.org/zap"
)

// PersistSink receives post-mutation clones for the persistence queue. The
// absorbers behind it must never block the tick.
type PersistSink interface {
	HeroChanged(h *world.Hero)
	MobChanged(region tetra.ID, m *world.Mob)
	TileChanged(t *world.Tile)
	TowerChanged(t *world.Tower)
	KingdomChanged(k *world.Kingdom)
}

// Deps wires the dispatcher to everything it mutates or notifies.
type Deps struct {
	World       *world.State
	Queues      *command.Queues
	Items       *data.ItemTable
	Mobs        *data.MobTable
	Progression *data.ProgressionTable
	Scripting   *scripting.Engine // nil → static tables only
	Persist     PersistSink       // nil → in-memory only (tests)
	Emit        func([]world.Update)
	Telemetry   *net.Telemetry // nil in tests
	Log         *zap.Logger
	Rand        *rand.Rand

	ControlWindowMs uint32
}

// Dispatcher is the single logical gameplay task: it drains the command
// queues on a fixed cadence, resolves them against shared world state in a
// stable subsystem order (hero → mob → tile → tower → battle → chat), and
// hands the resulting deltas to the outbound packer.
type Dispatcher struct {
	deps  Deps
	sched scheduler

	heroBuf   []command.HeroCmd
	mobBuf    []command.MobCmd
	tileBuf   []command.TileCmd
	towerBuf  []command.TowerCmd
	battleBuf []command.BattleCmd

	updates []world.Update

	tickIndex uint64
	directSeq uint64
}

func NewDispatcher(deps Deps) *Dispatcher {
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.ControlWindowMs == 0 {
		deps.ControlWindowMs = 60_000
	}
	return &Dispatcher{deps: deps}
}

// Run drives Tick on the configured cadence until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, tickRate time.Duration) error {
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()
	d.deps.Log.Info("遊戲迴圈啟動", zap.Duration("tick", tickRate))
	for {
		select {
		case <-ticker.C:
			d.Tick(uint64(time.Now().UnixMilli()))
		case <-ctx.Done():
			d.deps.Log.Info("遊戲迴圈停止")
			return ctx.Err()
		}
	}
}

// Tick runs one dispatch cycle at the given wall-clock ms. Exported for
// deterministic tests.
func (d *Dispatcher) Tick(nowMs uint64) {
	d.tickIndex++
	d.deps.World.ClockMs.Store(nowMs)

	// Drain every queue into local slices before touching world state so
	// commands arriving mid-tick wait for the next one.
	d.heroBuf = d.deps.Queues.DrainHero(d.heroBuf[:0])
	d.mobBuf = d.deps.Queues.DrainMob(d.mobBuf[:0])
	d.tileBuf = d.deps.Queues.DrainTile(d.tileBuf[:0])
	d.towerBuf = d.deps.Queues.DrainTower(d.towerBuf[:0])
	d.battleBuf = d.deps.Queues.DrainBattle(d.battleBuf[:0])

	readyHero, readyMob, readyTile, readyTower := d.sched.ready(nowMs)

	d.updates = d.updates[:0]

	for _, c := range d.heroBuf {
		d.applyHero(c, nowMs)
	}
	for _, c := range readyHero {
		d.applyHero(c, nowMs)
	}
	for _, c := range d.mobBuf {
		d.applyMob(c, nowMs)
	}
	for _, c := range readyMob {
		d.applyMob(c, nowMs)
	}
	for _, c := range d.tileBuf {
		d.applyTile(c, nowMs)
	}
	for _, c := range readyTile {
		d.applyTile(c, nowMs)
	}
	for _, c := range d.towerBuf {
		d.applyTower(c, nowMs)
	}
	for _, c := range readyTower {
		d.applyTower(c, nowMs)
	}
	for _, c := range d.battleBuf {
		d.applyBattle(c, nowMs)
	}
	d.expireBattleTurns(nowMs)

	// Server status piggybacks on the delta stream once per second.
	if d.tickIndex%10 == 0 {
		st := d.serverStatus()
		d.emit(world.StatusUpdate(&st))
	}

	if len(d.updates) > 0 && d.deps.Emit != nil {
		// All guards are released by now; the hand-off may suspend.
		batch := make([]world.Update, len(d.updates))
		copy(batch, d.updates)
		d.deps.Emit(batch)
	}
}

// emit queues one delta for this tick's hand-off.
func (d *Dispatcher) emit(u world.Update) {
	d.updates = append(d.updates, u)
}

// serverStatus packs the load snapshot: online players, queue gauges, and
// traffic counters squeezed to u16.
func (d *Dispatcher) serverStatus() world.ServerStatus {
	var s world.ServerStatus
	q := d.deps.Queues
	if t := d.deps.Telemetry; t != nil {
		s[0] = clamp16(t.OnlinePlayers.Load())
		s[7] = clamp16(t.ReceivedBytes.Load() >> 10)
		s[8] = clamp16(t.SentBytes.Load() >> 10)
		s[9] = clamp16(t.SentUDPPackets.Load())
	}
	s[1] = clamp16(q.HeroGauge.Load())
	s[2] = clamp16(q.MobGauge.Load())
	s[3] = clamp16(q.TileGauge.Load())
	s[4] = clamp16(q.TowerGauge.Load())
	s[5] = clamp16(q.BattleGauge.Load())
	s[6] = clamp16(int64(d.sched.depth()))
	return s
}

func clamp16(v int64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}
