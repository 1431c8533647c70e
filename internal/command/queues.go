package command

import "sync/atomic"

// Sizes configures per-subsystem queue capacities.
type Sizes struct {
	Hero   int
	Mob    int
	Tile   int
	Tower  int
	Battle int
	Chat   int
	Direct int
}

// Queues bundles the bounded per-subsystem channels plus their telemetry
// gauges. Each gauge holds the channel's remaining capacity as observed
// after the most recent send.
type Queues struct {
	Hero   chan HeroCmd
	Mob    chan MobCmd
	Tile   chan TileCmd
	Tower  chan TowerCmd
	Battle chan BattleCmd
	Chat   chan ChatCmd
	Direct chan DirectCmd

	HeroGauge   atomic.Int64
	MobGauge    atomic.Int64
	TileGauge   atomic.Int64
	TowerGauge  atomic.Int64
	BattleGauge atomic.Int64
	ChatGauge   atomic.Int64
	DirectGauge atomic.Int64
}

func NewQueues(s Sizes) *Queues {
	q := &Queues{
		Hero:   make(chan HeroCmd, s.Hero),
		Mob:    make(chan MobCmd, s.Mob),
		Tile:   make(chan TileCmd, s.Tile),
		Tower:  make(chan TowerCmd, s.Tower),
		Battle: make(chan BattleCmd, s.Battle),
		Chat:   make(chan ChatCmd, s.Chat),
		Direct: make(chan DirectCmd, s.Direct),
	}
	q.HeroGauge.Store(int64(s.Hero))
	q.MobGauge.Store(int64(s.Mob))
	q.TileGauge.Store(int64(s.Tile))
	q.TowerGauge.Store(int64(s.Tower))
	q.BattleGauge.Store(int64(s.Battle))
	q.ChatGauge.Store(int64(s.Chat))
	q.DirectGauge.Store(int64(s.Direct))
	return q
}

// The senders block when a queue is full: the callers are per-client receive
// tasks, so a full queue only stalls that client while the gauges expose the
// condition.

func (q *Queues) SendHero(c HeroCmd) {
	q.Hero <- c
	q.HeroGauge.Store(int64(cap(q.Hero) - len(q.Hero)))
}

func (q *Queues) SendMob(c MobCmd) {
	q.Mob <- c
	q.MobGauge.Store(int64(cap(q.Mob) - len(q.Mob)))
}

func (q *Queues) SendTile(c TileCmd) {
	q.Tile <- c
	q.TileGauge.Store(int64(cap(q.Tile) - len(q.Tile)))
}

func (q *Queues) SendTower(c TowerCmd) {
	q.Tower <- c
	q.TowerGauge.Store(int64(cap(q.Tower) - len(q.Tower)))
}

func (q *Queues) SendBattle(c BattleCmd) {
	q.Battle <- c
	q.BattleGauge.Store(int64(cap(q.Battle) - len(q.Battle)))
}

func (q *Queues) SendChat(c ChatCmd) {
	q.Chat <- c
	q.ChatGauge.Store(int64(cap(q.Chat) - len(q.Chat)))
}

func (q *Queues) SendDirect(c DirectCmd) {
	q.Direct <- c
	q.DirectGauge.Store(int64(cap(q.Direct) - len(q.Direct)))
}

// DrainHero moves all currently queued hero commands into dst and returns it.
// Used by the dispatcher once per tick.
func (q *Queues) DrainHero(dst []HeroCmd) []HeroCmd {
	for {
		select {
		case c := <-q.Hero:
			dst = append(dst, c)
		default:
			q.HeroGauge.Store(int64(cap(q.Hero)))
			return dst
		}
	}
}

func (q *Queues) DrainMob(dst []MobCmd) []MobCmd {
	for {
		select {
		case c := <-q.Mob:
			dst = append(dst, c)
		default:
			q.MobGauge.Store(int64(cap(q.Mob)))
			return dst
		}
	}
}

func (q *Queues) DrainTile(dst []TileCmd) []TileCmd {
	for {
		select {
		case c := <-q.Tile:
			dst = append(dst, c)
		default:
			q.TileGauge.Store(int64(cap(q.Tile)))
			return dst
		}
	}
}

func (q *Queues) DrainTower(dst []TowerCmd) []TowerCmd {
	for {
		select {
		case c := <-q.Tower:
			dst = append(dst, c)
		default:
			q.TowerGauge.Store(int64(cap(q.Tower)))
			return dst
		}
	}
}

func (q *Queues) DrainBattle(dst []BattleCmd) []BattleCmd {
	for {
		select {
		case c := <-q.Battle:
			dst = append(dst, c)
		default:
			q.BattleGauge.Store(int64(cap(q.Battle)))
			return dst
		}
	}
}

func (q *Queues) DrainChat(dst []ChatCmd) []ChatCmd {
	for {
		select {
		case c := <-q.Chat:
			dst = append(dst, c)
		default:
			q.ChatGauge.Store(int64(cap(q.Chat)))
			return dst
		}
	}
}
