package world

import (
	"sync"
	"sync/atomic"

	"github.com/tetraworld/server/internal/tetra"
)

// Region bundles everything spatially owned by one LOD-7 tile: its tile map,
// mob map, mob-position index, and battle map. One exclusive guard covers the
// tiles/battles and a separate one the mobs, so two unrelated regions — and
// tile vs mob work within one region — never contend.
//
// The guard must never be held across a channel send: the dispatcher's
// pattern is take guard → clone/mutate/write-back → release → emit.
type Region struct {
	ID tetra.ID

	TileMu  sync.Mutex
	Tiles   map[tetra.ID]*Tile
	Battles map[tetra.ID]*Battle

	MobMu        sync.Mutex
	Mobs         map[uint32]*Mob
	MobPositions map[tetra.ID]uint32 // tile → mobId occupying it
}

func newRegion(id tetra.ID) *Region {
	return &Region{
		ID:           id,
		Tiles:        make(map[tetra.ID]*Tile),
		Battles:      make(map[tetra.ID]*Battle),
		Mobs:         make(map[uint32]*Mob),
		MobPositions: make(map[tetra.ID]uint32),
	}
}

// State is the authoritative world. Heroes live in one global map — their
// count makes a global guard cheaper than cross-region reasoning — while
// tiles, mobs and battles are region-sharded. Towers and kingdoms are global.
type State struct {
	heroMu sync.Mutex
	heroes map[uint16]*Hero

	regionMu sync.Mutex
	regions  map[tetra.ID]*Region

	towerMu sync.Mutex
	towers  map[tetra.ID]*Tower

	kingdomMu sync.Mutex
	kingdoms  map[tetra.ID]*Kingdom

	// ClockMs is the shared wall clock, written once per tick by the
	// dispatcher and read lock-free everywhere else.
	ClockMs atomic.Uint64

	nextMobID atomic.Uint32
}

func NewState() *State {
	return &State{
		heroes:   make(map[uint16]*Hero),
		regions:  make(map[tetra.ID]*Region),
		towers:   make(map[tetra.ID]*Tower),
		kingdoms: make(map[tetra.ID]*Kingdom),
	}
}

// NowSec reads the shared clock as u32 wall seconds: the unit of the frame
// header timestamp.
func (s *State) NowSec() uint32 {
	return uint32(s.ClockMs.Load() / 1000)
}

// NextMobID hands out process-unique mob ids starting at 1.
func (s *State) NextMobID() uint32 {
	return s.nextMobID.Add(1)
}

// EnsureMobIDFloor raises the mob id sequence past ids seen in storage so a
// restart never reissues a live id.
func (s *State) EnsureMobIDFloor(id uint32) {
	for {
		cur := s.nextMobID.Load()
		if cur >= id {
			return
		}
		if s.nextMobID.CompareAndSwap(cur, id) {
			return
		}
	}
}

// ── Heroes ─────────────────────────────────────────────────────────

// PutHero installs a hero (login). An existing hero with the same id is
// replaced; heroes never disappear afterwards.
func (s *State) PutHero(h *Hero) {
	s.heroMu.Lock()
	s.heroes[h.ID] = h
	s.heroMu.Unlock()
}

// WithHero runs fn on the hero under the global hero guard. Returns false if
// the hero does not exist. fn must not send on channels.
func (s *State) WithHero(id uint16, fn func(*Hero)) bool {
	s.heroMu.Lock()
	defer s.heroMu.Unlock()
	h, ok := s.heroes[id]
	if !ok {
		return false
	}
	fn(h)
	return true
}

// WithTwoHeroes runs fn on both heroes under one guard acquisition; used by
// hero-vs-hero combat which may cross region boundaries.
func (s *State) WithTwoHeroes(a, b uint16, fn func(ha, hb *Hero)) bool {
	s.heroMu.Lock()
	defer s.heroMu.Unlock()
	ha, ok := s.heroes[a]
	if !ok {
		return false
	}
	hb, ok := s.heroes[b]
	if !ok {
		return false
	}
	fn(ha, hb)
	return true
}

// EachHero iterates all heroes under the guard.
func (s *State) EachHero(fn func(*Hero)) {
	s.heroMu.Lock()
	defer s.heroMu.Unlock()
	for _, h := range s.heroes {
		fn(h)
	}
}

// HeroCount returns the number of known heroes.
func (s *State) HeroCount() int {
	s.heroMu.Lock()
	defer s.heroMu.Unlock()
	return len(s.heroes)
}

// ── Regions ────────────────────────────────────────────────────────

// RegionFor returns (creating on first touch) the region owning the given
// key. The region map guard covers membership only; per-region data has its
// own guards.
func (s *State) RegionFor(id tetra.ID) *Region {
	key := id.Region()
	s.regionMu.Lock()
	defer s.regionMu.Unlock()
	r, ok := s.regions[key]
	if !ok {
		r = newRegion(key)
		s.regions[key] = r
	}
	return r
}

// EachRegion iterates regions. fn runs without the membership guard held on
// the region's internal data; take the per-region guard inside.
func (s *State) EachRegion(fn func(*Region)) {
	s.regionMu.Lock()
	list := make([]*Region, 0, len(s.regions))
	for _, r := range s.regions {
		list = append(list, r)
	}
	s.regionMu.Unlock()
	for _, r := range list {
		fn(r)
	}
}

// WithTile runs fn on the tile, creating it if create is set. The region
// tile guard is held for the duration of fn.
func (s *State) WithTile(id tetra.ID, create bool, fn func(*Tile)) bool {
	r := s.RegionFor(id)
	r.TileMu.Lock()
	defer r.TileMu.Unlock()
	t, ok := r.Tiles[id]
	if !ok {
		if !create {
			return false
		}
		t = &Tile{ID: id}
		r.Tiles[id] = t
	}
	fn(t)
	return true
}

// WithBattle runs fn on the battle anchored at id, creating it on demand.
func (s *State) WithBattle(id tetra.ID, create bool, fn func(*Battle)) bool {
	r := s.RegionFor(id)
	r.TileMu.Lock()
	defer r.TileMu.Unlock()
	b, ok := r.Battles[id]
	if !ok {
		if !create {
			return false
		}
		b = &Battle{ID: id, Turn: 1}
		r.Battles[id] = b
	}
	fn(b)
	return true
}

// WithMob runs fn on a mob by id within the region owning pos.
func (s *State) WithMob(regionOf tetra.ID, mobID uint32, fn func(*Mob)) bool {
	r := s.RegionFor(regionOf)
	r.MobMu.Lock()
	defer r.MobMu.Unlock()
	m, ok := r.Mobs[mobID]
	if !ok {
		return false
	}
	fn(m)
	return true
}

// ── Towers and kingdoms ────────────────────────────────────────────

func (s *State) PutTower(t *Tower) {
	s.towerMu.Lock()
	s.towers[t.ID] = t
	s.towerMu.Unlock()
}

func (s *State) WithTower(id tetra.ID, fn func(*Tower)) bool {
	s.towerMu.Lock()
	defer s.towerMu.Unlock()
	t, ok := s.towers[id]
	if !ok {
		return false
	}
	fn(t)
	return true
}

func (s *State) PutKingdom(k *Kingdom) {
	s.kingdomMu.Lock()
	s.kingdoms[k.ID] = k
	s.kingdomMu.Unlock()
}

func (s *State) WithKingdom(id tetra.ID, fn func(*Kingdom)) bool {
	s.kingdomMu.Lock()
	defer s.kingdomMu.Unlock()
	k, ok := s.kingdoms[id]
	if !ok {
		return false
	}
	fn(k)
	return true
}

// EachKingdom iterates kingdoms under the guard.
func (s *State) EachKingdom(fn func(*Kingdom)) {
	s.kingdomMu.Lock()
	defer s.kingdomMu.Unlock()
	for _, k := range s.kingdoms {
		fn(k)
	}
}
