package game

import "github.com/tetraworld/server/internal/command"

// Delayed commands resolve at a future tick (projectiles, wind-ups). Two
// plain slices — hero commands and world (mob/tile/tower) commands — are
// filtered each tick; no heap is needed at expected in-flight depths.

type delayedHero struct {
	dueMs uint64
	cmd   command.HeroCmd
}

type delayedMob struct {
	dueMs uint64
	cmd   command.MobCmd
}

type delayedTile struct {
	dueMs uint64
	cmd   command.TileCmd
}

type delayedTower struct {
	dueMs uint64
	cmd   command.TowerCmd
}

type scheduler struct {
	heroes []delayedHero
	mobs   []delayedMob
	tiles  []delayedTile
	towers []delayedTower
}

func (s *scheduler) pushHero(dueMs uint64, cmd command.HeroCmd) {
	cmd.FromDelayed = true
	s.heroes = append(s.heroes, delayedHero{dueMs: dueMs, cmd: cmd})
}

func (s *scheduler) pushMob(dueMs uint64, cmd command.MobCmd) {
	cmd.FromDelayed = true
	s.mobs = append(s.mobs, delayedMob{dueMs: dueMs, cmd: cmd})
}

func (s *scheduler) pushTile(dueMs uint64, cmd command.TileCmd) {
	cmd.FromDelayed = true
	s.tiles = append(s.tiles, delayedTile{dueMs: dueMs, cmd: cmd})
}

func (s *scheduler) pushTower(dueMs uint64, cmd command.TowerCmd) {
	cmd.FromDelayed = true
	s.towers = append(s.towers, delayedTower{dueMs: dueMs, cmd: cmd})
}

// ready partitions each list: entries with dueMs <= nowMs come back in the
// returned slices, the rest stay scheduled. Order within a list is preserved.
func (s *scheduler) ready(nowMs uint64) ([]command.HeroCmd, []command.MobCmd, []command.TileCmd, []command.TowerCmd) {
	var hs []command.HeroCmd
	keepH := s.heroes[:0]
	for _, e := range s.heroes {
		if e.dueMs <= nowMs {
			hs = append(hs, e.cmd)
		} else {
			keepH = append(keepH, e)
		}
	}
	s.heroes = keepH

	var ms []command.MobCmd
	keepM := s.mobs[:0]
	for _, e := range s.mobs {
		if e.dueMs <= nowMs {
			ms = append(ms, e.cmd)
		} else {
			keepM = append(keepM, e)
		}
	}
	s.mobs = keepM

	var ts []command.TileCmd
	keepT := s.tiles[:0]
	for _, e := range s.tiles {
		if e.dueMs <= nowMs {
			ts = append(ts, e.cmd)
		} else {
			keepT = append(keepT, e)
		}
	}
	s.tiles = keepT

	var ws []command.TowerCmd
	keepW := s.towers[:0]
	for _, e := range s.towers {
		if e.dueMs <= nowMs {
			ws = append(ws, e.cmd)
		} else {
			keepW = append(keepW, e)
		}
	}
	s.towers = keepW

	return hs, ms, ts, ws
}

// depth reports in-flight entries across all lists (telemetry).
func (s *scheduler) depth() int {
	return len(s.heroes) + len(s.mobs) + len(s.tiles) + len(s.towers)
}
