package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/zlib"
	"github.com/tetraworld/server/internal/config"
	"github.com/tetraworld/server/internal/net/packet"
	"github.com/tetraworld/server/internal/tetra"
	"github.com/tetraworld/server/internal/world"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Store absorbs post-mutation clones into dirty sets and flushes them on
// slow cadences. The absorb side is a map write under a mutex; it never
// touches the database, so the tick never waits on Postgres.
type Store struct {
	pool  *pgxpool.Pool
	world *world.State
	cfg   config.PersistConfig
	log   *zap.Logger

	mu       sync.Mutex
	heroes   map[uint16]*world.Hero
	regions  map[tetra.ID]struct{}
	towers   map[tetra.ID]*world.Tower
	kingdoms map[tetra.ID]*world.Kingdom

	// pending mirrors the dirty-set depth for lock-free telemetry reads.
	pending atomic.Int64
}

// Pending reports how many dirty entries wait for the next flush.
func (s *Store) Pending() int64 { return s.pending.Load() }

// recount refreshes the gauge; callers hold s.mu.
func (s *Store) recount() {
	s.pending.Store(int64(len(s.heroes) + len(s.regions) + len(s.towers) + len(s.kingdoms)))
}

func NewStore(pool *pgxpool.Pool, w *world.State, cfg config.PersistConfig, log *zap.Logger) *Store {
	return &Store{
		pool:     pool,
		world:    w,
		cfg:      cfg,
		log:      log,
		heroes:   make(map[uint16]*world.Hero),
		regions:  make(map[tetra.ID]struct{}),
		towers:   make(map[tetra.ID]*world.Tower),
		kingdoms: make(map[tetra.ID]*world.Kingdom),
	}
}

// ── Absorb side (PersistSink) ──────────────────────────────────────

// HeroChanged keeps the latest clone; intermediate states are uninteresting
// to storage.
func (s *Store) HeroChanged(h *world.Hero) {
	s.mu.Lock()
	s.heroes[h.ID] = h
	s.recount()
	s.mu.Unlock()
}

// MobChanged dirties the owning region: mobs persist as part of the region
// document.
func (s *Store) MobChanged(region tetra.ID, _ *world.Mob) {
	s.mu.Lock()
	s.regions[region.Region()] = struct{}{}
	s.recount()
	s.mu.Unlock()
}

func (s *Store) TileChanged(t *world.Tile) {
	s.mu.Lock()
	s.regions[t.ID.Region()] = struct{}{}
	s.recount()
	s.mu.Unlock()
}

func (s *Store) TowerChanged(t *world.Tower) {
	s.mu.Lock()
	s.towers[t.ID] = t
	s.recount()
	s.mu.Unlock()
}

func (s *Store) KingdomChanged(k *world.Kingdom) {
	s.mu.Lock()
	s.kingdoms[k.ID] = k
	s.recount()
	s.mu.Unlock()
}

// ── Flush side ─────────────────────────────────────────────────────

// Run drives the four flushers until ctx is cancelled, then takes one final
// pass so a clean shutdown loses nothing.
func (s *Store) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loop(gctx, s.cfg.HeroFlush, s.FlushHeroes) })
	g.Go(func() error { return s.loop(gctx, s.cfg.RegionFlush, s.FlushRegions) })
	g.Go(func() error { return s.loop(gctx, s.cfg.TowerFlush, s.FlushTowers) })
	g.Go(func() error { return s.loop(gctx, s.cfg.KingdomFlush, s.FlushKingdoms) })
	err := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.FlushAll(flushCtx)
	return err
}

func (s *Store) loop(ctx context.Context, every time.Duration, flush func(context.Context)) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// FlushAll runs every flusher once.
func (s *Store) FlushAll(ctx context.Context) {
	s.FlushHeroes(ctx)
	s.FlushRegions(ctx)
	s.FlushTowers(ctx)
	s.FlushKingdoms(ctx)
	s.log.Info("持久化全部落盤")
}

func (s *Store) FlushHeroes(ctx context.Context) {
	s.mu.Lock()
	batch := s.heroes
	s.heroes = make(map[uint16]*world.Hero)
	s.recount()
	s.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	for id, h := range batch {
		doc, err := json.Marshal(h)
		if err != nil {
			s.log.Error("英雄序列化失敗", zap.Uint16("hero", id), zap.Error(err))
			continue
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO heroes (id, data, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (id) DO UPDATE SET data = $2, updated_at = now()`,
			int32(id), doc)
		if err != nil {
			s.log.Error("英雄寫入失敗", zap.Uint16("hero", id), zap.Error(err))
		}
	}
	s.log.Debug("英雄落盤", zap.Int("count", len(batch)))
}

// FlushRegions writes one row per dirty region: tile snapshots concatenated
// and deflated into BYTEA, mobs as a JSONB document.
func (s *Store) FlushRegions(ctx context.Context) {
	s.mu.Lock()
	batch := s.regions
	s.regions = make(map[tetra.ID]struct{})
	s.recount()
	s.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	for id := range batch {
		if err := s.flushRegion(ctx, id); err != nil {
			s.log.Error("區域寫入失敗", zap.String("region", id.String()), zap.Error(err))
		}
	}
	s.log.Debug("區域落盤", zap.Int("count", len(batch)))
}

func (s *Store) flushRegion(ctx context.Context, id tetra.ID) error {
	r := s.world.RegionFor(id)

	r.TileMu.Lock()
	raw := make([]byte, 0, len(r.Tiles)*packet.TileSize)
	var buf [packet.TileSize]byte
	for _, t := range r.Tiles {
		t.EncodeTo(buf[:])
		raw = append(raw, buf[:]...)
	}
	r.TileMu.Unlock()

	r.MobMu.Lock()
	mobs := make([]*world.Mob, 0, len(r.Mobs))
	for _, m := range r.Mobs {
		mobs = append(mobs, m.Clone())
	}
	r.MobMu.Unlock()

	var blob bytes.Buffer
	zw, err := zlib.NewWriterLevel(&blob, zlib.BestCompression)
	if err != nil {
		return err
	}
	if _, err := zw.Write(raw); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	mobDoc, err := json.Marshal(mobs)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO regions (id, tiles, mobs, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET tiles = $2, mobs = $3, updated_at = now()`,
		id.String(), blob.Bytes(), mobDoc)
	return err
}

func (s *Store) FlushTowers(ctx context.Context) {
	s.mu.Lock()
	batch := s.towers
	s.towers = make(map[tetra.ID]*world.Tower)
	s.recount()
	s.mu.Unlock()
	for id, t := range batch {
		doc, err := json.Marshal(t)
		if err != nil {
			s.log.Error("塔序列化失敗", zap.String("tower", id.String()), zap.Error(err))
			continue
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO towers (id, data, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (id) DO UPDATE SET data = $2, updated_at = now()`,
			id.String(), doc)
		if err != nil {
			s.log.Error("塔寫入失敗", zap.String("tower", id.String()), zap.Error(err))
		}
	}
}

func (s *Store) FlushKingdoms(ctx context.Context) {
	s.mu.Lock()
	batch := s.kingdoms
	s.kingdoms = make(map[tetra.ID]*world.Kingdom)
	s.recount()
	s.mu.Unlock()
	for id, k := range batch {
		doc, err := json.Marshal(k)
		if err != nil {
			s.log.Error("王國序列化失敗", zap.String("kingdom", id.String()), zap.Error(err))
			continue
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO kingdoms (id, data, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (id) DO UPDATE SET data = $2, updated_at = now()`,
			id.String(), doc)
		if err != nil {
			s.log.Error("王國寫入失敗", zap.String("kingdom", id.String()), zap.Error(err))
		}
	}
}

// ── Boot-time load ─────────────────────────────────────────────────

// Load hydrates the world from storage. Missing tables have been migrated
// already; an empty database yields an empty world.
func (s *Store) Load(ctx context.Context) error {
	if err := s.loadHeroes(ctx); err != nil {
		return fmt.Errorf("load heroes: %w", err)
	}
	if err := s.loadRegions(ctx); err != nil {
		return fmt.Errorf("load regions: %w", err)
	}
	if err := s.loadTowers(ctx); err != nil {
		return fmt.Errorf("load towers: %w", err)
	}
	if err := s.loadKingdoms(ctx); err != nil {
		return fmt.Errorf("load kingdoms: %w", err)
	}
	return nil
}

func (s *Store) loadHeroes(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT data FROM heroes`)
	if err != nil {
		return err
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return err
		}
		var h world.Hero
		if err := json.Unmarshal(doc, &h); err != nil {
			return err
		}
		s.world.PutHero(&h)
		count++
	}
	s.log.Info("英雄載入完成", zap.Int("count", count))
	return rows.Err()
}

func (s *Store) loadRegions(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT tiles, mobs FROM regions`)
	if err != nil {
		return err
	}
	defer rows.Close()
	count := 0
	var maxMobID uint32
	for rows.Next() {
		var blob, mobDoc []byte
		if err := rows.Scan(&blob, &mobDoc); err != nil {
			return err
		}

		zr, err := zlib.NewReader(bytes.NewReader(blob))
		if err != nil {
			return err
		}
		var raw bytes.Buffer
		if _, err := raw.ReadFrom(zr); err != nil {
			zr.Close()
			return err
		}
		zr.Close()
		data := raw.Bytes()
		for off := 0; off+packet.TileSize <= len(data); off += packet.TileSize {
			t := world.DecodeTile(data[off : off+packet.TileSize])
			s.world.WithTile(t.ID, true, func(dst *world.Tile) {
				*dst = t
			})
		}

		var mobs []*world.Mob
		if err := json.Unmarshal(mobDoc, &mobs); err != nil {
			return err
		}
		for _, m := range mobs {
			r := s.world.RegionFor(m.Start)
			r.MobMu.Lock()
			r.Mobs[m.ID] = m
			r.MobPositions[m.End] = m.ID
			r.MobMu.Unlock()
			if m.ID > maxMobID {
				maxMobID = m.ID
			}
		}
		count++
	}
	s.world.EnsureMobIDFloor(maxMobID)
	s.log.Info("區域載入完成", zap.Int("count", count))
	return rows.Err()
}

func (s *Store) loadTowers(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT data FROM towers`)
	if err != nil {
		return err
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return err
		}
		var t world.Tower
		if err := json.Unmarshal(doc, &t); err != nil {
			return err
		}
		s.world.PutTower(&t)
		count++
	}
	s.log.Info("塔載入完成", zap.Int("count", count))
	return rows.Err()
}

func (s *Store) loadKingdoms(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT data FROM kingdoms`)
	if err != nil {
		return err
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return err
		}
		var k world.Kingdom
		if err := json.Unmarshal(doc, &k); err != nil {
			return err
		}
		s.world.PutKingdom(&k)
		count++
	}
	s.log.Info("王國載入完成", zap.Int("count", count))
	return rows.Err()
}
