// Package httpapi is the out-of-band control plane: account creation, login
// (session minting), and region inspection. Everything latency-sensitive
// stays on the game sockets; this is plain JSON over HTTP.
package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tetraworld/server/internal/data"
	"github.com/tetraworld/server/internal/persist"
	"github.com/tetraworld/server/internal/tetra"
	"github.com/tetraworld/server/internal/world"
	"go.uber.org/zap"
)

// Server wires the control-plane endpoints.
type Server struct {
	pool        *pgxpool.Pool
	world       *world.State
	sessions    *world.SessionTable
	progression *data.ProgressionTable
	store       *persist.Store
	log         *zap.Logger

	udpPort int
	wsPort  int

	srv *http.Server
}

func NewServer(port, udpPort, wsPort int, pool *pgxpool.Pool, w *world.State, sessions *world.SessionTable, prog *data.ProgressionTable, store *persist.Store, log *zap.Logger) *Server {
	s := &Server{
		pool:        pool,
		world:       w,
		sessions:    sessions,
		progression: prog,
		store:       store,
		log:         log,
		udpPort:     udpPort,
		wsPort:      wsPort,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/character", s.handleCharacter)
	mux.HandleFunc("/region", s.handleRegion)
	mux.HandleFunc("/status", s.handleStatus)
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("HTTP 控制面啟動", zap.String("addr", s.srv.Addr))
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		s.log.Info("HTTP 控制面停止")
		return ctx.Err()
	}
	return err
}

type loginRequest struct {
	Name string `json:"name"`
}

type loginResponse struct {
	HeroID    uint16 `json:"hero_id"`
	Faction   uint8  `json:"faction"`
	SessionID uint64 `json:"session_id"`
	UDPPort   int    `json:"udp_port"`
	WSPort    int    `json:"ws_port"`
}

// handleLogin mints a session for a known player and guarantees their hero
// exists in the world. The returned session id authenticates every
// subsequent game packet.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	p, err := persist.GetPlayer(r.Context(), s.pool, req.Name)
	if errors.Is(err, persist.ErrPlayerNotFound) {
		http.Error(w, "unknown player", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("登入查詢失敗", zap.String("name", req.Name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.ensureHero(p)

	sessionID := newSessionID()
	s.sessions.Set(p.HeroID, sessionID)
	s.log.Info("玩家登入", zap.String("name", p.Name), zap.Uint16("hero", p.HeroID))

	writeJSON(w, loginResponse{
		HeroID:    p.HeroID,
		Faction:   p.Faction,
		SessionID: sessionID,
		UDPPort:   s.udpPort,
		WSPort:    s.wsPort,
	})
}

type characterRequest struct {
	Name    string `json:"name"`
	Faction uint8  `json:"faction"`
}

// handleCharacter creates an account plus its hero.
func (s *Server) handleCharacter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req characterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	p, err := persist.CreatePlayer(r.Context(), s.pool, req.Name, req.Faction)
	if err != nil {
		s.log.Warn("建立角色失敗", zap.String("name", req.Name), zap.Error(err))
		http.Error(w, "name taken", http.StatusConflict)
		return
	}
	s.ensureHero(p)
	s.log.Info("角色建立", zap.String("name", p.Name), zap.Uint16("hero", p.HeroID))

	writeJSON(w, loginResponse{
		HeroID:  p.HeroID,
		Faction: p.Faction,
		UDPPort: s.udpPort,
		WSPort:  s.wsPort,
	})
}

// ensureHero creates the hero on first login: level 1, full health, the
// initial skill point grant, empty inventories.
func (s *Server) ensureHero(p persist.Player) {
	exists := s.world.WithHero(p.HeroID, func(*world.Hero) {})
	if exists {
		return
	}
	h := &world.Hero{
		ID:                   p.HeroID,
		Faction:              p.Faction,
		Name:                 world.EncodeName(p.Name),
		Level:                1,
		Health:               s.progression.Constitution(1),
		AvailableSkillPoints: data.InitialSkillPointGrant,
		BaseStrength:         10,
		BaseDefense:          10,
		BaseIntelligence:     10,
		BaseMana:             10,
	}
	s.world.PutHero(h)
	if s.store != nil {
		s.store.HeroChanged(h.Clone())
	}
}

type regionTile struct {
	ID           string `json:"id"`
	Prop         uint8  `json:"prop"`
	Faction      uint8  `json:"faction"`
	Health       uint16 `json:"health"`
	Constitution uint16 `json:"constitution"`
	Version      uint8  `json:"version"`
}

type regionResponse struct {
	ID    string       `json:"id"`
	Tiles []regionTile `json:"tiles"`
	Mobs  int          `json:"mobs"`
}

// handleRegion dumps a region's gameplay tiles: an operator inspection view.
func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := parseTetra(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	region := s.world.RegionFor(id)
	resp := regionResponse{ID: region.ID.String()}

	region.TileMu.Lock()
	for _, t := range region.Tiles {
		resp.Tiles = append(resp.Tiles, regionTile{
			ID:           t.ID.String(),
			Prop:         t.Prop,
			Faction:      t.Faction,
			Health:       t.Health,
			Constitution: t.Constitution,
			Version:      t.Version,
		})
	}
	region.TileMu.Unlock()

	region.MobMu.Lock()
	resp.Mobs = len(region.Mobs)
	region.MobMu.Unlock()

	writeJSON(w, resp)
}

type statusResponse struct {
	Heroes        int   `json:"heroes"`
	PendingWrites int64 `json:"pending_writes"`
}

// handleStatus reports world size and the write-behind backlog.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := statusResponse{Heroes: s.world.HeroCount()}
	if s.store != nil {
		resp.PendingWrites = s.store.Pending()
	}
	writeJSON(w, resp)
}

func parseTetra(r *http.Request) (tetra.ID, error) {
	q := r.URL.Query()
	area, err := strconv.ParseUint(q.Get("area"), 10, 8)
	if err != nil {
		return tetra.Zero, fmt.Errorf("bad area")
	}
	sub, err := strconv.ParseUint(q.Get("sub"), 10, 32)
	if err != nil {
		return tetra.Zero, fmt.Errorf("bad sub")
	}
	lod, err := strconv.ParseUint(q.Get("lod"), 10, 8)
	if err != nil {
		return tetra.Zero, fmt.Errorf("bad lod")
	}
	return tetra.ID{Area: uint8(area), Sub: uint32(sub), Lod: uint8(lod)}, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// newSessionID draws a non-zero random session id.
func newSessionID() uint64 {
	var b [8]byte
	for {
		rand.Read(b[:])
		if id := binary.LittleEndian.Uint64(b[:]); id != 0 {
			return id
		}
	}
}
