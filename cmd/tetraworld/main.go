package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tetraworld/server/internal/command"
	"github.com/tetraworld/server/internal/config"
	"github.com/tetraworld/server/internal/data"
	"github.com/tetraworld/server/internal/game"
	"github.com/tetraworld/server/internal/httpapi"
	gamenet "github.com/tetraworld/server/internal/net"
	"github.com/tetraworld/server/internal/pack"
	"github.com/tetraworld/server/internal/persist"
	"github.com/tetraworld/server/internal/protocol"
	"github.com/tetraworld/server/internal/scripting"
	"github.com/tetraworld/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const (
	exitConfig = 1
	exitBind   = 2
	exitStore  = 3
)

func main() {
	printSection("TETRAWORLD 伺服器")

	configPath := os.Getenv("TETRAWORLD_CONFIG")
	if configPath == "" {
		configPath = "config/server.toml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定載入失敗: %v\n", err)
		os.Exit(exitConfig)
	}
	printStat("設定檔", configPath)
	printStat("世界", cfg.Server.WorldName)

	log, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "日誌初始化失敗: %v\n", err)
		os.Exit(exitConfig)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Storage ────────────────────────────────────────────────
	printSection("儲存層")
	pool, err := persist.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Error("資料庫連線失敗", zap.Error(err))
		os.Exit(exitStore)
	}
	defer pool.Close()
	if err := persist.Migrate(pool, log); err != nil {
		log.Error("資料庫遷移失敗", zap.Error(err))
		os.Exit(exitStore)
	}
	if err := persist.EnsureWorld(ctx, pool, cfg.Server.WorldName); err != nil {
		log.Error("世界記錄失敗", zap.Error(err))
		os.Exit(exitStore)
	}

	st := world.NewState()
	store := persist.NewStore(pool, st, cfg.Persist, log)
	if err := store.Load(ctx); err != nil {
		log.Error("世界載入失敗", zap.Error(err))
		os.Exit(exitStore)
	}
	printStat("英雄", fmt.Sprintf("%d", st.HeroCount()))

	// ── Data tables and scripts ────────────────────────────────
	printSection("資料表")
	items, err := data.LoadItemTable("data/yaml/item_list.yaml")
	if err != nil {
		log.Error("物品表載入失敗", zap.Error(err))
		os.Exit(exitConfig)
	}
	mobs, err := data.LoadMobTable("data/yaml/mob_list.yaml")
	if err != nil {
		log.Error("怪物表載入失敗", zap.Error(err))
		os.Exit(exitConfig)
	}
	progression, err := data.LoadProgressionTable("data/yaml/progression.yaml")
	if err != nil {
		log.Error("成長表載入失敗", zap.Error(err))
		os.Exit(exitConfig)
	}
	printStat("物品", fmt.Sprintf("%d", items.Count()))
	printStat("怪物", fmt.Sprintf("%d", mobs.Count()))
	printStat("等級", fmt.Sprintf("%d", progression.Count()))

	engine, err := scripting.NewEngine("scripts", log)
	if err != nil {
		log.Error("腳本引擎載入失敗", zap.Error(err))
		os.Exit(exitConfig)
	}
	defer engine.Close()

	// ── Game plumbing ──────────────────────────────────────────
	queues := command.NewQueues(command.Sizes{
		Hero:   cfg.Game.HeroQueueSize,
		Mob:    cfg.Game.MobQueueSize,
		Tile:   cfg.Game.TileQueueSize,
		Tower:  cfg.Game.TowerQueueSize,
		Battle: cfg.Game.BattleQueueSize,
		Chat:   cfg.Game.ChatQueueSize,
		Direct: cfg.Game.DirectQueueSize,
	})
	tele := &gamenet.Telemetry{}
	hub := gamenet.NewHub(tele, log)
	sessions := world.NewSessionTable()

	em := &emitter{
		packer: pack.NewPacker(cfg.Game.MaxFrameBytes),
		hub:    hub,
		world:  st,
		log:    log,
	}

	dispatcher := game.NewDispatcher(game.Deps{
		World:           st,
		Queues:          queues,
		Items:           items,
		Mobs:            mobs,
		Progression:     progression,
		Scripting:       engine,
		Persist:         store,
		Emit:            em.Emit,
		Telemetry:       tele,
		Log:             log,
		ControlWindowMs: uint32(cfg.Game.ControlWindow.Milliseconds()),
	})
	chat := game.NewChatAggregator(st, queues, em.Emit, log)
	router := protocol.NewRouter(queues, sessions, log)

	// ── Transports ─────────────────────────────────────────────
	printSection("網路層")
	udp, err := gamenet.NewUDPServer(cfg.Network.UDPPort, hub, router, tele, log)
	if err != nil {
		log.Error("UDP 綁定失敗", zap.Error(err))
		os.Exit(exitBind)
	}
	ws := gamenet.NewWSServer(cfg.Network.WSPort, cfg.Network.OutQueueSize, hub, router, tele, log)
	api := httpapi.NewServer(cfg.Network.HTTPPort, cfg.Network.UDPPort, cfg.Network.WSPort,
		pool, st, sessions, progression, store, log)
	printStat("UDP", fmt.Sprintf(":%d", cfg.Network.UDPPort))
	printStat("WebSocket", fmt.Sprintf(":%d", cfg.Network.WSPort))
	printStat("HTTP", fmt.Sprintf(":%d", cfg.Network.HTTPPort))

	// ── Run ────────────────────────────────────────────────────
	printSection("啟動完成")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx, cfg.Game.TickRate) })
	g.Go(func() error { return chat.Run(gctx, cfg.Game.ChatCadence) })
	g.Go(func() error { return udp.Run(gctx) })
	g.Go(func() error { return ws.Run(gctx) })
	g.Go(func() error { return api.Run(gctx) })
	g.Go(func() error { return hub.RunDirect(gctx, queues) })
	g.Go(func() error {
		return hub.RunIdleSweep(gctx, cfg.Network.IdleTimeout, func(c *gamenet.Client) {
			router.Disconnected(c)
		})
	})
	g.Go(func() error { return store.Run(gctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error("伺服器異常結束", zap.Error(err))
		os.Exit(1)
	}
	log.Info("伺服器已關閉")
}

// emitter serializes frame packing: the dispatcher and the chat aggregator
// both emit, and the packer owns a single packet-id sequence.
type emitter struct {
	mu     sync.Mutex
	packer *pack.Packer
	hub    *gamenet.Hub
	world  *world.State
	log    *zap.Logger
}

func (e *emitter) Emit(updates []world.Update) {
	e.mu.Lock()
	frames, err := e.packer.Pack(e.world.NowSec(), updates)
	e.mu.Unlock()
	if err != nil {
		e.log.Error("封包打包失敗", zap.Error(err))
		return
	}
	e.hub.Broadcast(frames)
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	return zc.Build()
}

func printSection(title string) {
	fmt.Printf("\n========== %s ==========\n", title)
}

func printStat(name, value string) {
	fmt.Printf("  %-12s %s\n", name, value)
}
