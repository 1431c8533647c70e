package game

import (
	"context"
	"time"

	"github.com/tetraworld/server/internal/command"
	"github.com/tetraworld/server/internal/world"
	"go.uber.org/zap"
)

// ChatAggregator batches chat lines on its own cadence, off the gameplay
// tick: chat has no state to contend for beyond the hero name lookup, and a
// flood of lines must never stretch a gameplay tick.
type ChatAggregator struct {
	world  *world.State
	queues *command.Queues
	emit   func([]world.Update)
	log    *zap.Logger

	buf []command.ChatCmd
}

func NewChatAggregator(w *world.State, q *command.Queues, emit func([]world.Update), log *zap.Logger) *ChatAggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatAggregator{world: w, queues: q, emit: emit, log: log}
}

// Run flushes pending chat on the given cadence until ctx is cancelled.
func (a *ChatAggregator) Run(ctx context.Context, flushRate time.Duration) error {
	ticker := time.NewTicker(flushRate)
	defer ticker.Stop()
	a.log.Info("聊天聚合啟動", zap.Duration("flush", flushRate))
	for {
		select {
		case <-ticker.C:
			a.Flush()
		case <-ctx.Done():
			a.log.Info("聊天聚合停止")
			return ctx.Err()
		}
	}
}

// Flush drains the chat queue and emits one faction-tagged entry per line.
// Lines from unknown heroes are dropped. Exported for deterministic tests.
func (a *ChatAggregator) Flush() {
	a.buf = a.queues.DrainChat(a.buf[:0])
	if len(a.buf) == 0 {
		return
	}
	updates := make([]world.Update, 0, len(a.buf))
	for _, c := range a.buf {
		var name [5]uint32
		known := a.world.WithHero(c.HeroID, func(h *world.Hero) {
			name = h.Name
		})
		if !known {
			continue
		}
		entry := &world.ChatEntry{
			HeroID:  c.HeroID,
			Faction: c.Faction,
			Name:    name,
			Text:    c.Text,
		}
		updates = append(updates, world.ChatUpdate(entry))
	}
	if len(updates) > 0 && a.emit != nil {
		a.emit(updates)
	}
}
