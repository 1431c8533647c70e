package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tetraworld/server/internal/config"
	"github.com/tetraworld/server/internal/tetra"
	"github.com/tetraworld/server/internal/world"
	"go.uber.org/zap"
)

// The absorb side never touches the pool, so a nil pool is fine here.
func newAbsorbStore() *Store {
	return NewStore(nil, world.NewState(), config.PersistConfig{}, zap.NewNop())
}

func TestPendingTracksDirtySets(t *testing.T) {
	s := newAbsorbStore()
	assert.Equal(t, int64(0), s.Pending())

	s.HeroChanged(&world.Hero{ID: 1})
	s.HeroChanged(&world.Hero{ID: 2})
	assert.Equal(t, int64(2), s.Pending())

	// Re-absorbing the same hero replaces the clone, it does not grow the
	// backlog.
	s.HeroChanged(&world.Hero{ID: 1})
	assert.Equal(t, int64(2), s.Pending())

	// Tile and mob changes collapse onto their owning region.
	pos := tetra.ID{Area: 2, Sub: 4096, Lod: 9}
	s.TileChanged(&world.Tile{ID: pos})
	s.MobChanged(pos, nil)
	assert.Equal(t, int64(3), s.Pending())

	s.TowerChanged(&world.Tower{ID: tetra.ID{Area: 0, Sub: 0, Lod: 7}})
	s.KingdomChanged(&world.Kingdom{ID: tetra.ID{Area: 0, Sub: 0, Lod: 7}})
	assert.Equal(t, int64(5), s.Pending())
}
