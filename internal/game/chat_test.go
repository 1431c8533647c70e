package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetraworld/server/internal/command"
	"github.com/tetraworld/server/internal/world"
)

func TestChatFlushStampsNames(t *testing.T) {
	w := world.NewState()
	w.PutHero(&world.Hero{ID: 1, Faction: 1, Name: world.EncodeName("Mira")})

	q := command.NewQueues(command.Sizes{Chat: 16})
	var got []world.Update
	a := NewChatAggregator(w, q, func(us []world.Update) { got = append(got, us...) }, nil)

	q.SendChat(command.ChatCmd{HeroID: 1, Faction: 1, Text: "到塔那邊集合"})
	q.SendChat(command.ChatCmd{HeroID: 99, Faction: 1, Text: "ghost"}) // unknown hero
	q.SendChat(command.ChatCmd{HeroID: 1, Faction: 0, Text: "global"})
	a.Flush()

	require.Len(t, got, 2)
	first := world.DecodeChatEntry(got[0].Payload)
	assert.Equal(t, "到塔那邊集合", first.Text)
	assert.Equal(t, "Mira", world.DecodeName(first.Name))
	assert.Equal(t, uint8(1), got[0].Faction)
	assert.Equal(t, uint8(0), got[1].Faction) // global bucket reaches everyone
}

func TestChatFlushEmptyQueue(t *testing.T) {
	q := command.NewQueues(command.Sizes{Chat: 4})
	called := false
	a := NewChatAggregator(world.NewState(), q, func([]world.Update) { called = true }, nil)
	a.Flush()
	assert.False(t, called)
}
