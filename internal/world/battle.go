package world

import (
	"encoding/binary"
	"math/bits"

	"github.com/tetraworld/server/internal/tetra"
)

// MaxBattleParticipants is the slot count; logs are one byte wide.
const MaxBattleParticipants = 8

// TurnDuration is the per-turn deadline in ms.
const TurnDuration = 5000

// Battle is a turn-based instance anchored on a tile. Turn 0 means finished.
// Bit i of ParticipantsLog means slot i has joined; bit i of TurnLog means
// slot i has played the current turn. Advancing a turn intersects
// ParticipantsLog with the previous TurnLog, dropping the silent.
type Battle struct {
	ID      tetra.ID
	Version uint8

	Turn     uint8
	TurnTime uint32 // deadline, wall-clock ms

	ParticipantsLog uint8
	TurnLog         uint8

	Participants  [MaxBattleParticipants]uint16 // slot → heroId, 0 = empty
	LastEnemyCard uint32
}

func (b *Battle) Bump() {
	b.Version++
}

// Finished reports whether the battle has ended.
func (b *Battle) Finished() bool {
	return b.Turn == 0
}

// Slot returns the hero's slot, or -1.
func (b *Battle) Slot(heroID uint16) int {
	for i, id := range b.Participants {
		if id == heroID && b.ParticipantsLog&(1<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}

// Join admits a hero into the lowest free slot. A hero already admitted gets
// their existing slot back without mutation. Returns (slot, joined, ok);
// ok=false means the battle is full.
func (b *Battle) Join(heroID uint16) (int, bool, bool) {
	if s := b.Slot(heroID); s >= 0 {
		return s, false, true
	}
	for i := 0; i < MaxBattleParticipants; i++ {
		if b.ParticipantsLog&(1<<uint(i)) == 0 {
			b.Participants[i] = heroID
			b.ParticipantsLog |= 1 << uint(i)
			b.Bump()
			return i, true, true
		}
	}
	return -1, false, false
}

// PlayTurn records the hero's move for the current turn. Returns false when
// the hero is not a participant or has already played. The caller decides
// when to advance (all played, or deadline passed).
func (b *Battle) PlayTurn(heroID uint16, card uint32) bool {
	s := b.Slot(heroID)
	if s < 0 {
		return false
	}
	bit := uint8(1) << uint(s)
	if b.TurnLog&bit != 0 {
		return false
	}
	b.TurnLog |= bit
	b.LastEnemyCard = card
	b.Bump()
	return true
}

// AllPlayed reports whether every joined participant has played this turn.
func (b *Battle) AllPlayed() bool {
	return b.ParticipantsLog != 0 && b.TurnLog == b.ParticipantsLog
}

// Advance moves to the next turn: participants who did not play are dropped,
// the turn log resets, and a fresh deadline starts.
func (b *Battle) Advance(nowMs uint32) {
	b.ParticipantsLog &= b.TurnLog
	b.TurnLog = 0
	b.Turn++
	b.TurnTime = nowMs + TurnDuration
	b.Bump()
}

// ParticipantCount is popcount of the joined log.
func (b *Battle) ParticipantCount() int {
	return bits.OnesCount8(b.ParticipantsLog)
}

func (b *Battle) Clone() *Battle {
	c := *b
	return &c
}

// EncodeTo writes the 34-byte wire snapshot (packet.BattleSize bytes).
func (b *Battle) EncodeTo(buf []byte) {
	b.ID.Encode(buf[0:6])
	buf[6] = b.Version
	buf[7] = b.Turn
	binary.LittleEndian.PutUint32(buf[8:12], b.TurnTime)
	buf[12] = b.ParticipantsLog
	buf[13] = b.TurnLog
	for i := 0; i < MaxBattleParticipants; i++ {
		binary.LittleEndian.PutUint16(buf[14+2*i:], b.Participants[i])
	}
	binary.LittleEndian.PutUint32(buf[30:34], b.LastEnemyCard)
}

// DecodeBattle reads the 34-byte wire snapshot.
func DecodeBattle(buf []byte) Battle {
	var b Battle
	b.ID = tetra.Decode(buf[0:6])
	b.Version = buf[6]
	b.Turn = buf[7]
	b.TurnTime = binary.LittleEndian.Uint32(buf[8:12])
	b.ParticipantsLog = buf[12]
	b.TurnLog = buf[13]
	for i := 0; i < MaxBattleParticipants; i++ {
		b.Participants[i] = binary.LittleEndian.Uint16(buf[14+2*i:])
	}
	b.LastEnemyCard = binary.LittleEndian.Uint32(buf[30:34])
	return b
}
