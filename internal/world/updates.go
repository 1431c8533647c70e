package world

import (
	"encoding/binary"

	"github.com/tetraworld/server/internal/net/packet"
	"github.com/tetraworld/server/internal/tetra"
)

// Update is one state delta headed for the outbound packer: a full
// post-mutation snapshot plus the routing tags the fan-out filter needs.
// Region 0 means "all regions"; Faction 0 means "all factions".
type Update struct {
	Type    packet.DataType
	Region  uint16
	Faction uint8
	Payload []byte
}

// Attack result codes.
const (
	ResultNormal   uint8 = 0
	ResultMissed   uint8 = 1
	ResultBlocked  uint8 = 2
	ResultCritical uint8 = 3
)

// Entity kinds used in attack frames.
const (
	KindHero  uint8 = 0
	KindMob   uint8 = 1
	KindTower uint8 = 2
	KindTile  uint8 = 3
)

// AttackIntent is broadcast when a wind-up attack is scheduled so other
// clients can play the projectile before resolution.
type AttackIntent struct {
	AttackerKind uint8
	AttackerID   uint32
	TargetKind   uint8
	TargetID     uint32
	CardID       uint32
	RequiredTime uint32
	Missed       uint8
	Faction      uint8
	Windup       uint8
}

// EncodeTo writes the 21-byte payload (packet.AttackSize bytes).
func (a *AttackIntent) EncodeTo(b []byte) {
	b[0] = a.AttackerKind
	binary.LittleEndian.PutUint32(b[1:5], a.AttackerID)
	b[5] = a.TargetKind
	binary.LittleEndian.PutUint32(b[6:10], a.TargetID)
	binary.LittleEndian.PutUint32(b[10:14], a.CardID)
	binary.LittleEndian.PutUint32(b[14:18], a.RequiredTime)
	b[18] = a.Missed
	b[19] = a.Faction
	b[20] = a.Windup
}

func DecodeAttackIntent(b []byte) AttackIntent {
	return AttackIntent{
		AttackerKind: b[0],
		AttackerID:   binary.LittleEndian.Uint32(b[1:5]),
		TargetKind:   b[5],
		TargetID:     binary.LittleEndian.Uint32(b[6:10]),
		CardID:       binary.LittleEndian.Uint32(b[10:14]),
		RequiredTime: binary.LittleEndian.Uint32(b[14:18]),
		Missed:       b[18],
		Faction:      b[19],
		Windup:       b[20],
	}
}

// AttackResult reports a resolved hit: the closest thing the protocol has to
// "your action produced X".
type AttackResult struct {
	TargetKind   uint8
	TargetID     uint32
	AttackerID   uint32
	Result       uint8
	Damage       uint16
	HealthAfter  uint16
	VersionAfter uint8
	CardID       uint32
	XPAwarded    uint32
	LevelAfter   uint8
	SoulItem     uint16
}

// EncodeTo writes the 26-byte payload (packet.AttackResultSize bytes).
func (a *AttackResult) EncodeTo(b []byte) {
	b[0] = a.TargetKind
	binary.LittleEndian.PutUint32(b[1:5], a.TargetID)
	binary.LittleEndian.PutUint32(b[5:9], a.AttackerID)
	b[9] = a.Result
	binary.LittleEndian.PutUint16(b[10:12], a.Damage)
	binary.LittleEndian.PutUint16(b[12:14], a.HealthAfter)
	b[14] = a.VersionAfter
	binary.LittleEndian.PutUint32(b[15:19], a.CardID)
	binary.LittleEndian.PutUint32(b[19:23], a.XPAwarded)
	b[23] = a.LevelAfter
	binary.LittleEndian.PutUint16(b[24:26], a.SoulItem)
}

func DecodeAttackResult(b []byte) AttackResult {
	return AttackResult{
		TargetKind:   b[0],
		TargetID:     binary.LittleEndian.Uint32(b[1:5]),
		AttackerID:   binary.LittleEndian.Uint32(b[5:9]),
		Result:       b[9],
		Damage:       binary.LittleEndian.Uint16(b[10:12]),
		HealthAfter:  binary.LittleEndian.Uint16(b[12:14]),
		VersionAfter: b[14],
		CardID:       binary.LittleEndian.Uint32(b[15:19]),
		XPAwarded:    binary.LittleEndian.Uint32(b[19:23]),
		LevelAfter:   b[23],
		SoulItem:     binary.LittleEndian.Uint16(b[24:26]),
	}
}

// Reward notifies a hero of an item grant.
type Reward struct {
	HeroID           uint16
	ItemID           uint32
	Amount           uint32
	Slot             uint8
	InventoryVersion uint8
}

// EncodeTo writes the 12-byte payload (packet.RewardSize bytes).
func (r *Reward) EncodeTo(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], r.HeroID)
	binary.LittleEndian.PutUint32(b[2:6], r.ItemID)
	binary.LittleEndian.PutUint32(b[6:10], r.Amount)
	b[10] = r.Slot
	b[11] = r.InventoryVersion
}

func DecodeReward(b []byte) Reward {
	return Reward{
		HeroID:           binary.LittleEndian.Uint16(b[0:2]),
		ItemID:           binary.LittleEndian.Uint32(b[2:6]),
		Amount:           binary.LittleEndian.Uint32(b[6:10]),
		Slot:             b[10],
		InventoryVersion: b[11],
	}
}

// Presentation introduces a hero by name (5×u32 words).
type Presentation struct {
	HeroID uint16
	Name   [5]uint32
}

// EncodeTo writes the 22-byte payload (packet.PresentationSize bytes).
func (p *Presentation) EncodeTo(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], p.HeroID)
	for i := 0; i < 5; i++ {
		binary.LittleEndian.PutUint32(b[2+4*i:], p.Name[i])
	}
}

func DecodePresentation(b []byte) Presentation {
	var p Presentation
	p.HeroID = binary.LittleEndian.Uint16(b[0:2])
	for i := 0; i < 5; i++ {
		p.Name[i] = binary.LittleEndian.Uint32(b[2+4*i:])
	}
	return p
}

// ChatEntryTextMax is the fixed text field width inside a chat entry.
const ChatEntryTextMax = 389

// ChatEntry is one chat line, faction-bucketed (faction 0 = global).
type ChatEntry struct {
	HeroID  uint16
	Faction uint8
	Name    [5]uint32
	Text    string
}

// EncodeTo writes the 414-byte payload (packet.ChatEntrySize bytes). Text is
// truncated to ChatEntryTextMax bytes.
func (c *ChatEntry) EncodeTo(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], c.HeroID)
	b[2] = c.Faction
	for i := 0; i < 5; i++ {
		binary.LittleEndian.PutUint32(b[3+4*i:], c.Name[i])
	}
	txt := c.Text
	if len(txt) > ChatEntryTextMax {
		txt = txt[:ChatEntryTextMax]
	}
	binary.LittleEndian.PutUint16(b[23:25], uint16(len(txt)))
	copy(b[25:25+ChatEntryTextMax], txt)
	for i := 25 + len(txt); i < 25+ChatEntryTextMax; i++ {
		b[i] = 0
	}
}

func DecodeChatEntry(b []byte) ChatEntry {
	var c ChatEntry
	c.HeroID = binary.LittleEndian.Uint16(b[0:2])
	c.Faction = b[2]
	for i := 0; i < 5; i++ {
		c.Name[i] = binary.LittleEndian.Uint32(b[3+4*i:])
	}
	n := int(binary.LittleEndian.Uint16(b[23:25]))
	if n > ChatEntryTextMax {
		n = ChatEntryTextMax
	}
	c.Text = string(b[25 : 25+n])
	return c
}

// ServerStatus is a 10×u16 load snapshot: online players, channel gauges and
// byte counters squeezed to u16.
type ServerStatus [10]uint16

// EncodeTo writes the 20-byte payload (packet.ServerStatusSize bytes).
func (s *ServerStatus) EncodeTo(b []byte) {
	for i := 0; i < 10; i++ {
		binary.LittleEndian.PutUint16(b[2*i:], s[i])
	}
}

func DecodeServerStatus(b []byte) ServerStatus {
	var s ServerStatus
	for i := 0; i < 10; i++ {
		s[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return s
}

// ── Update constructors ────────────────────────────────────────────

func HeroUpdate(h *Hero) Update {
	b := make([]byte, packet.HeroSize)
	h.EncodeTo(b)
	return Update{Type: packet.DataHero, Region: h.Position.RegionKey(), Payload: b}
}

func MobUpdate(m *Mob) Update {
	b := make([]byte, packet.MobSize)
	m.EncodeTo(b)
	return Update{Type: packet.DataMob, Region: m.Start.RegionKey(), Payload: b}
}

func TileUpdate(t *Tile) Update {
	b := make([]byte, packet.TileSize)
	t.EncodeTo(b)
	return Update{Type: packet.DataTile, Region: t.ID.RegionKey(), Payload: b}
}

func TowerUpdate(t *Tower) Update {
	b := make([]byte, packet.TowerSize)
	t.EncodeTo(b)
	return Update{Type: packet.DataTower, Region: t.ID.RegionKey(), Payload: b}
}

func BattleUpdate(bt *Battle) Update {
	b := make([]byte, packet.BattleSize)
	bt.EncodeTo(b)
	return Update{Type: packet.DataBattle, Region: bt.ID.RegionKey(), Payload: b}
}

func AttackUpdate(a *AttackIntent, region tetra.ID) Update {
	b := make([]byte, packet.AttackSize)
	a.EncodeTo(b)
	return Update{Type: packet.DataAttack, Region: region.RegionKey(), Payload: b}
}

func AttackResultUpdate(a *AttackResult, region tetra.ID) Update {
	b := make([]byte, packet.AttackResultSize)
	a.EncodeTo(b)
	return Update{Type: packet.DataAttackResult, Region: region.RegionKey(), Payload: b}
}

func RewardUpdate(r *Reward, region tetra.ID) Update {
	b := make([]byte, packet.RewardSize)
	r.EncodeTo(b)
	return Update{Type: packet.DataReward, Region: region.RegionKey(), Payload: b}
}

func PresentationUpdate(p *Presentation, region tetra.ID) Update {
	b := make([]byte, packet.PresentationSize)
	p.EncodeTo(b)
	return Update{Type: packet.DataPresentation, Region: region.RegionKey(), Payload: b}
}

func ChatUpdate(c *ChatEntry) Update {
	b := make([]byte, packet.ChatEntrySize)
	c.EncodeTo(b)
	return Update{Type: packet.DataChatEntry, Faction: c.Faction, Payload: b}
}

func StatusUpdate(s *ServerStatus) Update {
	b := make([]byte, packet.ServerStatusSize)
	s.EncodeTo(b)
	return Update{Type: packet.DataServerStatus, Payload: b}
}
