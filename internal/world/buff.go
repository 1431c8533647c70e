package world

// BuffStat selects which combat stat a buff feeds.
type BuffStat uint8

const (
	BuffStrength BuffStat = iota
	BuffDefense
	BuffIntelligence
	BuffMana
)

// Buff is a temporary combat modifier. Stacks are disallowed: adding a buff
// with an id already present replaces the old one.
type Buff struct {
	ID             uint8
	Hits           uint8
	ExpirationTime uint32 // wall-clock ms
	Stat           BuffStat
	Amount         uint16
}

// BuffSummarySlots is the dense wire summary width.
const BuffSummarySlots = 5

// addBuff inserts or replaces by id.
func addBuff(buffs []Buff, b Buff) []Buff {
	for i := range buffs {
		if buffs[i].ID == b.ID {
			buffs[i] = b
			return buffs
		}
	}
	return append(buffs, b)
}

// pruneBuffs drops expired entries. Called lazily at action time.
func pruneBuffs(buffs []Buff, nowMs uint32) []Buff {
	out := buffs[:0]
	for _, b := range buffs {
		if b.ExpirationTime > nowMs {
			out = append(out, b)
		}
	}
	return out
}

// sumBuffs totals the contribution of live buffs feeding the given stat.
func sumBuffs(buffs []Buff, stat BuffStat, nowMs uint32) int {
	total := 0
	for _, b := range buffs {
		if b.Stat == stat && b.ExpirationTime > nowMs {
			total += int(b.Amount)
		}
	}
	return total
}

// consumeBuffs decrements hit counters of buffs feeding the given stat and
// drops the ones that run out.
func consumeBuffs(buffs []Buff, stat BuffStat, nowMs uint32) []Buff {
	out := buffs[:0]
	for _, b := range buffs {
		if b.ExpirationTime <= nowMs {
			continue
		}
		if b.Stat == stat {
			if b.Hits <= 1 {
				continue
			}
			b.Hits--
		}
		out = append(out, b)
	}
	return out
}

// buffSummary packs the first five live buff ids for the wire.
func buffSummary(buffs []Buff) [BuffSummarySlots]uint8 {
	var s [BuffSummarySlots]uint8
	for i, b := range buffs {
		if i >= BuffSummarySlots {
			break
		}
		s[i] = b.ID
	}
	return s
}
