package game

import (
	"math"
	"math/rand"

	"github.com/tetraworld/server/internal/data"
	"github.com/tetraworld/server/internal/scripting"
	"github.com/tetraworld/server/internal/world"
)

// SoulItemID is granted to the attacker on a hero kill.
const SoulItemID uint32 = 1

// CollectRewardOffset: destroying a prop p yields item p+2.
const CollectRewardOffset uint32 = 2

// defaultGrowthFactor converts allocated stat points into stat value when no
// script overrides it.
const defaultGrowthFactor = 2.2

// statValue computes base + floor(points × growth).
func statValue(base uint16, points uint8, growth float64) int {
	return int(base) + int(math.Floor(float64(points)*growth))
}

// cardFactors resolves the balance block for a card: Lua first, static item
// table second, neutral defaults last.
func (d *Dispatcher) cardFactors(cardID uint32) scripting.CardFactors {
	if d.deps.Scripting != nil {
		if f, ok := d.deps.Scripting.CombatFactors(cardID); ok {
			return f
		}
	}
	if def := d.deps.Items.Get(cardID); def != nil && def.Kind == data.KindCard {
		return scripting.CardFactors{
			StrengthFactor: def.StrengthFactor,
			BlockFactor:    def.BlockFactor,
			CritChance:     def.CritChance,
			StrengthStat:   def.StrengthStat,
		}
	}
	return scripting.CardFactors{StrengthFactor: 1.0}
}

// hitOutcome is the shared resolution for hero/mob/tower combat.
type hitOutcome struct {
	Result uint8
	Damage uint16
}

// resolveHit applies the damage shape: attack = round(stat × factor) + str
// buffs, defense = round(stat) + def buffs; block halves the margin, crits
// double it, everything saturates at zero.
func resolveHit(attackStat, attackBuff, defenseStat, defenseBuff int, f scripting.CardFactors, missed bool, rng *rand.Rand) hitOutcome {
	if missed {
		return hitOutcome{Result: world.ResultMissed}
	}
	attack := int(math.Round(float64(attackStat)*f.StrengthFactor)) + attackBuff
	defense := defenseStat + defenseBuff

	margin := attack - defense
	if margin < 0 {
		margin = 0
	}

	if f.BlockFactor > 0 && rng.Float64() < f.BlockFactor {
		return hitOutcome{Result: world.ResultBlocked, Damage: clampDamage(margin / 2)}
	}
	if f.CritChance > 0 && rng.Float64() < f.CritChance {
		return hitOutcome{Result: world.ResultCritical, Damage: clampDamage(2 * margin)}
	}
	return hitOutcome{Result: world.ResultNormal, Damage: clampDamage(margin)}
}

func clampDamage(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}

// buffStat maps the card's strength-stat selector onto the buff kinds.
func buffStat(sel uint8) world.BuffStat {
	switch sel {
	case 1:
		return world.BuffDefense
	case 2:
		return world.BuffIntelligence
	case 3:
		return world.BuffMana
	default:
		return world.BuffStrength
	}
}

// killExperience is the award for a hero kill:
// ceil((Ld+1) × 1.1^max(0, Ld−La)).
func killExperience(defenderLevel, attackerLevel uint8) uint32 {
	diff := 0
	if defenderLevel > attackerLevel {
		diff = int(defenderLevel - attackerLevel)
	}
	xp := float64(defenderLevel+1) * math.Pow(1.1, float64(diff))
	return uint32(math.Ceil(xp))
}

// grantExperience adds xp and applies any level-ups: each crossed threshold
// bumps the level and credits its skill points.
func (d *Dispatcher) grantExperience(h *world.Hero, xp uint32) {
	h.Experience += xp
	table := d.deps.Progression
	for h.Level < table.MaxLevel() &&
		h.Experience >= table.XPThreshold(h.Level+1) {
		h.Level++
		h.AvailableSkillPoints += table.SkillPoints(h.Level)
	}
}

// growth returns the configured stat growth factor.
func (d *Dispatcher) growth() float64 {
	if d.deps.Scripting != nil {
		return d.deps.Scripting.GrowthFactor()
	}
	return defaultGrowthFactor
}
