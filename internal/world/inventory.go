package world

// Slot conventions. Slot 0 is the bag; equipped rows use dedicated slots so
// that one item id can exist both carried and equipped.
const (
	SlotBag      uint8 = 0
	SlotEquipped uint8 = 1

	// Equip caps: at most 10 cards and 1 weapon equipped at a time.
	MaxEquippedCards   = 10
	MaxEquippedWeapons = 1
)

// InvRow is one inventory line: amounts are strictly positive; a decrement
// to zero removes the row.
type InvRow struct {
	ID     uint32
	Slot   uint8
	Amount uint32
}

// Inventory is one of the hero's three item lists (items, cards, weapons).
type Inventory struct {
	Rows []InvRow
}

// Count returns the amount held of (id, slot).
func (inv *Inventory) Count(id uint32, slot uint8) uint32 {
	for i := range inv.Rows {
		if inv.Rows[i].ID == id && inv.Rows[i].Slot == slot {
			return inv.Rows[i].Amount
		}
	}
	return 0
}

// CountSlot totals amounts across all ids in a slot.
func (inv *Inventory) CountSlot(slot uint8) uint32 {
	var total uint32
	for i := range inv.Rows {
		if inv.Rows[i].Slot == slot {
			total += inv.Rows[i].Amount
		}
	}
	return total
}

// Add merges amount into the (id, slot) row, creating it if absent.
func (inv *Inventory) Add(id uint32, slot uint8, amount uint32) {
	if amount == 0 {
		return
	}
	for i := range inv.Rows {
		if inv.Rows[i].ID == id && inv.Rows[i].Slot == slot {
			inv.Rows[i].Amount += amount
			return
		}
	}
	inv.Rows = append(inv.Rows, InvRow{ID: id, Slot: slot, Amount: amount})
}

// Remove subtracts amount from the (id, slot) row. Returns false without
// mutating when the row is missing or short. Zero-amount rows are removed.
func (inv *Inventory) Remove(id uint32, slot uint8, amount uint32) bool {
	for i := range inv.Rows {
		if inv.Rows[i].ID == id && inv.Rows[i].Slot == slot {
			if inv.Rows[i].Amount < amount {
				return false
			}
			inv.Rows[i].Amount -= amount
			if inv.Rows[i].Amount == 0 {
				inv.Rows = append(inv.Rows[:i], inv.Rows[i+1:]...)
			}
			return true
		}
	}
	return false
}

// Move shifts amount of id from one slot to another. Returns false when the
// source is short; the destination cap is the caller's rule to enforce.
func (inv *Inventory) Move(id uint32, from, to uint8, amount uint32) bool {
	if !inv.Remove(id, from, amount) {
		return false
	}
	inv.Add(id, to, amount)
	return true
}

// Clone deep-copies the inventory for delta emission.
func (inv *Inventory) Clone() Inventory {
	rows := make([]InvRow, len(inv.Rows))
	copy(rows, inv.Rows)
	return Inventory{Rows: rows}
}
