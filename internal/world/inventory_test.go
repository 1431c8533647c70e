package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInventoryAddMerges(t *testing.T) {
	var inv Inventory
	inv.Add(7, SlotBag, 2)
	inv.Add(7, SlotBag, 3)
	assert.Equal(t, uint32(5), inv.Count(7, SlotBag))
	assert.Len(t, inv.Rows, 1)
}

func TestInventoryRemoveShortLeavesUntouched(t *testing.T) {
	var inv Inventory
	inv.Add(7, SlotBag, 2)
	assert.False(t, inv.Remove(7, SlotBag, 3))
	assert.Equal(t, uint32(2), inv.Count(7, SlotBag))
	assert.False(t, inv.Remove(8, SlotBag, 1))
}

func TestInventoryRemoveDropsEmptyRow(t *testing.T) {
	var inv Inventory
	inv.Add(7, SlotBag, 2)
	assert.True(t, inv.Remove(7, SlotBag, 2))
	assert.Empty(t, inv.Rows)
}

func TestInventoryMove(t *testing.T) {
	var inv Inventory
	inv.Add(7, SlotBag, 2)
	assert.True(t, inv.Move(7, SlotBag, SlotEquipped, 1))
	assert.Equal(t, uint32(1), inv.Count(7, SlotBag))
	assert.Equal(t, uint32(1), inv.Count(7, SlotEquipped))

	// Same id carried and equipped at once: two distinct rows.
	assert.Len(t, inv.Rows, 2)

	assert.False(t, inv.Move(7, SlotBag, SlotEquipped, 5))
}

func TestCountSlotSpansIDs(t *testing.T) {
	var inv Inventory
	inv.Add(1, SlotEquipped, 1)
	inv.Add(2, SlotEquipped, 1)
	inv.Add(3, SlotBag, 4)
	assert.Equal(t, uint32(2), inv.CountSlot(SlotEquipped))
}
