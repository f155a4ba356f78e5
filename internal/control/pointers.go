// Package control decodes control messages and turns them into device input.
package control

import (
	"errors"

	"github.com/frudas24/remotectl/internal/device"
)

// DefaultMaxPointers is the usual multi-touch limit of the target platform.
const DefaultMaxPointers = 10

// ErrPointersFull is returned when every pointer slot is live.
var ErrPointersFull = errors.New("pointer table full")

type pointerSlot struct {
	inUse      bool
	externalID int64
	point      device.Point
	pressure   float32
	tool       device.ToolType
	up         bool
}

// PointerTable maps external pointer ids to a fixed set of slots.
// It is owned by the dispatcher and is not safe for concurrent use.
type PointerTable struct {
	slots []pointerSlot
}

// NewPointerTable returns a table with capacity slots.
func NewPointerTable(capacity int) *PointerTable {
	if capacity <= 0 {
		capacity = DefaultMaxPointers
	}
	return &PointerTable{slots: make([]pointerSlot, capacity)}
}

// Capacity returns the number of slots.
func (t *PointerTable) Capacity() int {
	return len(t.slots)
}

// Acquire returns the slot of a live external id, or claims the first free slot.
func (t *PointerTable) Acquire(externalID int64) (int, error) {
	free := -1
	for i := range t.slots {
		s := &t.slots[i]
		if s.inUse && s.externalID == externalID {
			return i, nil
		}
		if !s.inUse && free < 0 {
			free = i
		}
	}
	if free < 0 {
		return -1, ErrPointersFull
	}
	t.slots[free] = pointerSlot{inUse: true, externalID: externalID}
	return free, nil
}

// Update stores the pointer state of slot and returns the live pointer count.
// A pointer marked up still counts until it is released.
func (t *PointerTable) Update(slot int, point device.Point, pressure float32, tool device.ToolType, up bool) int {
	s := &t.slots[slot]
	s.point = point
	s.pressure = pressure
	s.tool = tool
	s.up = up
	return t.Live()
}

// Release frees slot after its terminal event was emitted.
func (t *PointerTable) Release(slot int) {
	if slot < 0 || slot >= len(t.slots) {
		return
	}
	t.slots[slot] = pointerSlot{}
}

// Live returns the number of occupied slots.
func (t *PointerTable) Live() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].inUse {
			n++
		}
	}
	return n
}

// Pointers returns the occupied slots in slot order and the position of slot among them.
func (t *PointerTable) Pointers(slot int) ([]device.Pointer, int) {
	pointers := make([]device.Pointer, 0, len(t.slots))
	index := -1
	for i := range t.slots {
		s := &t.slots[i]
		if !s.inUse {
			continue
		}
		if i == slot {
			index = len(pointers)
		}
		pointers = append(pointers, device.Pointer{
			ID:       i,
			Tool:     s.tool,
			X:        s.point.X,
			Y:        s.point.Y,
			Pressure: s.pressure,
		})
	}
	return pointers, index
}

// Reset releases every slot.
func (t *PointerTable) Reset() {
	for i := range t.slots {
		t.slots[i] = pointerSlot{}
	}
}
